// Package util is a set of utility variables or methods
package util

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// SupportedExt holds lowercased image extensions eligible for indexing.
var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg",
	".png",
	".gif",
)

// IsSupportedImage reports whether name has a supported image extension, ignoring case.
func IsSupportedImage(name string) bool {
	return SupportedExt.Contains(strings.ToLower(filepath.Ext(name)))
}

var ErrInvalidHour = errors.New("invalid wake hour")

// ParseHours parses a comma separated list of hours in [0, 23]. Blank entries are ignored,
// so an empty string yields an empty set.
func ParseHours(s string) (mapset.Set[int], error) {
	hours := mapset.NewSet[int]()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHour, part)
		}
		hours.Add(h)
	}
	return hours, nil
}

// FormatHours renders hours sorted ascending and comma separated.
func FormatHours(hours mapset.Set[int]) string {
	sorted := hours.ToSlice()
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, h := range sorted {
		parts[i] = strconv.Itoa(h)
	}
	return strings.Join(parts, ",")
}

// NormalizeHours validates s and returns its canonical form.
func NormalizeHours(s string) (string, error) {
	hours, err := ParseHours(s)
	if err != nil {
		return "", err
	}
	return FormatHours(hours), nil
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place,
// so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Clock abstracts time retrieval so schedules are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time, optionally in a fixed location.
type RealClock struct {
	Location *time.Location
}

func (c RealClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

type loggerKey struct{}

// WithLogger attaches l to ctx, typically a logger carrying a pass id.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the logger attached to ctx, or the default logger.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
