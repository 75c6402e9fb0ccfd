// Package dispatch runs the per-screen-type render script for every frame that wakes
// in the upcoming hour.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/store"
	"github.com/aouyang1/inkframe/util"
)

// Store is the slice of store.Database the dispatcher reads.
type Store interface {
	ListFrames() ([]store.Frame, error)
	GetScreenTypeByName(name string) (*store.ScreenType, error)
	GetCategory(id int64) (*store.Category, error)
}

// Picker chooses an image for a category's folders.
type Picker interface {
	Pick(folders []string, want imageindex.Orientation) (string, bool, error)
}

// FrameResult describes what happened to one frame due in a pass.
type FrameResult struct {
	Code    string
	Name    string
	Skipped bool
	Reason  string
	Script  string
	Image   string
	Output  string
	Run     RunResult
	Err     error
}

// OK reports whether the render script ran and exited cleanly.
func (r FrameResult) OK() bool {
	return !r.Skipped && r.Err == nil && r.Run.ExitCode == 0
}

type Options struct {
	ScriptsDir string
	OutputDir  string
	Lookahead  time.Duration
}

type Dispatcher struct {
	store  Store
	picker Picker
	runner Runner

	scriptsDir string
	outputDir  string
	lookahead  time.Duration
}

func New(st Store, picker Picker, runner Runner, opts Options) *Dispatcher {
	if opts.Lookahead <= 0 {
		opts.Lookahead = 30 * time.Minute
	}
	return &Dispatcher{
		store:      st,
		picker:     picker,
		runner:     runner,
		scriptsDir: opts.ScriptsDir,
		outputDir:  opts.OutputDir,
		lookahead:  opts.Lookahead,
	}
}

// UpcomingHour is the hour that now plus the lookahead falls in.
func (d *Dispatcher) UpcomingHour(now time.Time) int {
	return now.Add(d.lookahead).Hour()
}

// DueHour reports the hour a scheduled pass at now serves, and whether now is inside
// the one minute window where now plus the lookahead lands on the top of that hour.
func (d *Dispatcher) DueHour(now time.Time) (int, bool) {
	target := now.Add(d.lookahead)
	return target.Hour(), target.Minute() == 0
}

// RunPass is a scheduled pass. It does nothing and reports false outside the window.
func (d *Dispatcher) RunPass(ctx context.Context, now time.Time) ([]FrameResult, bool, error) {
	hour, due := d.DueHour(now)
	if !due {
		return nil, false, nil
	}
	results, err := d.RunHour(ctx, hour)
	return results, true, err
}

// RunHour dispatches every frame whose active wake times include hour. Frames fail
// independently; only failing to list frames is an error.
func (d *Dispatcher) RunHour(ctx context.Context, hour int) ([]FrameResult, error) {
	frames, err := d.store.ListFrames()
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}

	var results []FrameResult
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if strings.TrimSpace(f.ActiveWakeTimes) == "" {
			continue
		}

		hours, err := util.ParseHours(f.ActiveWakeTimes)
		if err != nil {
			results = append(results, d.skip(ctx, f, fmt.Sprintf("invalid wake times %q", f.ActiveWakeTimes)))
			continue
		}
		if !hours.Contains(hour) {
			continue
		}
		results = append(results, d.dispatchFrame(ctx, f))
	}
	return results, nil
}

func (d *Dispatcher) skip(ctx context.Context, f store.Frame, reason string) FrameResult {
	util.Logger(ctx).Warn("skipping frame", "frame", f.Code, "reason", reason)
	return FrameResult{Code: f.Code, Name: f.Name, Skipped: true, Reason: reason}
}

func (d *Dispatcher) dispatchFrame(ctx context.Context, f store.Frame) (res FrameResult) {
	log := util.Logger(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while dispatching frame", "frame", f.Code, "panic", r)
			res = FrameResult{Code: f.Code, Name: f.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	st, err := d.store.GetScreenTypeByName(f.ScreenType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d.skip(ctx, f, fmt.Sprintf("screen type %q not found", f.ScreenType))
		}
		return d.skip(ctx, f, fmt.Sprintf("screen type lookup failed: %v", err))
	}
	if st.ScriptFilename == "" {
		return d.skip(ctx, f, fmt.Sprintf("screen type %q has no script", st.Name))
	}
	script := filepath.Join(d.scriptsDir, st.ScriptFilename)
	if _, err := os.Stat(script); err != nil {
		return d.skip(ctx, f, fmt.Sprintf("script %s not found", script))
	}

	categoryID := f.EffectiveCategoryID()
	if categoryID == nil {
		return d.skip(ctx, f, "no category")
	}
	category, err := d.store.GetCategory(*categoryID)
	if err != nil {
		return d.skip(ctx, f, fmt.Sprintf("category %d not found", *categoryID))
	}

	orientation, err := imageindex.ParseOrientation(st.Orientation)
	if err != nil {
		return d.skip(ctx, f, fmt.Sprintf("screen type %q: %v", st.Name, err))
	}
	image, ok, err := d.picker.Pick(category.LinkedFolders, orientation)
	if err != nil {
		return d.skip(ctx, f, fmt.Sprintf("image lookup failed: %v", err))
	}
	if !ok {
		return d.skip(ctx, f, fmt.Sprintf("no image in category %q", category.Name))
	}

	output := filepath.Join(d.outputDir, "frame"+f.Code+".h")
	res = FrameResult{Code: f.Code, Name: f.Name, Script: script, Image: image, Output: output}

	log.Info("running render script", "frame", f.Code, "script", st.ScriptFilename, "image", image)
	res.Run, res.Err = d.runner.Run(ctx, script, strings.ToLower(string(orientation)), image, output)

	switch {
	case res.Err != nil:
		log.Error("render script failed", "frame", f.Code, "error", res.Err, "stderr", res.Run.Stderr)
	case res.Run.ExitCode != 0 || res.Run.Stderr != "":
		log.Warn("render script reported errors", "frame", f.Code, "exit", res.Run.ExitCode, "stdout", res.Run.Stdout, "stderr", res.Run.Stderr)
	default:
		log.Info("render script finished", "frame", f.Code, "stdout", res.Run.Stdout)
	}
	return res
}

// NextRun is the first time after now whose minute is minute and second is zero.
func NextRun(now time.Time, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}
