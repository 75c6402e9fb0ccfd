package api

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aouyang1/inkframe/imageindex"
	"github.com/aouyang1/inkframe/util"
)

// LocalManager watches the shared and local image trees and signals Updated when an
// image is added or removed.
type LocalManager struct {
	sharedRoot string
	localRoot  string
	interval   time.Duration

	trackedFiles mapset.Set[string]

	Updated chan bool
}

func NewLocalManager(sharedRoot, localRoot string, interval time.Duration) *LocalManager {
	l := &LocalManager{
		sharedRoot: sharedRoot,
		localRoot:  localRoot,
		interval:   interval,
		Updated:    make(chan bool, 1),
	}
	l.trackedFiles = l.getCurrentFiles()
	return l
}

// getCurrentFiles lists every supported image as "<folder label>/<file name>".
func (l *LocalManager) getCurrentFiles() mapset.Set[string] {
	files := mapset.NewThreadUnsafeSet[string]()
	l.addRoot(files, l.sharedRoot, imageindex.SharedPrefix)
	l.addRoot(files, l.localRoot, imageindex.LocalPrefix)
	return files
}

func (l *LocalManager) addRoot(files mapset.Set[string], root, prefix string) {
	folders, err := os.ReadDir(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("error reading image root", "path", root, "error", err)
		}
		return
	}

	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, folder.Name()))
		if err != nil {
			slog.Warn("error reading image folder", "path", filepath.Join(root, folder.Name()), "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !util.IsSupportedImage(entry.Name()) {
				continue
			}
			files.Add(prefix + folder.Name() + "/" + entry.Name())
		}
	}
}

// scan compares the trees with the tracked files and reports whether they changed.
func (l *LocalManager) scan() bool {
	currentFiles := l.getCurrentFiles()

	added := currentFiles.Difference(l.trackedFiles)
	removed := l.trackedFiles.Difference(currentFiles)
	l.trackedFiles = currentFiles

	if added.IsEmpty() && removed.IsEmpty() {
		return false
	}

	slog.Info("image trees changed", "added", added.Cardinality(), "removed", removed.Cardinality())
	select {
	case l.Updated <- true:
	default:
		// an update is already pending
	}
	return true
}

func (l *LocalManager) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.scan()
		}
	}
}
