package imageindex

import (
	"math/rand/v2"
	"path/filepath"
)

// FolderSource returns the current folder index.
type FolderSource interface {
	Folders() (Folders, error)
}

// Selector picks random images out of a category's linked folders.
type Selector struct {
	source     FolderSource
	sharedRoot string
	localRoot  string

	intN func(n int) int
}

func NewSelector(source FolderSource, sharedRoot, localRoot string) *Selector {
	return &Selector{
		source:     source,
		sharedRoot: sharedRoot,
		localRoot:  localRoot,
		intN:       rand.IntN,
	}
}

// Candidates lists the full path of every image in folders that satisfies want.
// Folders missing from the index contribute nothing.
func (s *Selector) Candidates(folders []string, want Orientation) ([]string, error) {
	index, err := s.source.Folders()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, label := range folders {
		images, ok := index[label]
		if !ok {
			continue
		}
		dir, ok := FolderPath(label, s.sharedRoot, s.localRoot)
		if !ok {
			continue
		}
		for _, img := range images {
			if img.Orientation.Satisfies(want) {
				paths = append(paths, filepath.Join(dir, img.Name))
			}
		}
	}
	return paths, nil
}

// Pick returns one candidate chosen uniformly at random. It reports false when no
// image is available.
func (s *Selector) Pick(folders []string, want Orientation) (string, bool, error) {
	paths, err := s.Candidates(folders, want)
	if err != nil {
		return "", false, err
	}
	if len(paths) == 0 {
		return "", false, nil
	}
	return paths[s.intN(len(paths))], true, nil
}
