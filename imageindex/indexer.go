package imageindex

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aouyang1/inkframe/util"
)

// Folder label prefixes naming the tree a folder lives in.
const (
	SharedPrefix = "Shared - "
	LocalPrefix  = "Local - "

	missingFolder = "Folder Missing"
)

// Image is one indexed file. Orientation is Any for placeholder entries.
type Image struct {
	Name        string      `json:"name"`
	Orientation Orientation `json:"orientation"`
}

// Folders maps a folder label such as "Shared - Beach" to its images.
type Folders map[string][]Image

// Labels returns the folder labels in sorted order.
func (f Folders) Labels() []string {
	labels := make([]string, 0, len(f))
	for label := range f {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Indexer walks the two image trees.
type Indexer struct {
	SharedRoot string
	LocalRoot  string
}

func NewIndexer(sharedRoot, localRoot string) *Indexer {
	return &Indexer{SharedRoot: sharedRoot, LocalRoot: localRoot}
}

// Index lists every supported image in the immediate subfolders of both roots. A
// missing root yields a single placeholder entry instead of an error, and files that
// cannot be decoded are skipped.
func (ix *Indexer) Index() Folders {
	folders := Folders{}
	ix.indexRoot(folders, ix.SharedRoot, SharedPrefix, "No shared images folder is mounted.")
	ix.indexRoot(folders, ix.LocalRoot, LocalPrefix, "No local images folder found.")
	return folders
}

func (ix *Indexer) indexRoot(folders Folders, root, prefix, placeholder string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("unable to read image root", "root", root, "error", err)
		}
		folders[prefix+missingFolder] = []Image{{Name: placeholder}}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		images, err := indexFolder(dir)
		if err != nil {
			slog.Warn("unable to read image folder", "folder", dir, "error", err)
			continue
		}
		folders[prefix+entry.Name()] = images
	}
}

func indexFolder(dir string) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	images := []Image{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !util.IsSupportedImage(name) {
			continue
		}
		orientation, err := Classify(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("skipping unreadable image", "folder", dir, "name", name, "error", err)
			continue
		}
		images = append(images, Image{Name: name, Orientation: orientation})
	}
	// os.ReadDir already sorts by name
	return images, nil
}

// FolderPath resolves a folder label to its directory. It reports false for labels
// without a known tree prefix.
func FolderPath(label, sharedRoot, localRoot string) (string, bool) {
	var root string
	switch {
	case strings.HasPrefix(label, SharedPrefix):
		root = sharedRoot
	case strings.HasPrefix(label, LocalPrefix):
		root = localRoot
	default:
		return "", false
	}
	parts := strings.SplitN(label, " - ", 2)
	return filepath.Join(root, parts[1]), true
}
