package imageindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aouyang1/inkframe/util"
	"golang.org/x/sync/singleflight"
)

// Source produces a full index of the image trees.
type Source interface {
	Index() Folders
}

// Document is the persisted cache artifact.
type Document struct {
	IndexedAt time.Time `json:"indexed_at"`
	Folders   Folders   `json:"folders"`
}

// Cache persists the index to a single JSON file and rebuilds it when it is older
// than maxAge, missing or unreadable. Concurrent rebuilds share one index run.
type Cache struct {
	path   string
	maxAge time.Duration
	source Source
	clock  util.Clock

	group singleflight.Group
}

func NewCache(path string, maxAge time.Duration, source Source, clock util.Clock) *Cache {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Cache{
		path:   path,
		maxAge: maxAge,
		source: source,
		clock:  clock,
	}
}

// Load returns the cached document when it is fresh, otherwise a rebuilt one. Cache
// problems are never returned; a failed write is logged and the fresh index is still
// served.
func (c *Cache) Load() *Document {
	doc, err := c.read()
	if err == nil && c.fresh(doc) {
		return doc
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("rebuilding unreadable image cache", "path", c.path, "error", err)
	}

	doc, err = c.rebuild()
	if err != nil {
		slog.Error("unable to write image cache", "path", c.path, "error", err)
	}
	return doc
}

// Folders is Load without the timestamp.
func (c *Cache) Folders() (Folders, error) {
	return c.Load().Folders, nil
}

// Refresh rebuilds the index unconditionally.
func (c *Cache) Refresh() (*Document, error) {
	return c.rebuild()
}

func (c *Cache) fresh(doc *Document) bool {
	if doc.IndexedAt.IsZero() || doc.Folders == nil {
		return false
	}
	age := c.clock.Now().Sub(doc.IndexedAt)
	return age >= 0 && age < c.maxAge
}

func (c *Cache) read() (*Document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse image cache: %w", err)
	}
	return &doc, nil
}

type rebuildResult struct {
	doc      *Document
	writeErr error
}

func (c *Cache) rebuild() (*Document, error) {
	v, _, _ := c.group.Do("rebuild", func() (any, error) {
		start := time.Now()
		doc := &Document{
			IndexedAt: c.clock.Now().UTC(),
			Folders:   c.source.Index(),
		}
		slog.Info("indexed image folders", "folders", len(doc.Folders), "duration", time.Since(start))
		return rebuildResult{doc: doc, writeErr: c.write(doc)}, nil
	})
	res := v.(rebuildResult)
	return res.doc, res.writeErr
}

func (c *Cache) write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal image cache: %w", err)
	}
	return util.WriteFileAtomic(c.path, data, 0o644)
}
