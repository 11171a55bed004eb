// Package cache holds the disposable in-memory copy of MMP files served between
// database round trips.
package cache

import (
	"sort"
	"sync"

	"mmp-tracker/internal/model"
)

// MMPCache stores clones so callers can never mutate cached state.
type MMPCache struct {
	mu     sync.RWMutex
	files  map[string]model.MMPFile
	warmed bool
}

func NewMMPCache() *MMPCache {
	return &MMPCache{files: make(map[string]model.MMPFile)}
}

func (c *MMPCache) Get(id string) (model.MMPFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.files[id]
	if !ok {
		return model.MMPFile{}, false
	}
	return f.Clone(), true
}

func (c *MMPCache) Put(f model.MMPFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[f.ID] = f.Clone()
}

func (c *MMPCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, id)
}

// ReplaceAll swaps in a full listing and marks the cache warm.
func (c *MMPCache) ReplaceAll(files []model.MMPFile) {
	next := make(map[string]model.MMPFile, len(files))
	for _, f := range files {
		next[f.ID] = f.Clone()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = next
	c.warmed = true
}

// Invalidate drops everything; the next listing reloads from storage.
func (c *MMPCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]model.MMPFile)
	c.warmed = false
}

func (c *MMPCache) Warmed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.warmed
}

// All returns clones of every cached file, newest upload first.
func (c *MMPCache) All() []model.MMPFile {
	c.mu.RLock()
	out := make([]model.MMPFile, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out
}

func (c *MMPCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
