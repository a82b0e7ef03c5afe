package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/freshness"
)

// ArtifactCache is an in-memory page cache with the same contract as the
// filesystem cache: a miss records an empty placeholder and reads as stale.
type ArtifactCache struct {
	mu    sync.RWMutex
	pages map[int]string
	fresh *freshness.Checker
	puts  int
}

// NewArtifactCache builds an empty cache. A nil checker treats every page as stale.
func NewArtifactCache(fresh *freshness.Checker) *ArtifactCache {
	return &ArtifactCache{pages: make(map[int]string), fresh: fresh}
}

// Seed stores content without counting it as a Put.
func (c *ArtifactCache) Seed(id int, content string) {
	c.mu.Lock()
	c.pages[id] = content
	c.mu.Unlock()
}

// Get returns the cached page for id.
func (c *ArtifactCache) Get(_ context.Context, id int) scraper.Artifact {
	c.mu.Lock()
	content, ok := c.pages[id]
	if !ok {
		c.pages[id] = ""
	}
	c.mu.Unlock()

	artifact := scraper.Artifact{ID: id, Content: content}
	artifact.Fresh = c.IsFresh(artifact)
	return artifact
}

// Put replaces the cached page for id.
func (c *ArtifactCache) Put(ctx context.Context, id int, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.pages[id] = content
	c.puts++
	c.mu.Unlock()
	return nil
}

// IsFresh reports whether the artifact was retrieved today.
func (c *ArtifactCache) IsFresh(artifact scraper.Artifact) bool {
	if c.fresh == nil {
		return false
	}
	return c.fresh.IsFresh(artifact.Content)
}

// Content returns the stored page and whether an entry (or placeholder) exists.
func (c *ArtifactCache) Content(id int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.pages[id]
	return content, ok
}

// Puts counts calls to Put.
func (c *ArtifactCache) Puts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.puts
}
