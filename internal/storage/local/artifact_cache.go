// Package local implements a filesystem-backed page cache.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
	"github.com/JakeFAU/gamedb-scraper/internal/storage/freshness"
)

// Config captures the parameters for the filesystem cache.
type Config struct {
	// BaseDir is the cache root; each target gets a sub-folder.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ArtifactCache stores one HTML file per ID under BaseDir/<expansion>/<entity>s.
type ArtifactCache struct {
	dir    string
	target scraper.Target
	fresh  *freshness.Checker
	logger *zap.Logger
}

// NewArtifactCache creates the target folder and verifies it is writable.
func NewArtifactCache(cfg Config, target scraper.Target, fresh *freshness.Checker, logger *zap.Logger) (*ArtifactCache, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if fresh == nil {
		return nil, fmt.Errorf("freshness checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Join(cfg.BaseDir, filepath.FromSlash(target.Folder()))
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache path %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &ArtifactCache{
		dir:    dir,
		target: target,
		fresh:  fresh,
		logger: logger,
	}, nil
}

// Dir returns the folder holding this target's pages.
func (c *ArtifactCache) Dir() string {
	return c.dir
}

// Path returns the file path of the page for id.
func (c *ArtifactCache) Path(id int) string {
	return filepath.Join(c.dir, c.target.ArtifactName(id))
}

// Get reads the cached page. A missing file is replaced by an empty
// placeholder and reported as a stale, empty artifact.
func (c *ArtifactCache) Get(_ context.Context, id int) scraper.Artifact {
	path := c.Path(id)
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the cache root and an integer id.
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.placeholder(path)
		} else {
			c.logger.Warn("cache read failed", zap.Int("id", id), zap.Error(err))
		}
		return scraper.Artifact{ID: id}
	}
	artifact := scraper.Artifact{ID: id, Content: string(data)}
	artifact.Fresh = c.IsFresh(artifact)
	return artifact
}

func (c *ArtifactCache) placeholder(path string) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304
	if err != nil {
		if !errors.Is(err, fs.ErrExist) {
			c.logger.Warn("create placeholder failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	_ = f.Close()
}

// Put replaces the cached page for id. The write goes to a temporary file
// that is renamed into place, so readers never observe a partial page.
func (c *ArtifactCache) Put(_ context.Context, id int, content string) error {
	tmp, err := os.CreateTemp(c.dir, fmt.Sprintf(".%s-%d-*.tmp", c.target.Entity, id))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.Path(id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// IsFresh reports whether the artifact was retrieved today.
func (c *ArtifactCache) IsFresh(artifact scraper.Artifact) bool {
	return c.fresh.IsFresh(artifact.Content)
}
