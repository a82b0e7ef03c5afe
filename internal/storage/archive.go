// Package storage archives run outputs into a blob store.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// TSVContentType is attached to archived output files.
const TSVContentType = "text/tab-separated-values"

// Archiver copies local output files to <prefix>/<run id>/<file name>.
type Archiver struct {
	store  scraper.BlobStore
	prefix string
	logger *zap.Logger
}

// NewArchiver returns an Archiver writing through store.
func NewArchiver(store scraper.BlobStore, prefix string, logger *zap.Logger) (*Archiver, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("archive"),
	}, nil
}

// ObjectPath is the destination of a local file for a run.
func (a *Archiver) ObjectPath(runID, file string) string {
	return path.Join(a.prefix, runID, filepath.Base(file))
}

// Archive uploads every file and returns their URIs in the same order. It
// stops at the first failure.
func (a *Archiver) Archive(ctx context.Context, runID string, files []string) ([]string, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	uris := make([]string, 0, len(files))
	for _, file := range files {
		uri, err := a.upload(ctx, runID, file)
		if err != nil {
			return uris, err
		}
		a.logger.Info("archived output", zap.String("file", file), zap.String("uri", uri))
		uris = append(uris, uri)
	}
	return uris, nil
}

func (a *Archiver) upload(ctx context.Context, runID, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("open output %s: %w", file, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			a.logger.Warn("close output", zap.String("file", file), zap.Error(cerr))
		}
	}()
	uri, err := a.store.PutObject(ctx, a.ObjectPath(runID, file), TSVContentType, f)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", file, err)
	}
	return uri, nil
}
