package scraper

import (
	"context"
	"io"
	"time"
)

// Cache persists raw artifacts keyed by ID.
type Cache interface {
	Get(ctx context.Context, id int) Artifact
	Put(ctx context.Context, id int, content string) error
	IsFresh(artifact Artifact) bool
}

// Fetcher returns the artifact for an ID, from cache or network.
type Fetcher interface {
	FetchOrRead(ctx context.Context, id int) (Artifact, error)
}

// Extractor turns artifact content into a Record. Implementations must be
// pure and must not fail: malformed input yields a Record with a Reason.
type Extractor interface {
	Extract(id int, content string) Record
	// Header returns the column names of the available output.
	Header() []string
}

// Sink receives records in ID order.
type Sink interface {
	Write(ctx context.Context, record Record) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes output files and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
