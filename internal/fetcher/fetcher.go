// Package fetcher returns a page for an ID from the cache, or from the
// network through the rate-limit gate.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/gamedb-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/gamedb-scraper/internal/gate"
	"github.com/JakeFAU/gamedb-scraper/internal/metrics"
	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// ErrCacheWrite marks a failure to persist a fetched page.
var ErrCacheWrite = errors.New("cache write failed")

// errorPageMarkers identify upstream error pages served with a success status.
var errorPageMarkers = []string{
	"error: the request could not be satisfied",
	"504 gateway timeout error",
}

// Client performs one HTTP GET.
type Client interface {
	Get(ctx context.Context, url string) (collyfetcher.Response, error)
}

// Gate serializes rate-limit recovery.
type Gate interface {
	Do(ctx context.Context, attempt gate.Attempt) error
}

// Limiter paces requests.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls network use.
type Config struct {
	BaseURL string
	// Offline serves whatever the cache holds and never touches the network.
	Offline bool
}

// Fetcher implements scraper.Fetcher.
type Fetcher struct {
	target  scraper.Target
	cfg     Config
	cache   scraper.Cache
	client  Client
	gate    Gate
	limiter Limiter
	logger  *zap.Logger
}

// New wires a Fetcher. client and gate may be nil only in offline mode; limiter is optional.
func New(
	target scraper.Target,
	cfg Config,
	cache scraper.Cache,
	client Client,
	g Gate,
	limiter Limiter,
	logger *zap.Logger,
) (*Fetcher, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if !cfg.Offline {
		if client == nil || g == nil {
			return nil, fmt.Errorf("client and gate are required when online")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base url is required when online")
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		target:  target,
		cfg:     cfg,
		cache:   cache,
		client:  client,
		gate:    g,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// FetchOrRead returns today's page for id. Transport errors are returned
// as-is; ErrCacheWrite, gate.ErrRecoveryExhausted and context errors should
// stop the run.
func (f *Fetcher) FetchOrRead(ctx context.Context, id int) (scraper.Artifact, error) {
	cached := f.cache.Get(ctx, id)
	if cached.Fresh {
		metrics.ObserveCacheHit(f.target.Name)
		return cached, nil
	}
	if f.cfg.Offline {
		return cached, nil
	}

	url := f.target.URL(f.cfg.BaseURL, id)
	var resp collyfetcher.Response
	err := f.gate.Do(ctx, func(ctx context.Context) (bool, error) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				return false, err
			}
		}
		r, err := f.client.Get(ctx, url)
		if err != nil {
			return false, err
		}
		metrics.ObserveFetch(f.target.Name, r.StatusCode, r.Duration)
		if r.StatusCode == http.StatusForbidden {
			return true, nil
		}
		resp = r
		return false, nil
	})
	if err != nil {
		return scraper.Artifact{ID: id}, fmt.Errorf("fetch %s: %w", url, err)
	}

	content := string(resp.Body)
	if reason := softFailure(resp.StatusCode, content); reason != "" {
		metrics.ObserveSoftError(f.target.Name)
		f.logger.Warn("upstream returned an error page",
			zap.Int("id", id),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", reason),
		)
	}

	if err := f.cache.Put(ctx, id, content); err != nil {
		return scraper.Artifact{ID: id}, fmt.Errorf("%w: id %d: %w", ErrCacheWrite, id, err)
	}
	artifact := scraper.Artifact{ID: id, Content: content}
	artifact.Fresh = f.cache.IsFresh(artifact)
	return artifact, nil
}

func softFailure(status int, content string) string {
	if status < 200 || status > 299 {
		return fmt.Sprintf("status %d", status)
	}
	lower := strings.ToLower(content)
	for _, marker := range errorPageMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
