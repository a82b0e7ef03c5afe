package sink

import (
	"context"
	"errors"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// Multi fans each record out to several sinks in order.
type Multi []scraper.Sink

// Write stops at the first failing sink.
func (m Multi) Write(ctx context.Context, record scraper.Record) error {
	for _, s := range m {
		if err := s.Write(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
