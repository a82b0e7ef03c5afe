// Package freshness decides whether a cached page was retrieved today.
//
// Pages embed the upstream server time in their page data, for example
// `"serverTime":"2026-10-16T08:12:44-05:00"`. A page is fresh when it
// contains today's date rendered in the configured layout.
package freshness

import (
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// DefaultLayout renders the marker that prefixes the page's server time.
const DefaultLayout = `"serverTime":"2006-01-02`

// Checker builds today's marker from a clock.
type Checker struct {
	clock    scraper.Clock
	location *time.Location
	layout   string
}

// New returns a Checker. An empty layout uses DefaultLayout and a nil
// location uses UTC.
func New(clock scraper.Clock, location *time.Location, layout string) (*Checker, error) {
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if location == nil {
		location = time.UTC
	}
	if strings.TrimSpace(layout) == "" {
		layout = DefaultLayout
	}
	return &Checker{clock: clock, location: location, layout: layout}, nil
}

// Marker returns the substring a fresh page must contain.
func (c *Checker) Marker() string {
	return c.clock.Now().In(c.location).Format(c.layout)
}

// IsFresh reports whether content carries today's marker.
func (c *Checker) IsFresh(content string) bool {
	if content == "" {
		return false
	}
	return strings.Contains(content, c.Marker())
}
