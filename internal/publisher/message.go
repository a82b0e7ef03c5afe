// Package publisher encodes run notifications for the publisher backends.
package publisher

import (
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

// Encode marshals payload to JSON and derives message attributes that let
// subscribers filter without decoding the body.
func Encode(payload any) ([]byte, map[string]string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	attrs := map[string]string{}
	var summary *scraper.RunSummary
	switch v := payload.(type) {
	case scraper.RunSummary:
		summary = &v
	case *scraper.RunSummary:
		summary = v
	}
	if summary != nil {
		attrs["event"] = "run.completed"
		attrs["target"] = summary.Target
		attrs["entity"] = string(summary.Entity)
		attrs["expansion"] = summary.Expansion
		if summary.RunID != "" {
			attrs["run_id"] = summary.RunID
		}
	}
	return data, attrs, nil
}
