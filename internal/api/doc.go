// Package api hosts the optional status server of a scrape run. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the consumer's current position.
package api
