// Package api hosts the capture receiver and its operator endpoints. Routes:
//   - POST /save-html accepts a captured search page from the browser
//     extension and stores it in the search results index if its key is new.
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/indices, /v1/search-results[/{key}] and /v1/recruiters[/{key}]
//     for inspecting what has been captured.
//
// Every route except /save-html runs under a request timeout.
package api
