// Package api hosts the crawler's ops and control HTTP surface. Notable
// routes:
//   - GET /healthz and /readyz for probes; readyz is 503 unless a session is
//     running.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/session, POST /v1/session/start and /v1/session/stop to drive
//     the scheduler.
//   - POST /v1/urls to submit additional URLs to the running session.
//   - GET /v1/pages, /v1/pages/content and /v1/failures to read results.
package api
