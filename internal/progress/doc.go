// Package progress carries crawl session and fetch lifecycle events from the
// scheduler to pluggable sinks. Emitting never blocks the caller: events are
// buffered, batched on a background goroutine, and fanned out to sinks such as
// structured logs or Prometheus collectors.
package progress
