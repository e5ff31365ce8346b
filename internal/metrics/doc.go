// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stream events by kind, decode errors, bytes read and connection state
//   - Reconnects and backoff attempts
//   - REST request outcomes, latency and rate limiting per class
//   - Recorder rows written and failed batches
//   - Poller cycles
//
// All recording methods are safe to call on a nil *Metrics.
package metrics
