// Package metric provides Prometheus metrics for webhost-server.
//
// Metrics include:
//
//   - Rate limiter decisions, partition count and queue wait time
//   - Host filter rejections and CORS preflights
//   - Request counts and latency histograms
//   - Bound listeners per scheme
//
// Each Registry owns a private prometheus.Registry. Metrics are exposed at
// the configured metrics path (default /metrics).
package metric
