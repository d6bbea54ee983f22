// Package httpserver hosts the webhost HTTP(S) server.
//
// A Server serves every bound listener with one shared handler. The
// handler built by NewRouter runs the middleware chain
//
//	ContextLogger -> Recover -> RequestID -> Audit -> HostFilter -> HSTS
//	  -> CORS -> RateLimit -> RefreshWriteDeadline
//
// in front of a chi router exposing:
//
//   - GET /health: liveness check
//   - GET <metrics_path>: Prometheus metrics
//   - GET /*: static files from static_root
//
// Admission policies come from package admission; a nil policy is skipped.
package httpserver
