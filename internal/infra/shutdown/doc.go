// Package shutdown provides graceful shutdown for webhost-server.
//
// A Handler waits for SIGINT, SIGTERM or the cancellation of its context,
// then runs the registered hooks in reverse registration order under a
// shared timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("http server", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
