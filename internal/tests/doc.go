// Package tests holds end-to-end tests that wire settings, admission,
// listeners and the HTTP server together over real sockets.
package tests
