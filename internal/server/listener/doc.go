// Package listener turns server settings into bound network listeners.
//
// Planning and binding are separate steps. Plan validates the port
// configuration, resolves the bind address and loads the TLS identity for
// the HTTPS slot; nothing touches the network yet. Plan.Bind then opens
// every planned socket, or none of them.
//
// Slots:
//
//   - HTTP: plain listener when http_port > 0
//   - HTTPS: TLS listener when https_port > 0, using the configured
//     certificate or, when none is configured, a development identity
package listener
