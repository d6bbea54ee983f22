// Package config provides the settings model for webhost-server.
package config

import "slices"

// Sanitize returns a copy of the settings with sensitive fields masked.
//
// This is used for logging and printing settings without exposing secrets.
func Sanitize(s *Settings) *Settings {
	sanitized := *s
	sanitized.WebServer.AllowedHosts = slices.Clone(s.WebServer.AllowedHosts)
	sanitized.WebServer.CORSAllowedOrigins = slices.Clone(s.WebServer.CORSAllowedOrigins)

	if sanitized.WebServer.SSLCertificatePassword != "" {
		sanitized.WebServer.SSLCertificatePassword = secretMask
	}

	return &sanitized
}

// secretMask replaces a secret entirely; no part of it, not even its
// length, is revealed.
const secretMask = "****"
