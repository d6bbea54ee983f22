// Package config provides the settings model for webhost-server.
//
// This package defines the settings document structure and validation:
//
//   - spec.go: Settings, ServerSettings and LogSettings definitions
//   - default.go: Profile-specific default values
//   - verify.go: Field validation (port ranges, enums, window lengths)
//   - sanitize.go: Log sanitization (hide certificate passwords)
//
// Settings are loaded and persisted by internal/infra/confloader. Once
// loaded they are treated as immutable for the lifetime of the process.
package config
