// Package config provides the settings model for webhost-server.
package config

import "time"

// Settings is the root of the persisted settings document.
type Settings struct {
	WebServer ServerSettings `koanf:"web_server"`
	Log       LogSettings    `koanf:"log"`
}

// ServerSettings configures listeners, TLS material and admission policies.
type ServerSettings struct {
	// BindAddress is an IP literal, or "*" for any address.
	BindAddress string `koanf:"bind_address"`

	// HTTPPort is the plain HTTP port; 0 disables the listener.
	HTTPPort int `koanf:"http_port" validate:"gte=0,lte=65535"`

	// HTTPSPort is the TLS port; 0 disables the listener.
	HTTPSPort int `koanf:"https_port" validate:"gte=0,lte=65535"`

	// AllowedHosts filters the Host header. Empty disables filtering.
	AllowedHosts []string `koanf:"allowed_hosts"`

	// CORSAllowedOrigins lists browser origins. Empty disables CORS.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// HSTS sends Strict-Transport-Security on TLS responses.
	HSTS bool `koanf:"hsts"`

	// SSLCertificateFile is a .pem, .pfx, .p12 or extension-less container.
	SSLCertificateFile string `koanf:"ssl_certificate_file"`

	// SSLCertificateKeyFile is only meaningful for PEM certificates.
	SSLCertificateKeyFile string `koanf:"ssl_certificate_key_file"`

	SSLCertificatePassword string `koanf:"ssl_certificate_password"`

	// RateLimit is the permit count per window; <= 0 disables limiting.
	RateLimit int `koanf:"rate_limit"`

	// RateLimitQueue is the FIFO queue depth per partition.
	RateLimitQueue int `koanf:"rate_limit_queue" validate:"gte=0"`

	// RateLimitRate is the window length in seconds.
	RateLimitRate float64 `koanf:"rate_limit_rate" validate:"gt=0"`

	// RateLimitPartition selects the anonymous partition key: "host" or "remote_addr".
	RateLimitPartition string `koanf:"rate_limit_partition" validate:"oneof=host remote_addr"`

	// RateLimitQueueTimeout bounds the wait of a queued request in seconds.
	// 0 means queued requests wait until granted or the client goes away.
	RateLimitQueueTimeout float64 `koanf:"rate_limit_queue_timeout" validate:"gte=0"`

	// StaticRoot is the directory served for unmatched GET requests. Empty disables it.
	StaticRoot string `koanf:"static_root"`

	// MetricsPath exposes Prometheus metrics. Empty disables the endpoint.
	MetricsPath string `koanf:"metrics_path" validate:"omitempty,startswith=/"`
}

// RateLimitEnabled reports whether the fixed-window limiter is configured.
func (s *ServerSettings) RateLimitEnabled() bool {
	return s.RateLimit > 0
}

// RateLimitWindow returns the window length as a duration.
func (s *ServerSettings) RateLimitWindow() time.Duration {
	return secondsToDuration(s.RateLimitRate)
}

// QueueTimeout returns the queued-request wait bound, 0 for none.
func (s *ServerSettings) QueueTimeout() time.Duration {
	return secondsToDuration(s.RateLimitQueueTimeout)
}

// LogSettings configures logging.
type LogSettings struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format     string `koanf:"format" validate:"oneof=json text console"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
