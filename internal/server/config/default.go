// Package config provides the settings model for webhost-server.
package config

import (
	"fmt"
	"strings"
)

// Profile selects the family of default values used when a setting is
// absent from the document.
type Profile string

// Known profiles.
const (
	ProfileProduction  Profile = "production"
	ProfileDevelopment Profile = "development"
)

// ParseProfile converts a profile name into a Profile.
// Empty input selects ProfileProduction.
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "prod", "production", "release":
		return ProfileProduction, nil
	case "dev", "development", "debug":
		return ProfileDevelopment, nil
	default:
		return "", fmt.Errorf("unknown profile %q (want production or development)", name)
	}
}

// Default configuration values.
const (
	DefaultBindAddress = "*"

	DefaultProductionHTTPPort  = 80
	DefaultDevelopmentHTTPPort = 8080
	DefaultHTTPSPort           = 0

	DefaultProductionHost  = "api.example.com"
	DefaultDevelopmentHost = "localhost"

	DefaultRateLimit          = -1
	DefaultRateLimitQueue     = 2
	DefaultRateLimitRate      = 12.0
	DefaultRateLimitPartition = "host"

	DefaultStaticRoot  = "wwwroot"
	DefaultMetricsPath = "/metrics"

	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogFile       = "logs/webhost.log"
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 31
	DefaultLogMaxAgeDays = 31
)

// Default returns the default settings for the given profile.
func Default(profile Profile) *Settings {
	s := &Settings{
		WebServer: ServerSettings{
			BindAddress:        DefaultBindAddress,
			HTTPPort:           DefaultProductionHTTPPort,
			HTTPSPort:          DefaultHTTPSPort,
			AllowedHosts:       []string{DefaultProductionHost},
			CORSAllowedOrigins: []string{},
			RateLimit:          DefaultRateLimit,
			RateLimitQueue:     DefaultRateLimitQueue,
			RateLimitRate:      DefaultRateLimitRate,
			RateLimitPartition: DefaultRateLimitPartition,
			StaticRoot:         DefaultStaticRoot,
			MetricsPath:        DefaultMetricsPath,
		},
		Log: LogSettings{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			File:       DefaultLogFile,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}

	if profile == ProfileDevelopment {
		s.WebServer.HTTPPort = DefaultDevelopmentHTTPPort
		s.WebServer.AllowedHosts = []string{DefaultDevelopmentHost}
		s.Log.Level = "debug"
	}

	return s
}
