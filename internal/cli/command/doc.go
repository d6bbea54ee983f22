// Package command defines the webhost-server command line.
//
// Commands:
//
//   - serve (default): load settings, bind listeners and serve until
//     SIGINT or SIGTERM
//   - check: load settings and print the sanitized effective settings,
//     the admission policies and the listen plan without binding
//
// Global flags select the settings document (--config), the default
// profile (--profile) and the environment override prefix (--env-prefix).
package command
