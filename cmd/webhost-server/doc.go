// Command webhost-server serves HTTP and HTTPS from a declarative
// settings document.
//
// Usage:
//
//	webhost-server [--config webhost.yaml] [--profile production|development] [--env-prefix WEBHOST_] [serve]
//	webhost-server [global flags] check [--output table|json|yaml] [--wide]
//
// The settings document is created with profile defaults on first start
// and rewritten after every successful load so new keys appear in it.
// Environment variables such as WEBHOST_WEB_SERVER__HTTP_PORT override
// individual keys in memory without touching the document.
package main
