// Package confloader loads and persists the webhost settings document.
//
// The Store reads a YAML document with koanf, layers it over the profile
// defaults, decodes it strictly into config.Settings and validates it.
// Valid documents are written back (atomically, mode 0600) so that new
// fields appear in old files. Errors never overwrite the document.
//
// Priority (highest to lowest):
//
//  1. Environment variables (WEBHOST_WEB_SERVER__HTTP_PORT=9000)
//  2. .env file next to the document
//  3. Settings document
//  4. Profile defaults
//
// Sources 1 and 2 are applied in memory only and are never persisted.
//
// The Watcher reports on-disk edits of the document. Settings are not
// hot-applied; a change requires a restart.
package confloader
