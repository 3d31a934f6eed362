// Package panel serves a read-only status dashboard for the pool controller.
//
// The dashboard is a single HTML page that polls the REST API for device
// health, identity and the structured value snapshot. Its assets are
// embedded with go:embed; a directory on disk can override them.
package panel
