// Package dashboard embeds the status page served by the status API.
//
// The page lists every check from /api/checks and patches rows in place
// from the /api/events stream, so a browser shows live state without a
// separate frontend build.
package dashboard

import "embed"

// Assets holds the status page.
//
//	assets/
//	  index.html    - status table with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
