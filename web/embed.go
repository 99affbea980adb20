package web

import "embed"

// Content holds the embedded dashboard page (index.html, app.js, styles.css)
// served at "/".
//
//go:embed index.html app.js styles.css
var Content embed.FS
