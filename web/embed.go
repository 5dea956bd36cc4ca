// Package web embeds the browser page that follows the render stream.
package web

import "embed"

// Content holds index.html, app.js and styles.css at its root.
//
//go:embed index.html app.js styles.css
var Content embed.FS
