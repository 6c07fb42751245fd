package web

import (
	"embed"
	"io/fs"
)

// static holds the embedded HTML, CSS, and JS files.
// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS

// StaticFS returns the embedded UI rooted at static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}
