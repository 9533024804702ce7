// Package public embeds the static assets and page templates.
package public

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var static embed.FS

//go:embed templates/*.tmpl
var templates embed.FS

// StaticFS serves the files under static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(static, "static")
}

// TemplatesFS holds the page templates.
func TemplatesFS() (fs.FS, error) {
	return fs.Sub(templates, "templates")
}
