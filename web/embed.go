// Package web embeds the jukebox browser UI: HTML templates and static assets.
package web

import "embed"

// TemplatesFS contains the layouts, pages and partials under templates/.
//
//go:embed all:templates
var TemplatesFS embed.FS

// StaticFS contains the page script and stylesheet under static/.
//
//go:embed all:static
var StaticFS embed.FS
