// Package views holds the server-rendered HTML pages. The components are
// written in .templ files; run `templ generate` after editing them.
package views

//go:generate templ generate

// Chart is one echarts instance: its element id and option JSON.
type Chart struct {
	ID      string
	Options string
}
