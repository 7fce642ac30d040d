// Package web carries the desk's HTML templates and static assets inside the
// binary.
package web

import "embed"

// Templates holds layouts, partials and pages under templates/.
//
//go:embed templates
var Templates embed.FS

// Static holds the stylesheet served under /static/.
//
//go:embed static
var Static embed.FS
