package prompts

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.txt.tmpl
var templatesFS embed.FS

// FS returns the embedded prompt templates.
func FS() fs.FS { return templatesFS }
