package assets

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Templates returns the code templates, rooted at the templates directory
func Templates() fs.FS {
	fsys, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	return fsys
}

