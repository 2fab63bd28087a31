// Package static embeds the registration page served at the web root.
package static

import (
	"embed"
	"io/fs"
)

//go:embed dist
var distFS embed.FS

// FS returns the embedded assets rooted at dist.
func FS() fs.FS {
	fsys, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

// IndexPage returns the registration page.
func IndexPage() []byte {
	data, err := fs.ReadFile(distFS, "dist/index.html")
	if err != nil {
		panic(err)
	}
	return data
}
