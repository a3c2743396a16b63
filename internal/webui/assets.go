package webui

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

func staticFS() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
