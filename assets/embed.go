// Package assets embeds the bundled puzzle pack and the SQL migrations so
// the server runs without any files next to the binary.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed puzzles/*.json sql/*.sql
var FS embed.FS

// Puzzles returns the bundled pack: manifest.json plus one {id}.json per puzzle.
func Puzzles() fs.FS {
	sub, err := fs.Sub(FS, "puzzles")
	if err != nil {
		panic("assets: puzzles: " + err.Error())
	}
	return sub
}

// Migrations returns the ordered *.sql migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic("assets: sql: " + err.Error())
	}
	return sub
}
