// internal/catalog/catalog.go
//
// Puzzle pack loading for the game server.
//
// Responsibilities:
//   - Read the manifest listing available puzzle ids.
//   - Load and validate individual puzzle documents ({id}.json).
//   - Build the home-screen listing (id, title, date, author).
//
// Sources:
//   1. If PUZZLES_DIR is set, puzzles are read from that directory.
//   2. Otherwise the embedded pack from the assets package is used.
//
// Manifest format:
//   {"puzzles": ["id-1", {"id": "id-2"}, ...]}
//
// Constraints:
//   • Puzzle ids are limited to letters, digits, '-' and '_' so an id can
//     never escape the pack directory.
//   • Listing skips puzzles that fail to load.

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/clusters/assets"
	"github.com/robalobadob/clusters/internal/puzzle"
)

// ErrNotFound is returned for ids that are malformed or absent from the pack.
var ErrNotFound = errors.New("puzzle not found")

const manifestFile = "manifest.json"

// Entry is one row of the puzzle listing.
type Entry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   string `json:"date"`
	Author string `json:"author"`
}

// Catalog reads puzzles from a flat file system.
type Catalog struct {
	fsys fs.FS
}

// New returns a Catalog over fsys.
func New(fsys fs.FS) *Catalog { return &Catalog{fsys: fsys} }

// Open returns a Catalog over dir, or over the embedded pack when dir is empty.
func Open(dir string) *Catalog {
	if dir != "" {
		return New(os.DirFS(dir))
	}
	return New(assets.Puzzles())
}

// manifest entries are either bare ids or objects carrying an id.
type manifest struct {
	Puzzles []json.RawMessage `json:"puzzles"`
}

// IDs returns the manifest's puzzle ids in listed order.
func (c *Catalog) IDs() ([]string, error) {
	raw, err := fs.ReadFile(c.fsys, manifestFile)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	ids := make([]string, 0, len(m.Puzzles))
	for _, entry := range m.Puzzles {
		var id string
		if err := json.Unmarshal(entry, &id); err != nil {
			var obj struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(entry, &obj); err != nil {
				continue
			}
			id = obj.ID
		}
		if validID(id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// List loads every manifest puzzle and returns its listing entry.
func (c *Catalog) List() ([]Entry, error) {
	ids, err := c.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		def, err := c.Load(id)
		if err != nil {
			log.Warn().Err(err).Str("puzzle", id).Msg("skipping puzzle")
			continue
		}
		out = append(out, Entry{ID: id, Title: def.Title, Date: def.Date, Author: def.Author})
	}
	return out, nil
}

// Load reads and validates the puzzle with the given id. A document without
// its own id takes the file's.
func (c *Catalog) Load(id string) (puzzle.Definition, error) {
	var def puzzle.Definition
	if !validID(id) {
		return def, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	raw, err := fs.ReadFile(c.fsys, id+".json")
	if errors.Is(err, fs.ErrNotExist) {
		return def, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return def, fmt.Errorf("read puzzle %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &def); err != nil {
		return def, fmt.Errorf("parse puzzle %s: %w", id, err)
	}
	if def.ID == "" {
		def.ID = id
	}
	if err := puzzle.Validate(def); err != nil {
		return def, fmt.Errorf("puzzle %s: %w", id, err)
	}
	return def, nil
}

func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
