// Package editor implements the non-visual half of the puzzle editor:
// skeleton generation, JSON checking with error positions, download file
// names and share links.
package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robalobadob/clusters/internal/puzzle"
)

// Diagnostic is the result of checking editor text.
type Diagnostic struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	// Position of a JSON error; zero when unknown or Valid.
	Offset int `json:"offset,omitempty"` // 0-based byte index of the offending byte
	Line   int `json:"line,omitempty"`   // 1-based
	Col    int `json:"col,omitempty"`    // 1-based, in bytes
	// Problem is set when the JSON parses but the puzzle is unplayable.
	Problem string `json:"problem,omitempty"`
}

// Skeleton returns a template puzzle with groups×size placeholder items.
func Skeleton(groups, size int, date time.Time) puzzle.Definition {
	if groups < 1 {
		groups = 4
	}
	if size < 1 {
		size = 4
	}
	day := date.Format("2006-01-02")
	def := puzzle.Definition{
		ID:        "puzzle-" + day,
		Title:     "New Puzzle",
		Date:      day,
		Author:    "Your Name",
		GroupSize: puzzle.Size(size),
		Groups:    make([]puzzle.Group, 0, groups),
	}
	for i := 0; i < groups; i++ {
		g := puzzle.Group{Name: fmt.Sprintf("Group %d", i+1)}
		for j := 0; j < size; j++ {
			g.Items = append(g.Items, puzzle.Item{Content: []string{fmt.Sprintf("Item %d.%d", i+1, j+1)}})
		}
		def.Groups = append(def.Groups, g)
	}
	return def
}

// Pretty renders def the way the editor shows it: two-space indentation.
func Pretty(def puzzle.Definition) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(def); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Check parses raw as a puzzle. Syntax and type errors are located by line
// and column; a parseable but unplayable puzzle is reported in Problem with
// Valid still true, since the text itself is well-formed JSON.
func Check(raw []byte) (Diagnostic, *puzzle.Definition) {
	var def puzzle.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		d := Diagnostic{Message: err.Error(), Offset: -1}
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syn):
			d.Offset = int(syn.Offset) - 1
		case errors.As(err, &typ):
			d.Offset = int(typ.Offset) - 1
		}
		if d.Offset >= 0 {
			if d.Offset >= len(raw) {
				d.Offset = len(raw) - 1
			}
			d.Line, d.Col = position(raw, d.Offset)
		} else {
			d.Offset = 0
		}
		return d, nil
	}
	d := Diagnostic{Valid: true}
	if err := puzzle.Validate(def); err != nil {
		d.Problem = err.Error()
	}
	return d, &def
}

// position converts a byte offset into 1-based line and column.
func position(raw []byte, off int) (line, col int) {
	if off < 0 {
		return 0, 0
	}
	before := raw[:off]
	line = bytes.Count(before, []byte{'\n'}) + 1
	col = off - bytes.LastIndexByte(before, '\n')
	return line, col
}

// Filename returns "{id}.json" for a parseable document with an id, else
// "puzzle.json".
func Filename(raw []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &head) == nil {
		if id := strings.TrimSpace(head.ID); id != "" && !strings.ContainsAny(id, `/\`) {
			return id + ".json"
		}
	}
	return "puzzle.json"
}

// ShareURL validates raw, encodes it and returns the play link rooted at base
// (for example "https://example.org/clusters/"). The link targets
// index.html with the payload in the "custom" parameter.
func ShareURL(base string, raw []byte) (string, error) {
	payload, err := puzzle.EncodeJSON(raw)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u = u.ResolveReference(&url.URL{Path: "index.html"})
	q := u.Query()
	q.Set("custom", payload)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
