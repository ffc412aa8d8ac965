// internal/puzzle/types.go
//
// Puzzle document types and the derived, addressable card/group model.
// Defines:
//   - Definition/Group/Item: the JSON puzzle document as authored.
//   - Card: one selectable tile, denormalized with its group's name and color.
//   - GroupMeta: per-group id, display name and color.

package puzzle

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Definition is a puzzle as loaded from disk, the network or a share link.
// It is treated as immutable once loaded.
type Definition struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Date      string  `json:"date"`
	Author    string  `json:"author"`
	GroupSize Size    `json:"groupSize,omitempty"` // 0 means "use the first group's length"
	Groups    []Group `json:"groups"`
}

// Group is an authored set of related items. Name is optional.
type Group struct {
	Name  string `json:"name,omitempty"`
	Items []Item `json:"items"`
}

// Item is a single authored tile: an optional caption and one or more
// content lines. Both may carry inline ($...$) or display ($$...$$) math.
type Item struct {
	CaptionTop string   `json:"captionTop,omitempty"`
	Content    []string `json:"content"`
}

// Card is an Item addressed by a stable id and bound to its group.
type Card struct {
	ID         string   `json:"id"`
	GroupID    string   `json:"groupId"`
	GroupName  string   `json:"groupName"`
	GroupColor string   `json:"groupColor"`
	CaptionTop string   `json:"captionTop,omitempty"`
	Content    []string `json:"content"`
}

// GroupMeta describes one group of a normalized puzzle.
type GroupMeta struct {
	GroupID    string `json:"groupId"`
	GroupName  string `json:"groupName"`
	GroupColor string `json:"groupColor"`
}

// Size is the optional puzzle-level groupSize. Authors write it either as a
// number or as a numeric string; anything unparsable reads as absent.
type Size int

// UnmarshalJSON accepts 4, "4" and "4 cards" (leading integer wins).
func (s *Size) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := strconv.ParseFloat(string(n), 64); err == nil {
			*s = Size(int(v))
			return nil
		}
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		v, _ := leadingInt(str)
		*s = Size(v)
		return nil
	}
	// null, booleans and objects fall back to "absent"
	*s = 0
	return nil
}

// leadingInt parses an optional sign and the leading run of decimal digits,
// ignoring surrounding whitespace and any trailing garbage.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
