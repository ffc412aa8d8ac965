// internal/puzzle/model.go
//
// Normalization of a puzzle document into flat cards and group metadata.
//
// Ids and colors are derived purely from positions:
//   - group g        → "g{g}", Palette[g % len(Palette)]
//   - item i of g    → "g{g}-i{i}"
//
// Palette wraparound is policy: a puzzle with more than six groups reuses
// colors, so groups 0 and 6 render alike.

package puzzle

import (
	"errors"
	"fmt"
)

// Palette is the fixed group color cycle (yellow, green, blue, purple, pink,
// cyan in darker shades for contrast).
var Palette = [6]string{"#854d0e", "#15803d", "#1d4ed8", "#7e22ce", "#be185d", "#0e7490"}

// fallbackGroupSize is used when neither the document nor its first group
// says how large a group is.
const fallbackGroupSize = 4

// ErrInvalidPuzzle is returned by Validate for structurally unplayable puzzles.
var ErrInvalidPuzzle = errors.New("invalid puzzle")

// GroupID returns the stable id of the group at index g.
func GroupID(g int) string { return fmt.Sprintf("g%d", g) }

// CardID returns the stable id of item i in group g.
func CardID(g, i int) string { return fmt.Sprintf("g%d-i%d", g, i) }

// Color returns the palette entry for group index g.
func Color(g int) string { return Palette[g%len(Palette)] }

// ResolveGroupSize returns the explicit groupSize when set, else the item
// count of the first group, else 4.
func ResolveGroupSize(def Definition) int {
	if def.GroupSize > 0 {
		return int(def.GroupSize)
	}
	if len(def.Groups) > 0 && len(def.Groups[0].Items) > 0 {
		return len(def.Groups[0].Items)
	}
	return fallbackGroupSize
}

// Normalize flattens def into cards (group order, then item order), one
// GroupMeta per group, and the resolved group size. It does not check that
// groups are equally sized; see Validate.
func Normalize(def Definition) ([]Card, []GroupMeta, int) {
	groups := make([]GroupMeta, 0, len(def.Groups))
	var cards []Card

	for g, grp := range def.Groups {
		meta := GroupMeta{
			GroupID:    GroupID(g),
			GroupName:  grp.Name,
			GroupColor: Color(g),
		}
		if meta.GroupName == "" {
			meta.GroupName = fmt.Sprintf("Group %d", g+1)
		}
		groups = append(groups, meta)

		for i, it := range grp.Items {
			content := make([]string, len(it.Content))
			copy(content, it.Content)
			cards = append(cards, Card{
				ID:         CardID(g, i),
				GroupID:    meta.GroupID,
				GroupName:  meta.GroupName,
				GroupColor: meta.GroupColor,
				CaptionTop: it.CaptionTop,
				Content:    content,
			})
		}
	}
	return cards, groups, ResolveGroupSize(def)
}

// Validate rejects puzzles that cannot be completed: no groups, or any group
// whose item count differs from the resolved group size.
func Validate(def Definition) error {
	if len(def.Groups) == 0 {
		return fmt.Errorf("%w: no groups", ErrInvalidPuzzle)
	}
	size := ResolveGroupSize(def)
	for g, grp := range def.Groups {
		if len(grp.Items) != size {
			return fmt.Errorf("%w: group %d has %d items, want %d", ErrInvalidPuzzle, g+1, len(grp.Items), size)
		}
	}
	return nil
}
