package game

import (
	"slices"

	"github.com/robalobadob/clusters/internal/puzzle"
)

// State is the mutable part of a session. It is owned by one Engine and
// never handed out; callers see Snapshots.
type State struct {
	selection []string // insertion order, no duplicates, len ≤ groupSize
	found     []string // solve order, no duplicates
	mistakes  int
	triesMax  puzzle.Tries
	groupSize int
	phase     Phase
}

func newState(groupSize int, triesMax puzzle.Tries) *State {
	s := &State{groupSize: groupSize, triesMax: triesMax}
	s.reset()
	return s
}

// reset returns progress to its initial values. Phase is re-derived, so a
// zero-tries session starts (and stays) over.
func (s *State) reset() {
	s.selection = s.selection[:0]
	s.found = s.found[:0]
	s.mistakes = 0
	s.settle()
}

// settle leaves the animating phase, landing on Over or Playing.
func (s *State) settle() {
	if s.over() {
		s.phase = PhaseOver
		return
	}
	s.phase = PhasePlaying
}

func (s *State) over() bool {
	return s.triesMax.Finite() && s.mistakes >= int(s.triesMax)
}

func (s *State) isFound(groupID string) bool { return slices.Contains(s.found, groupID) }

// toggle removes cardID if selected, else adds it when there is room.
// Reports whether the selection changed.
func (s *State) toggle(cardID string) bool {
	if i := slices.Index(s.selection, cardID); i >= 0 {
		s.selection = slices.Delete(s.selection, i, i+1)
		return true
	}
	if len(s.selection) >= s.groupSize {
		return false
	}
	s.selection = append(s.selection, cardID)
	return true
}

func (s *State) markFound(groupID string) {
	if !s.isFound(groupID) {
		s.found = append(s.found, groupID)
	}
}

func (s *State) snapshot(groupsTotal int) Snapshot {
	return Snapshot{
		Phase:       s.phase,
		Selection:   append([]string{}, s.selection...),
		Found:       append([]string{}, s.found...),
		Mistakes:    s.mistakes,
		TriesMax:    s.triesMax,
		Remaining:   s.triesMax.Remaining(s.mistakes),
		GroupSize:   s.groupSize,
		GroupsFound: len(s.found),
		GroupsTotal: groupsTotal,
		Complete:    groupsTotal > 0 && len(s.found) == groupsTotal,
		Over:        s.over(),
	}
}
