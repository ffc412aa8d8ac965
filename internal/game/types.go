// internal/game/types.go
//
// Core type definitions for the Clusters game engine.
// Defines:
//   - Phase: Playing, Animating (feedback before commit) and Over.
//   - Event: outcome notifications for the presentation layer.
//   - SubmitOutcome: the committed result of a submission.
//   - Snapshot: a read-only copy of session state for rendering.

package game

import "github.com/robalobadob/clusters/internal/puzzle"

// Phase is the engine's state machine position.
//   - "playing":   selections and submissions accepted.
//   - "animating": a submission is waiting for its feedback delay to commit.
//   - "over":      mistakes reached a finite tries limit; only Reset leaves it.
type Phase string

const (
	PhasePlaying   Phase = "playing"
	PhaseAnimating Phase = "animating"
	PhaseOver      Phase = "over"
)

// EventKind names an engine notification.
type EventKind string

const (
	EventSelectionChanged EventKind = "selection_changed"
	EventSubmitFeedback   EventKind = "submit_feedback" // before the delay; no state change yet
	EventSubmitOutcome    EventKind = "submit_outcome"  // after commit
	EventGroupFound       EventKind = "group_found"
	EventPuzzleComplete   EventKind = "puzzle_complete"
	EventOneAway          EventKind = "one_away"
	EventGameOver         EventKind = "game_over"
	EventReshuffled       EventKind = "reshuffled"
	EventReset            EventKind = "reset"
)

// Event is delivered to listeners after the engine has released its lock.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind `json:"kind"`
	Selection []string  `json:"selection,omitempty"`
	Valid     bool      `json:"valid,omitempty"`
	OneAway   bool      `json:"oneAway,omitempty"`
	GroupID   string    `json:"groupId,omitempty"`
	AllFound  bool      `json:"allFound,omitempty"`
	Order     []string  `json:"order,omitempty"`
}

// Listener receives engine events. It must not block for long: commits run
// on the scheduler's goroutine.
type Listener func(Event)

// SubmitOutcome is the committed result of one submission.
type SubmitOutcome struct {
	Valid    bool   `json:"valid"`
	OneAway  bool   `json:"oneAway"`
	GroupID  string `json:"groupId,omitempty"`  // set when Valid
	AllFound bool   `json:"allFound"`           // every group solved after this commit
	GameOver bool   `json:"gameOver"`           // tries exhausted by this commit
}

// Snapshot is an immutable copy of session state.
type Snapshot struct {
	Phase       Phase        `json:"phase"`
	Selection   []string     `json:"selection"`
	Found       []string     `json:"found"` // solve order
	Mistakes    int          `json:"mistakes"`
	TriesMax    puzzle.Tries `json:"triesMax"`
	Remaining   int          `json:"mistakesLeft"` // -1 when unlimited
	GroupSize   int          `json:"groupSize"`
	GroupsFound int          `json:"groupsFound"`
	GroupsTotal int          `json:"groupsTotal"`
	Complete    bool         `json:"complete"`
	Over        bool         `json:"over"`
}
