// internal/game/engine.go
//
// Core game engine for a single Clusters session.
// Responsibilities:
//   - Normalize and validate the puzzle once, at construction.
//   - Enforce every precondition of Select/Submit/Reshuffle/Reset itself;
//     rejected calls are silent no-ops reported by a false return.
//   - Defer each submission's commit behind a feedback delay (shorter for a
//     correct group) so the presentation layer can play its animation
//     before the model changes under it.
//   - Track state transitions: playing → animating → playing | over.
//
// Notes:
//   - The animating phase is the only guard against overlapping submissions.
//     It is entered before the commit is scheduled and left inside the commit.
//   - Listeners run outside the engine lock and may call back into it.
package game

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/clusters/internal/puzzle"
)

const (
	DefaultValidDelay   = 300 * time.Millisecond
	DefaultInvalidDelay = 500 * time.Millisecond
)

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces the wall clock used to defer commits.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithDelays sets the feedback delay before a valid and an invalid commit.
func WithDelays(valid, invalid time.Duration) Option {
	return func(e *Engine) { e.validDelay, e.invalidDelay = valid, invalid }
}

// WithListener registers l for every event the engine emits.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// WithRand makes shuffles draw from r instead of the global source.
func WithRand(r *rand.Rand) Option { return func(e *Engine) { e.rng = r } }

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// Engine owns one session's State and the normalized puzzle it plays.
type Engine struct {
	mu sync.Mutex

	def    puzzle.Definition
	cards  []puzzle.Card
	index  map[string]int // card id → position in cards
	groups []puzzle.GroupMeta
	state  *State

	sched        Scheduler
	validDelay   time.Duration
	invalidDelay time.Duration
	listeners    []Listener
	rng          *rand.Rand
	log          zerolog.Logger

	pending *commit // non-nil while animating
	closed  bool
}

// commit is a submission waiting for its feedback delay.
type commit struct {
	valid   bool
	oneAway bool
	groupID string
	timer   Timer
	done    chan SubmitOutcome
}

// New validates def and starts a session allowing triesMax mistakes.
func New(def puzzle.Definition, triesMax puzzle.Tries, opts ...Option) (*Engine, error) {
	if err := puzzle.Validate(def); err != nil {
		return nil, err
	}
	cards, groups, size := puzzle.Normalize(def)
	e := &Engine{
		def:          def,
		cards:        cards,
		index:        make(map[string]int, len(cards)),
		groups:       groups,
		state:        newState(size, triesMax),
		sched:        WallClock,
		validDelay:   DefaultValidDelay,
		invalidDelay: DefaultInvalidDelay,
		log:          zerolog.Nop(),
	}
	for i, c := range cards {
		e.index[c.ID] = i
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Select toggles cardID in the selection and returns the resulting selection.
// It is a no-op when the game is over, a submission is animating, the card
// is unknown or already solved, or the selection is full and cardID is not
// in it.
func (e *Engine) Select(cardID string) ([]string, bool) {
	e.mu.Lock()
	s := e.state
	if e.closed || s.phase != PhasePlaying {
		sel := slices.Clone(s.selection)
		e.mu.Unlock()
		return sel, false
	}
	i, ok := e.index[cardID]
	if !ok || s.isFound(e.cards[i].GroupID) || !s.toggle(cardID) {
		sel := slices.Clone(s.selection)
		e.mu.Unlock()
		return sel, false
	}
	sel := slices.Clone(s.selection)
	e.mu.Unlock()

	e.emit(Event{Kind: EventSelectionChanged, Selection: slices.Clone(sel)})
	return sel, true
}

// Clear empties the selection. It is always available.
func (e *Engine) Clear() {
	e.mu.Lock()
	if e.closed || len(e.state.selection) == 0 {
		e.mu.Unlock()
		return
	}
	e.state.selection = e.state.selection[:0]
	e.mu.Unlock()

	e.emit(Event{Kind: EventSelectionChanged, Selection: []string{}})
}

// Submit checks a full selection. The verdict is announced immediately as
// EventSubmitFeedback; state only changes when the commit fires after the
// feedback delay. The returned channel receives the committed outcome and is
// then closed. Submit is a no-op unless the game is playing and exactly
// groupSize cards are selected.
func (e *Engine) Submit() (<-chan SubmitOutcome, bool) {
	e.mu.Lock()
	s := e.state
	if e.closed || s.phase != PhasePlaying || len(s.selection) != s.groupSize {
		e.mu.Unlock()
		return nil, false
	}

	picked := slices.Clone(s.selection)
	counts := make(map[string]int, len(picked))
	for _, id := range picked {
		counts[e.cards[e.index[id]].GroupID]++
	}
	c := &commit{
		valid:   len(counts) == 1,
		groupID: e.cards[e.index[picked[0]]].GroupID,
		done:    make(chan SubmitOutcome, 1),
	}
	if !c.valid {
		for _, n := range counts {
			if n == s.groupSize-1 {
				c.oneAway = true
				break
			}
		}
	}
	s.phase = PhaseAnimating
	e.pending = c
	delay := e.invalidDelay
	if c.valid {
		delay = e.validDelay
	}
	e.mu.Unlock()

	e.emit(Event{Kind: EventSubmitFeedback, Valid: c.valid, Selection: picked})

	t := e.sched.AfterFunc(delay, func() { e.fire(c) })
	e.mu.Lock()
	if e.pending == c {
		c.timer = t
	}
	e.mu.Unlock()
	return c.done, true
}

// fire commits c unless it was already flushed by Close.
func (e *Engine) fire(c *commit) {
	e.mu.Lock()
	if e.pending != c {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	out, events := e.applyLocked(c)
	e.mu.Unlock()

	e.emit(events...)
	c.done <- out
	close(c.done)
}

// applyLocked mutates state for a matured submission and leaves the
// animating phase. Callers hold e.mu.
func (e *Engine) applyLocked(c *commit) (SubmitOutcome, []Event) {
	s := e.state
	out := SubmitOutcome{Valid: c.valid, OneAway: c.oneAway}
	var events []Event

	if c.valid {
		s.markFound(c.groupID)
		s.selection = s.selection[:0]
		out.GroupID = c.groupID
		out.AllFound = len(s.found) == len(e.groups)
		events = append(events,
			Event{Kind: EventSubmitOutcome, Valid: true, GroupID: c.groupID, AllFound: out.AllFound},
			Event{Kind: EventGroupFound, GroupID: c.groupID, AllFound: out.AllFound},
			Event{Kind: EventSelectionChanged, Selection: []string{}},
		)
		if out.AllFound {
			events = append(events, Event{Kind: EventPuzzleComplete})
		}
	} else {
		s.mistakes++
		out.GameOver = s.over()
		events = append(events, Event{Kind: EventSubmitOutcome, OneAway: c.oneAway})
		if c.oneAway {
			events = append(events, Event{Kind: EventOneAway})
		}
		if out.GameOver {
			events = append(events, Event{Kind: EventGameOver})
		}
	}
	s.settle()

	e.log.Debug().
		Bool("valid", c.valid).
		Bool("oneAway", c.oneAway).
		Str("group", c.groupID).
		Int("mistakes", s.mistakes).
		Str("phase", string(s.phase)).
		Msg("submission committed")
	return out, events
}

// Reshuffle returns a fresh uniform permutation of the unsolved cards.
// Selection and found groups are untouched. No-op while animating or over.
func (e *Engine) Reshuffle() ([]puzzle.Card, bool) {
	e.mu.Lock()
	if e.closed || e.state.phase != PhasePlaying {
		e.mu.Unlock()
		return nil, false
	}
	cards := e.remainingLocked()
	e.mu.Unlock()

	order := make([]string, len(cards))
	for i, c := range cards {
		order[i] = c.ID
	}
	e.emit(Event{Kind: EventReshuffled, Order: order})
	return cards, true
}

// Remaining returns the unsolved cards in a new random order on every call;
// the active grid has no persistent display order.
func (e *Engine) Remaining() []puzzle.Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

func (e *Engine) remainingLocked() []puzzle.Card {
	out := make([]puzzle.Card, 0, len(e.cards))
	for _, c := range e.cards {
		if !e.state.isFound(c.GroupID) {
			out = append(out, c)
		}
	}
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if e.rng != nil {
		e.rng.Shuffle(len(out), swap)
	} else {
		rand.Shuffle(len(out), swap)
	}
	return out
}

// Reset clears selection, found groups and mistakes, keeping the puzzle and
// tries limit. It is refused while a submission is animating.
func (e *Engine) Reset() bool {
	e.mu.Lock()
	if e.closed || e.state.phase == PhaseAnimating {
		e.mu.Unlock()
		return false
	}
	e.state.reset()
	e.mu.Unlock()

	e.emit(Event{Kind: EventReset})
	return true
}

// IsOver reports whether a finite tries limit has been reached.
func (e *Engine) IsOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.over()
}

// Snapshot copies the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot(len(e.groups))
}

// Close flushes a pending commit immediately and stops accepting operations.
// Listeners still observe the flushed commit's events.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	c := e.pending
	e.pending = nil
	if c == nil {
		e.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	out, events := e.applyLocked(c)
	e.mu.Unlock()

	e.emit(events...)
	c.done <- out
	close(c.done)
}

// Definition returns the puzzle this session plays.
func (e *Engine) Definition() puzzle.Definition { return e.def }

// Cards returns every card in puzzle order.
func (e *Engine) Cards() []puzzle.Card { return slices.Clone(e.cards) }

// Groups returns group metadata in puzzle order.
func (e *Engine) Groups() []puzzle.GroupMeta { return slices.Clone(e.groups) }

// Found returns solved groups in the order they were solved.
func (e *Engine) Found() []puzzle.GroupMeta {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]puzzle.GroupMeta, 0, len(e.state.found))
	for _, id := range e.state.found {
		for _, g := range e.groups {
			if g.GroupID == id {
				out = append(out, g)
			}
		}
	}
	return out
}

// GroupCards returns the cards of groupID in item order.
func (e *Engine) GroupCards(groupID string) []puzzle.Card {
	var out []puzzle.Card
	for _, c := range e.cards {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) emit(events ...Event) {
	for _, ev := range events {
		for _, l := range e.listeners {
			l(ev)
		}
	}
}
