// internal/httpserver/routes_sessions.go
//
// HTTP routes that drive a game.Engine.
//   - POST   /sessions              → start a session from {puzzleId} or {custom}
//   - GET    /sessions/{id}         → full view (state, shuffled grid, solved rows)
//   - POST   /sessions/{id}/select  → toggle {cardId}
//   - POST   /sessions/{id}/clear   → empty the selection
//   - POST   /sessions/{id}/submit  → check the selection; waits for the commit
//   - POST   /sessions/{id}/shuffle → new grid order
//   - POST   /sessions/{id}/reset   → start over with the same puzzle (not for dailies)
//   - DELETE /sessions/{id}         → end the session
//
// Rejected engine calls are not errors: the response carries accepted=false
// and the unchanged state.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/clusters/internal/daily"
	"github.com/robalobadob/clusters/internal/game"
	"github.com/robalobadob/clusters/internal/history"
	"github.com/robalobadob/clusters/internal/puzzle"
	"github.com/robalobadob/clusters/internal/store"
)

// mountSessions registers all /sessions routes.
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleNewSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleGetSession))
			r.Delete("/", s.handleDeleteSession)
			r.Post("/select", s.withSession(s.handleSelect))
			r.Post("/clear", s.withSession(s.handleClear))
			r.Post("/submit", s.withSession(s.handleSubmit))
			r.Post("/shuffle", s.withSession(s.handleShuffle))
			r.Post("/reset", s.withSession(s.handleReset))
		})
	})
}

// newSessionReq is the payload for POST /sessions. Tries accepts a number or
// a string such as "inf"; empty means the server default.
type newSessionReq struct {
	PuzzleID string `json:"puzzleId"`
	Custom   string `json:"custom"`
	Tries    any    `json:"tries"`
}

type puzzleMeta struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Date   string `json:"date,omitempty"`
	Author string `json:"author,omitempty"`
}

// foundRow is a solved group as the presentation layer lays it out.
type foundRow struct {
	puzzle.GroupMeta
	Cards []puzzle.Card `json:"cards"`
}

type sessionView struct {
	ID     string        `json:"id"`
	Puzzle puzzleMeta    `json:"puzzle"`
	Daily  string        `json:"daily,omitempty"`
	State  game.Snapshot `json:"state"`
	Cards  []puzzle.Card `json:"cards"` // unsolved, freshly shuffled
	Found  []foundRow    `json:"found"` // solve order
}

func view(sess *store.Session) sessionView {
	e := sess.Engine
	def := e.Definition()
	v := sessionView{
		ID:     sess.ID,
		Puzzle: puzzleMeta{ID: def.ID, Title: def.Title, Date: def.Date, Author: def.Author},
		Daily:  sess.DailyDate,
		State:  e.Snapshot(),
		Cards:  e.Remaining(),
		Found:  []foundRow{},
	}
	for _, g := range e.Found() {
		v.Found = append(v.Found, foundRow{GroupMeta: g, Cards: e.GroupCards(g.GroupID)})
	}
	return v
}

type actionRes struct {
	Accepted bool          `json:"accepted"`
	State    game.Snapshot `json:"state"`
}

func triesArg(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%d", int64(t))
	default:
		return fmt.Sprint(t)
	}
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	var def puzzle.Definition
	switch {
	case req.Custom != "":
		d, err := puzzle.Decode(req.Custom)
		if err != nil {
			log.Warn().Err(err).Msg("decode custom puzzle")
			writeError(w, http.StatusBadRequest, "malformed_payload")
			return
		}
		if err := puzzle.Validate(d); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_puzzle")
			return
		}
		def = d
	case req.PuzzleID != "":
		d, ok := s.loadPuzzle(w, req.PuzzleID)
		if !ok {
			return
		}
		def = d
	default:
		writeError(w, http.StatusBadRequest, "puzzle_required")
		return
	}

	tries := s.cfg.Tries()
	if raw := triesArg(req.Tries); raw != "" {
		tries = puzzle.ParseTries(raw)
	}

	sess, err := s.startSession(w, r, def, tries, "")
	if err != nil {
		log.Error().Err(err).Msg("start session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusCreated, view(sess))
}

// startSession builds the engine, stores the session and opens its history row.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, def puzzle.Definition, tries puzzle.Tries, dailyDate string) (*store.Session, error) {
	userID, anonID := s.owner(w, r)
	now := s.now()
	sess := &store.Session{
		ID:        uuid.NewString(),
		PuzzleID:  def.ID,
		UserID:    userID,
		AnonID:    anonID,
		DailyDate: dailyDate,
		StartedAt: now,
	}
	e, err := game.New(def, tries,
		game.WithScheduler(s.sched),
		game.WithDelays(s.cfg.FeedbackValid, s.cfg.FeedbackInvalid),
		game.WithLogger(log.With().Str("session", sess.ID).Logger()),
		game.WithListener(s.recorder(sess)),
	)
	if err != nil {
		return nil, err
	}
	sess.Engine = e

	if err := s.store.Save(r.Context(), sess); err != nil {
		e.Close()
		return nil, err
	}
	if s.history != nil {
		if err := s.history.Start(r.Context(), history.Game{
			ID: sess.ID, UserID: userID, AnonID: anonID, PuzzleID: def.ID, TriesMax: int(tries),
		}); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("insert game row")
		}
	}
	log.Info().Str("session", sess.ID).Str("puzzle", def.ID).Str("tries", tries.String()).Msg("session started")
	return sess, nil
}

// recorder persists terminal events. It runs on whichever goroutine
// committed the submission, after the engine lock is released.
func (s *Server) recorder(sess *store.Session) game.Listener {
	return func(ev game.Event) {
		if s.history == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		switch ev.Kind {
		case game.EventPuzzleComplete, game.EventGameOver:
			snap := sess.Engine.Snapshot()
			status := history.StatusWon
			if ev.Kind == game.EventGameOver {
				status = history.StatusLost
			}
			if err := s.history.Finish(ctx, sess.ID, status, snap.Mistakes, snap.GroupsFound); err != nil {
				log.Warn().Err(err).Str("session", sess.ID).Msg("finish game")
			}
			if status == history.StatusWon && sess.DailyDate != "" {
				s.recordDaily(ctx, sess, snap.Mistakes)
			}
			log.Info().Str("session", sess.ID).Str("status", status).Int("mistakes", snap.Mistakes).Msg("session finished")
		case game.EventReset:
			if err := s.history.Restart(ctx, sess.ID); err != nil {
				log.Warn().Err(err).Str("session", sess.ID).Msg("restart game")
			}
		}
	}
}

func (s *Server) recordDaily(ctx context.Context, sess *store.Session, mistakes int) {
	who := sess.UserID
	if who == "" {
		who = sess.AnonID
	}
	err := s.daily.InsertResult(ctx, daily.Result{
		UserID:    who,
		Date:      sess.DailyDate,
		PuzzleID:  sess.PuzzleID,
		Mistakes:  mistakes,
		ElapsedMs: s.now().Sub(sess.StartedAt).Milliseconds(),
	})
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("insert daily result")
	}
}

// withSession resolves {id} and hands the session to h.
func (s *Server) withSession(h func(http.ResponseWriter, *http.Request, *store.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_error")
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	writeJSON(w, http.StatusOK, view(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type selectReq struct {
	CardID string `json:"cardId"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID == "" {
		writeError(w, http.StatusBadRequest, "card_required")
		return
	}
	_, ok := sess.Engine.Select(req.CardID)
	writeJSON(w, http.StatusOK, actionRes{Accepted: ok, State: sess.Engine.Snapshot()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Engine.Clear()
	writeJSON(w, http.StatusOK, actionRes{Accepted: true, State: sess.Engine.Snapshot()})
}

type submitRes struct {
	Accepted bool                `json:"accepted"`
	Outcome  *game.SubmitOutcome `json:"outcome,omitempty"`
	Pending  bool                `json:"pending,omitempty"` // request ended before the commit
	State    game.Snapshot       `json:"state"`
	Found    []foundRow          `json:"found,omitempty"` // set when a group was solved
}

// handleSubmit returns once the submission has committed so the client can
// play its own feedback animation for the returned outcome.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	done, ok := sess.Engine.Submit()
	if !ok {
		writeJSON(w, http.StatusOK, submitRes{Accepted: false, State: sess.Engine.Snapshot()})
		return
	}
	select {
	case out, open := <-done:
		res := submitRes{Accepted: true, State: sess.Engine.Snapshot()}
		if open {
			res.Outcome = &out
		}
		if out.Valid {
			for _, g := range sess.Engine.Found() {
				res.Found = append(res.Found, foundRow{GroupMeta: g, Cards: sess.Engine.GroupCards(g.GroupID)})
			}
		}
		writeJSON(w, http.StatusOK, res)
	case <-r.Context().Done():
		writeJSON(w, http.StatusAccepted, submitRes{Accepted: true, Pending: true, State: sess.Engine.Snapshot()})
	}
}

type shuffleRes struct {
	Accepted bool          `json:"accepted"`
	Cards    []puzzle.Card `json:"cards"`
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	cards, ok := sess.Engine.Reshuffle()
	if !ok {
		cards = []puzzle.Card{}
	}
	writeJSON(w, http.StatusOK, shuffleRes{Accepted: ok, Cards: cards})
}

// handleReset starts the puzzle over. Daily sessions are one attempt per
// player and day, so they cannot be reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if sess.DailyDate != "" {
		writeJSON(w, http.StatusOK, actionRes{Accepted: false, State: sess.Engine.Snapshot()})
		return
	}
	ok := sess.Engine.Reset()
	writeJSON(w, http.StatusOK, actionRes{Accepted: ok, State: sess.Engine.Snapshot()})
}
