// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily puzzle.
//   - POST /daily/new         → start (or resume) today's session
//   - GET  /daily/leaderboard → top 20 results for today (or ?date=)
//
// Each player can finish the daily once per day (UNIQUE(user_id, date)).
// The puzzle is picked from the catalog listing by HMAC(salt, date).
// A finished daily is recorded by the session recorder, not here.

package httpserver

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/clusters/internal/daily"
)

// dailySessions remembers today's session per player so /daily/new resumes it.
type dailySessions struct {
	mu   sync.Mutex
	date string            // day the ids belong to
	ids  map[string]string // player → session id
}

// lookup returns the player's session id for date. Entries from earlier
// days are dropped.
func (ds *dailySessions) lookup(date, player string) (string, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.date != date {
		ds.date = date
		ds.ids = make(map[string]string)
	}
	id, ok := ds.ids[player]
	return id, ok
}

// claim records id for player unless another request got there first; it
// returns the id that won.
func (ds *dailySessions) claim(date, player, id string) string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.date != date {
		ds.date = date
		ds.ids = make(map[string]string)
	}
	if prev, ok := ds.ids[player]; ok {
		return prev
	}
	ds.ids[player] = id
	return id
}

func (ds *dailySessions) forget(date, player, id string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.date == date && ds.ids[player] == id {
		delete(ds.ids, player)
	}
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	ds := &dailySessions{ids: make(map[string]string)}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", func(w http.ResponseWriter, r *http.Request) { s.handleDailyNew(w, r, ds) })
		r.Get("/leaderboard", s.handleLeaderboard)
	})
}

type dailyNewRes struct {
	Date    string       `json:"date"`
	Played  bool         `json:"played"`
	Session *sessionView `json:"session,omitempty"`
}

func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request, ds *dailySessions) {
	userID, anonID := s.owner(w, r)
	player := userID
	if player == "" {
		player = anonID
	}
	now := s.now()
	date := daily.DateKey(now)

	if played, err := s.daily.AlreadyPlayed(r.Context(), player, date); err == nil && played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	if id, ok := ds.lookup(date, player); ok {
		if sess, err := s.store.Get(r.Context(), id); err == nil {
			v := view(sess)
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Session: &v})
			return
		}
		ds.forget(date, player, id)
	}

	// List skips puzzles that fail to load.
	entries, err := s.catalog.List()
	if err != nil || len(entries) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no_puzzles")
		return
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	id := daily.Pick(now, s.cfg.DailySalt, ids)
	def, ok := s.loadPuzzle(w, id)
	if !ok {
		return
	}
	sess, err := s.startSession(w, r, def, s.cfg.Tries(), date)
	if err != nil {
		log.Error().Err(err).Str("puzzle", id).Msg("start daily session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	// A concurrent request for the same player may have started one too;
	// keep the first and drop ours.
	if won := ds.claim(date, player, sess.ID); won != sess.ID {
		_ = s.store.Delete(r.Context(), sess.ID)
		if existing, err := s.store.Get(r.Context(), won); err == nil {
			v := view(existing)
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Session: &v})
			return
		}
		ds.forget(date, player, won)
		writeError(w, http.StatusConflict, "daily_retry")
		return
	}
	v := view(sess)
	writeJSON(w, http.StatusCreated, dailyNewRes{Date: date, Session: &v})
}

type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(s.now())
	}
	rows, err := s.daily.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
