// internal/httpserver/server.go
//
// HTTP server wiring for the Clusters backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Catalog endpoints: GET /puzzles, GET /puzzles/{id}.
//   - Session endpoints (optional auth): /sessions/* drive a game.Engine.
//   - Editor endpoints: /editor/check, /editor/skeleton, /editor/share.
//   - Auth, stats and daily endpoints when a database is configured.
//
// Notes:
//   - Without a database the server still plays puzzles; nothing is persisted.
//   - Errors are JSON bodies of the form {"error":"code"}.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/clusters/internal/auth"
	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/config"
	"github.com/robalobadob/clusters/internal/daily"
	"github.com/robalobadob/clusters/internal/game"
	"github.com/robalobadob/clusters/internal/history"
	"github.com/robalobadob/clusters/internal/store"
)

// Options are the Server's dependencies.
type Options struct {
	Config  *config.Config
	Store   store.Store
	Catalog *catalog.Catalog
	// DB enables accounts, history and the daily leaderboard. May be nil.
	DB *sql.DB
	// Scheduler defers submission commits; nil means the wall clock.
	Scheduler game.Scheduler
}

// Server bundles the router and its collaborators.
type Server struct {
	r       *chi.Mux
	cfg     *config.Config
	store   store.Store
	catalog *catalog.Catalog
	sched   game.Scheduler
	tokens  *auth.Tokens

	// nil without a database
	users   *auth.Users
	history *history.Store
	daily   *daily.Store

	now func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(o Options) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     o.Config,
		store:   o.Store,
		catalog: o.Catalog,
		sched:   o.Scheduler,
		tokens:  auth.NewTokens(o.Config.JWTSecret, o.Config.TokenTTL(), o.Config.CookieName, o.Config.IsProduction()),
		now:     time.Now,
	}
	if s.sched == nil {
		s.sched = game.WallClock
	}
	if o.DB != nil {
		s.users = auth.NewUsers(o.DB)
		s.history = history.NewStore(o.DB)
		s.daily = daily.NewStore(o.DB)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(o.Config.ClientOrigin))     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"clusters","endpoints":["/health","/puzzles","POST /sessions","/editor/*","/auth/*","/daily/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.mountCatalog(s.r)
	s.mountSessions(s.r.With(s.withOptionalAuth()))
	s.mountEditor(s.r)
	if s.users != nil {
		s.mountAuth(s.r)
		s.mountDaily(s.r.With(s.withOptionalAuth()))
	}

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ServeHTTP lets the Server be mounted or wrapped like any handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// owner returns who a new game belongs to: the signed-in user or the guest cookie.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (userID, anonID string) {
	if me := auth.FromContext(r.Context()); me != nil {
		return me.ID, ""
	}
	return "", s.tokens.EnsureAnonID(w, r)
}
