package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/clusters/assets"
	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/config"
	"github.com/robalobadob/clusters/internal/db"
	"github.com/robalobadob/clusters/internal/puzzle"
	"github.com/robalobadob/clusters/internal/store"
)

const tinyPuzzle = `{"id":"tiny","title":"Tiny","date":"2026-01-01","groups":[
	{"name":"A","items":[{"content":["a1"]},{"content":["a2"]}]},
	{"name":"B","items":[{"content":["b1"]},{"content":["b2"]}]}]}`

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		DBPath:          ":memory:",
		JWTSecret:       "test_secret",
		JWTExpiresDays:  1,
		CookieName:      "clusters_token",
		ClientOrigin:    "http://localhost:5173",
		Environment:     "test",
		DailySalt:       "salt",
		FeedbackValid:   time.Millisecond,
		FeedbackInvalid: time.Millisecond,
		DefaultTries:    "4",
	}
}

func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn, assets.Migrations()))

	cat := catalog.New(fstest.MapFS{
		"manifest.json": {Data: []byte(`{"puzzles":["tiny","broken"]}`)},
		"tiny.json":     {Data: []byte(tinyPuzzle)},
		"broken.json":   {Data: []byte(`{"groups":[`)},
	})
	mem := store.NewMemoryStore()
	srv := New(Options{Config: testConfig(), Store: mem, Catalog: cat, DB: conn})
	return srv, conn
}

// do sends a JSON request, replaying cookies so guest and auth identity stick.
func do(t *testing.T, h http.Handler, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type stateJSON struct {
	Phase        string
	Selection    []string
	Found        []string
	Mistakes     int
	MistakesLeft int `json:"mistakesLeft"`
	GroupsFound  int
	Complete     bool
	Over         bool
}

type viewJSON struct {
	ID     string
	Puzzle struct{ ID, Title string }
	Daily  string
	State  stateJSON
	Cards  []puzzle.Card
	Found  []struct {
		GroupID string `json:"groupId"`
		Cards   []puzzle.Card
	}
}

type actionJSON struct {
	Accepted bool
	State    stateJSON
}

type submitJSON struct {
	Accepted bool
	Outcome  *struct {
		Valid, OneAway, AllFound, GameOver bool
		GroupID                            string `json:"groupId"`
	}
	State stateJSON
}

func TestHealthAndNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, srv, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found","path":"/nope"}`, rec.Body.String())

	rec = do(t, srv, http.MethodOptions, "/sessions", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/puzzles", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]catalog.Entry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "tiny", entries[0].ID)

	rec = do(t, srv, http.MethodGet, "/puzzles/tiny", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tiny", decode[puzzle.Definition](t, rec).Title)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/puzzles/missing", nil, nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, http.MethodGet, "/puzzles/broken", nil, nil).Code)

	rec = do(t, srv, http.MethodGet, "/puzzles/tiny/share", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	def, err := puzzle.Decode(decode[map[string]string](t, rec)["payload"])
	require.NoError(t, err)
	assert.Equal(t, "tiny", def.ID)
}

func TestSessionPlaythrough(t *testing.T) {
	srv, conn := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/sessions", map[string]any{"puzzleId": "tiny", "tries": 1}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	v := decode[viewJSON](t, rec)
	assert.Equal(t, "tiny", v.Puzzle.ID)
	assert.Len(t, v.Cards, 4)
	assert.Equal(t, "playing", v.State.Phase)
	assert.Equal(t, 1, v.State.MistakesLeft)
	base := "/sessions/" + v.ID

	sel := func(id string) actionJSON {
		return decode[actionJSON](t, do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": id}, cookies))
	}
	submit := func() submitJSON {
		rec := do(t, srv, http.MethodPost, base+"/submit", nil, cookies)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[submitJSON](t, rec)
	}

	// Submitting an incomplete selection is rejected.
	assert.True(t, sel("g0-i0").Accepted)
	assert.False(t, submit().Accepted)

	// A wrong pair ends a one-try game.
	assert.True(t, sel("g1-i0").Accepted)
	assert.False(t, sel("g1-i1").Accepted, "selection is full")
	out := submit()
	require.True(t, out.Accepted)
	require.NotNil(t, out.Outcome)
	assert.False(t, out.Outcome.Valid)
	assert.True(t, out.Outcome.OneAway)
	assert.True(t, out.Outcome.GameOver)
	assert.True(t, out.State.Over)
	assert.Equal(t, []string{"g0-i0", "g1-i0"}, out.State.Selection)

	assert.False(t, sel("g0-i1").Accepted)
	shuffle := decode[shuffleRes](t, do(t, srv, http.MethodPost, base+"/shuffle", nil, cookies))
	assert.False(t, shuffle.Accepted)

	var status string
	require.NoError(t, conn.QueryRow(`SELECT status FROM games WHERE id=?`, v.ID).Scan(&status))
	assert.Equal(t, "lost", status)

	// Reset and solve both groups.
	reset := decode[actionJSON](t, do(t, srv, http.MethodPost, base+"/reset", nil, cookies))
	assert.True(t, reset.Accepted)
	assert.Equal(t, "playing", reset.State.Phase)
	assert.Empty(t, reset.State.Selection)
	assert.Zero(t, reset.State.Mistakes)

	sel("g0-i0")
	sel("g0-i1")
	out = submit()
	require.NotNil(t, out.Outcome)
	assert.True(t, out.Outcome.Valid)
	assert.Equal(t, "g0", out.Outcome.GroupID)
	assert.False(t, out.Outcome.AllFound)

	rec = do(t, srv, http.MethodGet, base, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decode[viewJSON](t, rec)
	assert.Len(t, v.Cards, 2)
	require.Len(t, v.Found, 1)
	assert.Equal(t, "g0", v.Found[0].GroupID)
	assert.Len(t, v.Found[0].Cards, 2)

	sel("g1-i1")
	sel("g1-i0")
	out = submit()
	require.NotNil(t, out.Outcome)
	assert.True(t, out.Outcome.AllFound)
	assert.True(t, out.State.Complete)

	require.NoError(t, conn.QueryRow(`SELECT status FROM games WHERE id=?`, v.ID).Scan(&status))
	assert.Equal(t, "won", status)

	rec = do(t, srv, http.MethodDelete, base, nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, base, nil, cookies).Code)
}

func TestCustomSessions(t *testing.T) {
	srv, _ := newTestServer(t)

	var def puzzle.Definition
	require.NoError(t, json.Unmarshal([]byte(tinyPuzzle), &def))
	def.ID = ""
	payload, err := puzzle.Encode(def)
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/sessions", map[string]any{"custom": payload, "tries": "inf"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[viewJSON](t, rec)
	assert.Equal(t, puzzle.CustomID, v.Puzzle.ID)
	assert.Equal(t, -1, v.State.MistakesLeft)

	rec = do(t, srv, http.MethodPost, "/sessions", map[string]any{"custom": "%%%"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"malformed_payload"}`, rec.Body.String())

	uneven, err := puzzle.Encode(puzzle.Definition{Groups: []puzzle.Group{
		{Items: []puzzle.Item{{Content: []string{"a"}}, {Content: []string{"b"}}}},
		{Items: []puzzle.Item{{Content: []string{"c"}}}},
	}})
	require.NoError(t, err)
	rec = do(t, srv, http.MethodPost, "/sessions", map[string]any{"custom": uneven}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/sessions", map[string]any{}, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/sessions", "{", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/sessions/unknown/select", map[string]string{"cardId": "g0-i0"}, nil).Code)
}

func TestAuthStatsAndHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/auth/me", nil, nil).Code)

	// Guest plays first, then signs up and keeps the game.
	rec := do(t, srv, http.MethodPost, "/sessions", map[string]any{"puzzleId": "tiny"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	anon := rec.Result().Cookies()
	require.NotEmpty(t, anon)

	rec = do(t, srv, http.MethodPost, "/auth/signup", map[string]string{"username": "alice", "password": "password1"}, anon)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := append(rec.Result().Cookies(), anon...)

	rec = do(t, srv, http.MethodPost, "/auth/signup", map[string]string{"username": "ALICE", "password": "password1"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, srv, http.MethodPost, "/auth/signup", map[string]string{"username": "a!", "password": "password1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/auth/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[map[string]string](t, rec)["username"])

	rec = do(t, srv, http.MethodGet, "/games/mine", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	// Signed-in win bumps stats.
	rec = do(t, srv, http.MethodPost, "/sessions", map[string]any{"puzzleId": "tiny"}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/sessions/" + decode[viewJSON](t, rec).ID
	for _, group := range [][]string{{"g0-i0", "g0-i1"}, {"g1-i0", "g1-i1"}} {
		for _, id := range group {
			do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": id}, cookies)
		}
		require.True(t, decode[submitJSON](t, do(t, srv, http.MethodPost, base+"/submit", nil, cookies)).Accepted)
	}

	rec = do(t, srv, http.MethodGet, "/stats/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])
	assert.EqualValues(t, 1, stats["streak"])

	rec = do(t, srv, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, srv, http.MethodPost, "/auth/login", map[string]string{"username": "Alice", "password": "password1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/auth/logout", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	bad := []*http.Cookie{{Name: "clusters_token", Value: "garbage"}}
	rec = do(t, srv, http.MethodGet, "/auth/me", nil, bad)
	assert.JSONEq(t, `{"error":"Invalid token"}`, rec.Body.String())
}

func TestEditorRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/editor/check", "{\n  \"id\": ,\n}", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decode[map[string]any](t, rec)
	assert.Equal(t, false, check["valid"])
	assert.EqualValues(t, 2, check["line"])
	assert.Equal(t, "puzzle.json", check["filename"])

	rec = do(t, srv, http.MethodPost, "/editor/check", tinyPuzzle, nil)
	check = decode[map[string]any](t, rec)
	assert.Equal(t, true, check["valid"])
	assert.Equal(t, "tiny.json", check["filename"])

	rec = do(t, srv, http.MethodPost, "/editor/skeleton", map[string]int{"groups": 2, "size": 3}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	skel := decode[puzzle.Definition](t, rec)
	assert.Len(t, skel.Groups, 2)
	assert.Len(t, skel.Groups[1].Items, 3)

	rec = do(t, srv, http.MethodPost, "/editor/skeleton", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[puzzle.Definition](t, rec).Groups, 4)

	rec = do(t, srv, http.MethodPost, "/editor/share", tinyPuzzle, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["url"], "http://localhost:5173/index.html?custom=")

	rec = do(t, srv, http.MethodPost, "/editor/share", "{", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	rec := do(t, srv, http.MethodPost, "/daily/new", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	res := decode[struct {
		Date    string
		Played  bool
		Session *viewJSON
	}](t, rec)
	assert.Equal(t, "2026-03-01", res.Date)
	require.NotNil(t, res.Session)
	assert.Equal(t, "tiny", res.Session.Puzzle.ID)
	assert.Equal(t, "2026-03-01", res.Session.Daily)

	// Asking again resumes the same session.
	rec = do(t, srv, http.MethodPost, "/daily/new", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[struct{ Session *viewJSON }](t, rec)
	require.NotNil(t, again.Session)
	assert.Equal(t, res.Session.ID, again.Session.ID)

	base := "/sessions/" + res.Session.ID
	for _, group := range [][]string{{"g0-i0", "g0-i1"}, {"g1-i0", "g1-i1"}} {
		for _, id := range group {
			do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": id}, cookies)
		}
		do(t, srv, http.MethodPost, base+"/submit", nil, cookies)
	}

	rec = do(t, srv, http.MethodPost, "/daily/new", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct{ Played bool }](t, rec).Played)

	rec = do(t, srv, http.MethodGet, "/daily/leaderboard?date=2026-03-01", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lb := decode[struct {
		Top []struct{ Mistakes int }
	}](t, rec)
	require.Len(t, lb.Top, 1)
	assert.Zero(t, lb.Top[0].Mistakes)

	// The next day starts a fresh session.
	srv.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	rec = do(t, srv, http.MethodPost, "/daily/new", nil, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	next := decode[struct{ Session *viewJSON }](t, rec)
	require.NotNil(t, next.Session)
	assert.NotEqual(t, res.Session.ID, next.Session.ID)
	assert.Equal(t, "2026-03-02", next.Session.Daily)
}

func TestDailyLossIsFinal(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	rec := do(t, srv, http.MethodPost, "/daily/new", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	res := decode[struct{ Session *viewJSON }](t, rec)
	require.NotNil(t, res.Session)
	base := "/sessions/" + res.Session.ID

	for _, id := range []string{"g0-i0", "g1-i0"} {
		do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": id}, cookies)
	}
	var out submitJSON
	for i := 0; i < 4; i++ {
		out = decode[submitJSON](t, do(t, srv, http.MethodPost, base+"/submit", nil, cookies))
	}
	require.NotNil(t, out.Outcome)
	require.True(t, out.Outcome.GameOver)

	reset := decode[actionJSON](t, do(t, srv, http.MethodPost, base+"/reset", nil, cookies))
	assert.False(t, reset.Accepted)
	assert.True(t, reset.State.Over)
	assert.Equal(t, 4, reset.State.Mistakes)

	// Still over, so solving is impossible.
	do(t, srv, http.MethodPost, base+"/clear", nil, cookies)
	for _, id := range []string{"g0-i0", "g0-i1"} {
		do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": id}, cookies)
	}
	assert.False(t, decode[submitJSON](t, do(t, srv, http.MethodPost, base+"/submit", nil, cookies)).Accepted)

	// /daily/new hands back the lost session rather than a fresh one.
	rec = do(t, srv, http.MethodPost, "/daily/new", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[struct{ Session *viewJSON }](t, rec)
	require.NotNil(t, again.Session)
	assert.Equal(t, res.Session.ID, again.Session.ID)
	assert.True(t, again.Session.State.Over)

	rec = do(t, srv, http.MethodGet, "/daily/leaderboard?date=2026-03-02", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct{ Top []json.RawMessage }](t, rec).Top)
}

func TestDailySessionsRollOver(t *testing.T) {
	ds := &dailySessions{ids: make(map[string]string)}

	assert.Equal(t, "s1", ds.claim("2026-03-01", "p", "s1"))
	assert.Equal(t, "s1", ds.claim("2026-03-01", "p", "s2"), "first claim wins")
	id, ok := ds.lookup("2026-03-01", "p")
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	_, ok = ds.lookup("2026-03-02", "p")
	assert.False(t, ok)
	assert.Empty(t, ds.ids, "yesterday's sessions are dropped")

	ds.claim("2026-03-02", "p", "s3")
	ds.forget("2026-03-02", "p", "other")
	id, _ = ds.lookup("2026-03-02", "p")
	assert.Equal(t, "s3", id)
	ds.forget("2026-03-02", "p", "s3")
	_, ok = ds.lookup("2026-03-02", "p")
	assert.False(t, ok)
}

func TestServerWithoutDatabase(t *testing.T) {
	cat := catalog.New(fstest.MapFS{
		"manifest.json": {Data: []byte(`{"puzzles":["tiny"]}`)},
		"tiny.json":     {Data: []byte(tinyPuzzle)},
	})
	srv := New(Options{Config: testConfig(), Store: store.NewMemoryStore(), Catalog: cat})

	rec := do(t, srv, http.MethodPost, "/sessions", map[string]any{"puzzleId": "tiny"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/sessions/" + decode[viewJSON](t, rec).ID
	do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": "g0-i0"}, nil)
	do(t, srv, http.MethodPost, base+"/select", map[string]string{"cardId": "g0-i1"}, nil)
	out := decode[submitJSON](t, do(t, srv, http.MethodPost, base+"/submit", nil, nil))
	require.NotNil(t, out.Outcome)
	assert.True(t, out.Outcome.Valid)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/auth/login", map[string]string{}, nil).Code)
}
