// internal/history/history.go
//
// Durable record of played sessions.
// Responsibilities:
//   - One games row per session, owned by a user_id or an anonymous_id.
//   - Finishing a row (won/lost) and bumping the owner's stats in one transaction.
//   - Per-user stats and recent-games queries.
//   - Moving guest games onto an account after signup/login.
//
// Writes are idempotent: finishing a row that is no longer "playing" is a no-op,
// so a flushed commit racing a handler cannot double count.

package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	StatusPlaying = "playing"
	StatusWon     = "won"
	StatusLost    = "lost"
)

// Game is a row of the games table.
type Game struct {
	ID          string `json:"id"`
	UserID      string `json:"-"`
	AnonID      string `json:"-"`
	PuzzleID    string `json:"puzzleId"`
	TriesMax    int    `json:"triesMax"` // -1 for unlimited
	Status      string `json:"status"`
	Mistakes    int    `json:"mistakes"`
	GroupsFound int    `json:"groupsFound"`
	StartedAt   string `json:"startedAt"`
	FinishedAt  string `json:"finishedAt,omitempty"`
}

// Stats are the per-user counters kept on the users table.
type Stats struct {
	ID          string `json:"id"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Streak      int    `json:"streak"`
}

// Store reads and writes the games table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

// stampLayout is fixed-width so timestamps sort lexically.
const stampLayout = "2006-01-02T15:04:05.000Z07:00"

func (s *Store) stamp() string { return s.now().UTC().Format(stampLayout) }

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Start inserts a playing row for g. Either UserID or AnonID should be set.
func (s *Store) Start(ctx context.Context, g Game) error {
	if g.ID == "" || g.PuzzleID == "" {
		return errors.New("history: game id and puzzle id are required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO games (id, user_id, anonymous_id, puzzle_id, tries_max, status, started_at)
	                                 VALUES (?,?,?,?,?,?,?)`,
		g.ID, nullable(g.UserID), nullable(g.AnonID), g.PuzzleID, g.TriesMax, StatusPlaying, s.stamp())
	return err
}

// Restart puts a row back into play after the session was reset.
func (s *Store) Restart(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE games SET status=?, mistakes=0, groups_found=0, started_at=?, finished_at=NULL
	                                 WHERE id=?`, StatusPlaying, s.stamp(), id)
	return err
}

// Finish closes a playing row with status won or lost and, for signed-in
// owners, bumps games played, wins and streak.
func (s *Store) Finish(ctx context.Context, id, status string, mistakes, groupsFound int) error {
	if status != StatusWon && status != StatusLost {
		return errors.New("history: status must be won or lost")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE games SET status=?, mistakes=?, groups_found=?, finished_at=?
	                                 WHERE id=? AND status=?`,
		status, mistakes, groupsFound, s.stamp(), id, StatusPlaying)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	var userID sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM games WHERE id=?`, id).Scan(&userID); err != nil {
		return err
	}
	if userID.Valid {
		if err := bumpStats(ctx, tx, userID.String, status == StatusWon); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// bumpStats increments games played; updates wins and streak based on result.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, won bool) error {
	var gp, wins, streak int
	row := tx.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &wins, &streak); err != nil {
		return err
	}
	gp++
	if won {
		wins++
		streak++
	} else {
		streak = 0
	}
	_, err := tx.ExecContext(ctx, `UPDATE users SET games_played=?, wins=?, streak=? WHERE id=?`, gp, wins, streak, userID)
	return err
}

// Stats returns the counters for userID.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	st := Stats{ID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT games_played, wins, streak FROM users WHERE id=?`, userID).
		Scan(&st.GamesPlayed, &st.Wins, &st.Streak)
	return st, err
}

// Mine returns the user's most recent games, newest first.
func (s *Store) Mine(ctx context.Context, userID string, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, puzzle_id, tries_max, status, mistakes, groups_found, started_at, COALESCE(finished_at,'')
	                                     FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Game{}
	for rows.Next() {
		g := Game{UserID: userID}
		if err := rows.Scan(&g.ID, &g.PuzzleID, &g.TriesMax, &g.Status, &g.Mistakes, &g.GroupsFound, &g.StartedAt, &g.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ClaimAnon transfers a guest's games to userID.
func (s *Store) ClaimAnon(ctx context.Context, anonID, userID string) error {
	if anonID == "" || userID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID)
	return err
}
