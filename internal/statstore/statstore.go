// Package statstore keeps a local SQLite record of finished sessions for
// scoreboards and post-hoc tuning of the behaviour configs.
package statstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the session database.
type Store struct {
	db *sql.DB
}

// Session is one finished run.
type Session struct {
	ID        string     `json:"id"`
	Seed      string     `json:"seed"`
	Mode      string     `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	Score          int     `json:"score"`
	Shots          int     `json:"shots"`
	Hits           int     `json:"hits"`
	Accuracy       float64 `json:"accuracy"`
	TargetsDowned  int     `json:"targets_downed"`
	TargetsEscaped int     `json:"targets_escaped"`
	BestLevel      int     `json:"best_level"`
	TotalTicks     int     `json:"total_ticks"`
}

// Open creates a store at the given path, migrating the schema as needed.
// The special path ":memory:" keeps everything in process.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statstore: open database: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("statstore: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'classic',
		started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME,
		score INTEGER DEFAULT 0,
		shots INTEGER DEFAULT 0,
		hits INTEGER DEFAULT 0,
		targets_downed INTEGER DEFAULT 0,
		targets_escaped INTEGER DEFAULT 0,
		best_level INTEGER DEFAULT 1,
		total_ticks INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_mode_score ON sessions(mode, score DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSession records a session at the moment it starts.
func (s *Store) CreateSession(id, seed, mode string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, seed, mode, started_at) VALUES (?, ?, ?, ?)`,
		id, seed, mode, time.Now().UTC(),
	)
	return err
}

// EndSession writes the final tallies for a session.
func (s *Store) EndSession(sess Session) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, score = ?, shots = ?, hits = ?,
		 targets_downed = ?, targets_escaped = ?, best_level = ?, total_ticks = ?
		 WHERE id = ?`,
		time.Now().UTC(), sess.Score, sess.Shots, sess.Hits,
		sess.TargetsDowned, sess.TargetsEscaped, sess.BestLevel, sess.TotalTicks,
		sess.ID,
	)
	return err
}

const sessionColumns = `id, seed, mode, started_at, ended_at, score, shots, hits,
	targets_downed, targets_escaped, best_level, total_ticks`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.Seed, &sess.Mode, &sess.StartedAt, &endedAt,
		&sess.Score, &sess.Shots, &sess.Hits,
		&sess.TargetsDowned, &sess.TargetsEscaped, &sess.BestLevel, &sess.TotalTicks)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	if sess.Shots > 0 {
		sess.Accuracy = float64(sess.Hits) / float64(sess.Shots)
	}
	return &sess, nil
}

// GetSession retrieves one session by ID.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// RecentSessions lists the newest sessions first.
func (s *Store) RecentSessions(limit int) ([]*Session, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// Leaderboard lists the highest-scoring finished sessions for a mode.
func (s *Store) Leaderboard(mode string, limit int) ([]*Session, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE mode = ? AND ended_at IS NOT NULL
		 ORDER BY score DESC, started_at ASC LIMIT ?`, mode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*Session, error) {
	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
