package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// MatchRow is one session's lifetime as recorded on the authority
type MatchRow struct {
	ID        string
	SessionID string
	Name      string
	StartedAt time.Time
	EndedAt   sql.NullTime
}

// VehicleStatsRow aggregates one vehicle's netcode events within a session
type VehicleStatsRow struct {
	VehicleID string `json:"vehicle"`
	Fired     int    `json:"fired"`
	Rejected  int    `json:"rejected"`
	HitsTaken int    `json:"hits_taken"`
	Pickups   int    `json:"pickups"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		session_id TEXT,
		vehicle_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_matches_session ON matches(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_session ON analytics_events(session_id, vehicle_id);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetSetting returns a persisted server setting, or "" if unset
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting persists a server setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// StartMatch records a new session and returns its time-sortable match id
func (db *DB) StartMatch(sessionID, name string) (string, error) {
	id := ksuid.New().String()
	_, err := db.conn.Exec(`INSERT INTO matches (id, session_id, name, started_at) VALUES (?, ?, ?, ?)`,
		id, sessionID, name, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("start match: %w", err)
	}
	return id, nil
}

// EndMatch stamps the end time of a match
func (db *DB) EndMatch(matchID string) error {
	res, err := db.conn.Exec(`UPDATE matches SET ended_at = ? WHERE id = ?`, time.Now().UTC(), matchID)
	if err != nil {
		return fmt.Errorf("end match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end match %s: %w", matchID, sql.ErrNoRows)
	}
	return nil
}

// GetMatch loads one match row
func (db *DB) GetMatch(matchID string) (*MatchRow, error) {
	m := &MatchRow{}
	err := db.conn.QueryRow(`SELECT id, session_id, name, started_at, ended_at FROM matches WHERE id = ?`, matchID).
		Scan(&m.ID, &m.SessionID, &m.Name, &m.StartedAt, &m.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecentMatches returns the newest matches first; ksuid ids sort by creation time
func (db *DB) RecentMatches(limit int) ([]MatchRow, error) {
	rows, err := db.conn.Query(`SELECT id, session_id, name, started_at, ended_at FROM matches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var m MatchRow
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Name, &m.StartedAt, &m.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SessionStats aggregates netcode events per vehicle for one session
func (db *DB) SessionStats(sessionID string) ([]VehicleStatsRow, error) {
	rows, err := db.conn.Query(`
		SELECT vehicle_id,
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END)
		FROM analytics_events
		WHERE session_id = ? AND vehicle_id IS NOT NULL
		GROUP BY vehicle_id
		ORDER BY vehicle_id
	`, EvtRocketFired, EvtRocketRejected, EvtRocketHit, EvtPickup, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VehicleStatsRow
	for rows.Next() {
		var r VehicleStatsRow
		if err := rows.Scan(&r.VehicleID, &r.Fired, &r.Rejected, &r.HitsTaken, &r.Pickups); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
