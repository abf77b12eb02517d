package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weathernow/weathernow/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	conn.SetMaxOpenConns(1)
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		search_seq INTEGER NOT NULL DEFAULT 0,
		card TEXT,
		favorites TEXT NOT NULL DEFAULT '[]',
		history TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

const sessionColumns = "id, search_seq, card, favorites, history, updated_at"

// OpenSession loads or creates a session and refreshes its timestamp.
func (db *DB) OpenSession(ctx context.Context, id string) (*model.Session, error) {
	now := time.Now().UnixMilli()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, updated_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`, id, now)
	if err != nil {
		return nil, err
	}
	return scanSession(db.conn.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
}

// NextSearchSeq increments the search id.
func (db *DB) NextSearchSeq(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := db.conn.QueryRowContext(ctx,
		"UPDATE sessions SET search_seq = search_seq + 1, updated_at = ? WHERE id = ? RETURNING search_seq",
		time.Now().UnixMilli(), id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSessionNotFound
	}
	return seq, err
}

// CommitCard stores the card if seq is still current.
func (db *DB) CommitCard(ctx context.Context, id string, seq int64, card *model.Card) (bool, error) {
	raw, err := encodeCard(card)
	if err != nil {
		return false, err
	}
	res, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET card = ?, updated_at = ? WHERE id = ? AND search_seq = ?",
		raw, time.Now().UnixMilli(), id, seq)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetCardFavorite updates the stored card's favourite state.
func (db *DB) SetCardFavorite(ctx context.Context, id, city string, favorite bool) (*model.Card, error) {
	var raw sql.NullString
	err := db.conn.QueryRowContext(ctx, "SELECT card FROM sessions WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	card, encoded, ok, err := flipCard(raw, city, favorite)
	if err != nil || !ok {
		return nil, err
	}
	// Compare-and-set on the old value: a newer card wins.
	res, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET card = ?, updated_at = ? WHERE id = ? AND card = ?",
		encoded, time.Now().UnixMilli(), id, raw)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return card, nil
}

// SaveRows replaces a panel's rows.
func (db *DB) SaveRows(ctx context.Context, id string, kind model.ListKind, rows []string) error {
	col, err := rowsColumn(kind)
	if err != nil {
		return err
	}
	encoded, err := encodeRows(rows)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET "+col+" = ?, updated_at = ? WHERE id = ?",
		encoded, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSessionsBefore deletes sessions idle since cutoff.
func (db *DB) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
