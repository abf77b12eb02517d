// Package database provides storage backends for widget sessions.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weathernow/weathernow/internal/model"
)

// ErrSessionNotFound is returned when an operation targets a session that
// does not exist (or has expired).
var ErrSessionNotFound = errors.New("session not found")

// Store defines the interface for session storage.
// SQLite, PostgreSQL and Redis implementations satisfy this interface.
//
// Every method that mutates a session is atomic with respect to other
// callers working on the same session.
type Store interface {
	Close() error

	// DatabaseType returns the name of the backend ("SQLite", "PostgreSQL", "Redis").
	DatabaseType() string

	// OpenSession returns the session with the given id, creating an empty
	// one if needed, and marks it as recently used.
	OpenSession(ctx context.Context, id string) (*model.Session, error)

	// NextSearchSeq increments and returns the session's search id.
	NextSearchSeq(ctx context.Context, id string) (int64, error)

	// CommitCard stores card (nil clears it) only if seq is still the
	// session's latest search id. It reports whether the write happened.
	CommitCard(ctx context.Context, id string, seq int64, card *model.Card) (bool, error)

	// SetCardFavorite flips the favourite state of the stored card if it
	// shows city. It returns the updated card, or nil if nothing matched.
	SetCardFavorite(ctx context.Context, id, city string, favorite bool) (*model.Card, error)

	// SaveRows replaces the last rendered rows of a panel.
	SaveRows(ctx context.Context, id string, kind model.ListKind, rows []string) error

	// DeleteSessionsBefore removes sessions not used since cutoff.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Open picks a backend by driver name: "sqlite" (dsn is a file path),
// "postgres" (dsn is a connection URL) or "redis" (dsn is a redis URL).
func Open(driver, dsn string, ttl time.Duration) (Store, error) {
	switch driver {
	case "", "sqlite":
		return New(dsn)
	case "postgres":
		return NewPostgres(dsn)
	case "redis":
		return NewRedis(dsn, ttl)
	default:
		return nil, fmt.Errorf("unknown session driver %q", driver)
	}
}

func rowsColumn(kind model.ListKind) (string, error) {
	switch kind {
	case model.ListFavorites:
		return "favorites", nil
	case model.ListHistory:
		return "history", nil
	default:
		return "", fmt.Errorf("unknown list %q", kind)
	}
}

func encodeRows(rows []string) (string, error) {
	if rows == nil {
		rows = []string{}
	}
	b, err := json.Marshal(rows)
	return string(b), err
}

func decodeRows(s string) ([]string, error) {
	rows := []string{}
	if s == "" {
		return rows, nil
	}
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

func encodeCard(card *model.Card) (sql.NullString, error) {
	if card == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(card)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeCard(s sql.NullString) (*model.Card, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var c model.Card
	if err := json.Unmarshal([]byte(s.String), &c); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}
	return &c, nil
}

// flipCard returns the re-encoded card with the favourite flag set, or
// ok=false if the stored card does not show city.
func flipCard(raw sql.NullString, city string, favorite bool) (updated *model.Card, encoded sql.NullString, ok bool, err error) {
	card, err := decodeCard(raw)
	if err != nil || card == nil || card.City != city {
		return nil, sql.NullString{}, false, err
	}
	card.Favorite = favorite
	encoded, err = encodeCard(card)
	if err != nil {
		return nil, sql.NullString{}, false, err
	}
	return card, encoded, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s         model.Session
		card      sql.NullString
		favorites string
		history   string
		updated   int64
	)
	if err := row.Scan(&s.ID, &s.SearchSeq, &card, &favorites, &history, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var err error
	if s.Card, err = decodeCard(card); err != nil {
		return nil, err
	}
	if s.Favorites, err = decodeRows(favorites); err != nil {
		return nil, err
	}
	if s.History, err = decodeRows(history); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.UnixMilli(updated)
	return &s, nil
}
