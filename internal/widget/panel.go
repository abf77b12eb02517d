package widget

import (
	"context"
	"log/slog"

	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/model"
)

// ListPanel is one of the two side lists.
type ListPanel struct {
	kind    model.ListKind
	backend Backend
	store   database.Store
	log     *slog.Logger
	remove  func(ctx context.Context, city string) error
}

// Kind returns which list this panel shows.
func (p *ListPanel) Kind() model.ListKind { return p.kind }

// Load fetches the whole list and replaces the session's rows with it, in
// server order. On failure the last rendered rows are returned unchanged.
func (p *ListPanel) Load(ctx context.Context, sess *model.Session) []string {
	rows, err := p.backend.List(ctx, p.kind)
	if err != nil {
		p.log.Warn("panel load failed", "kind", p.kind, "error", err)
		return sess.Rows(p.kind)
	}
	if err := p.store.SaveRows(ctx, sess.ID, p.kind, rows); err != nil {
		p.log.Warn("panel save failed", "kind", p.kind, "error", err)
	}
	switch p.kind {
	case model.ListFavorites:
		sess.Favorites = rows
	case model.ListHistory:
		sess.History = rows
	}
	return rows
}

// Remove deletes one city and reloads the panel. A failed removal leaves
// the rows as they were.
func (p *ListPanel) Remove(ctx context.Context, sess *model.Session, city string) []string {
	if p.remove == nil {
		return sess.Rows(p.kind)
	}
	if err := p.remove(ctx, city); err != nil {
		p.log.Warn("panel remove failed", "kind", p.kind, "city", city, "error", err)
		return sess.Rows(p.kind)
	}
	return p.Load(ctx, sess)
}
