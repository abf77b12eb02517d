// Package widget implements the weather widget's controllers: theme,
// search, favourites and the two list panels. Render state lives in a
// per-browser session kept by a database.Store.
package widget

import (
	"context"
	"log/slog"

	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/model"
)

// Backend is the servlet contract the widget depends on.
type Backend interface {
	Lookup(ctx context.Context, city string) (*model.WeatherResult, error)
	List(ctx context.Context, kind model.ListKind) ([]string, error)
	SetFavorite(ctx context.Context, city string, add bool) error
	RemoveHistory(ctx context.Context, city string) error
}

// Widget wires the controllers together.
type Widget struct {
	Theme     ThemeController
	Favorites *ListPanel
	History   *ListPanel
	Search    *SearchController
	Favorite  *FavoriteController

	store database.Store
}

// New creates a widget. A nil logger means slog.Default().
func New(b Backend, store database.Store, logger *slog.Logger) *Widget {
	if logger == nil {
		logger = slog.Default()
	}
	favorites := &ListPanel{kind: model.ListFavorites, backend: b, store: store, log: logger}
	history := &ListPanel{kind: model.ListHistory, backend: b, store: store, log: logger, remove: b.RemoveHistory}
	return &Widget{
		Favorites: favorites,
		History:   history,
		Search:    &SearchController{backend: b, store: store, history: history, log: logger},
		Favorite:  &FavoriteController{backend: b, store: store, favorites: favorites, log: logger},
		store:     store,
	}
}

// Open loads the session with the given id, creating it if needed.
func (w *Widget) Open(ctx context.Context, id string) (*model.Session, error) {
	return w.store.OpenSession(ctx, id)
}

// Page is everything the full page renders.
type Page struct {
	Theme     model.Theme
	Icon      IconView
	Card      *model.Card
	Favorites []string
	History   []string
}

// Page populates both panels and returns the full page state.
func (w *Widget) Page(ctx context.Context, sess *model.Session, theme model.Theme) Page {
	return Page{
		Theme:     theme,
		Icon:      PaintIcon(theme),
		Card:      sess.Card,
		Favorites: w.Favorites.Load(ctx, sess),
		History:   w.History.Load(ctx, sess),
	}
}

// Panel returns the panel for kind, or nil.
func (w *Widget) Panel(kind model.ListKind) *ListPanel {
	switch kind {
	case model.ListFavorites:
		return w.Favorites
	case model.ListHistory:
		return w.History
	}
	return nil
}
