package widget

import (
	"context"
	"log/slog"

	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/model"
)

// FavoriteOutcome is the result of an add/remove request.
type FavoriteOutcome struct {
	OK        bool
	Favorites []string
	// Card is the result card with its button updated, or nil when the
	// card does not show the city.
	Card *model.Card
}

// FavoriteController adds and removes favourites.
type FavoriteController struct {
	backend   Backend
	store     database.Store
	favorites *ListPanel
	log       *slog.Logger
}

// SetFavorite asks the backend to add (shouldAdd) or remove city. On
// success the Favourites panel reloads and a card showing city gets its
// button flipped to match, without fetching the weather again. On failure
// nothing changes.
func (fc *FavoriteController) SetFavorite(ctx context.Context, sess *model.Session, city string, shouldAdd bool) FavoriteOutcome {
	if err := fc.backend.SetFavorite(ctx, city, shouldAdd); err != nil {
		fc.log.Warn("favourite update failed", "city", city, "add", shouldAdd, "error", err)
		return FavoriteOutcome{Favorites: sess.Favorites}
	}

	out := FavoriteOutcome{OK: true, Favorites: fc.favorites.Load(ctx, sess)}
	card, err := fc.store.SetCardFavorite(ctx, sess.ID, city, shouldAdd)
	if err != nil {
		fc.log.Warn("card update failed", "city", city, "error", err)
		return out
	}
	if card != nil {
		sess.Card = card
		out.Card = card
	}
	return out
}
