package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/weathernow/weathernow/internal/backend"
	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/icons"
	"github.com/weathernow/weathernow/internal/metrics"
	"github.com/weathernow/weathernow/internal/model"
)

// User-facing messages.
const (
	MsgEmptyCity   = "Please enter a city!"
	MsgUnavailable = "Unable to fetch data."
)

// SearchState is the terminal state of one search.
type SearchState string

const (
	StateRendered SearchState = "rendered"
	StateError    SearchState = "error"
	// StateStale means a newer search started before this one finished;
	// its result was discarded and nothing should be redrawn.
	StateStale SearchState = "stale"
)

// SearchOutcome is what one search leaves on screen.
type SearchOutcome struct {
	State   SearchState
	Message string
	Card    *model.Card
	History []string
}

// SearchController runs weather lookups.
type SearchController struct {
	backend Backend
	store   database.Store
	history *ListPanel
	log     *slog.Logger
}

// Search looks up input and renders the result into the session.
//
// Every call takes a new search id from the store before doing anything
// else. Only the holder of the latest id may write the card, so a slow
// response can never overwrite a newer one.
func (sc *SearchController) Search(ctx context.Context, sess *model.Session, input string) (out SearchOutcome, err error) {
	defer func() {
		if err == nil {
			metrics.Searches.WithLabelValues(string(out.State)).Inc()
		}
	}()

	city := strings.TrimSpace(input)

	seq, err := sc.store.NextSearchSeq(ctx, sess.ID)
	if err != nil {
		// Without an id the card cannot be written, but the message still shows.
		sc.log.Error("next search id failed", "error", err)
		msg := MsgUnavailable
		if city == "" {
			msg = MsgEmptyCity
		}
		return SearchOutcome{State: StateError, Message: msg}, nil
	}
	sess.SearchSeq = seq

	if city == "" {
		return sc.fail(ctx, sess, seq, MsgEmptyCity)
	}

	res, err := sc.backend.Lookup(ctx, city)
	if err != nil {
		var de *backend.DomainError
		if errors.As(err, &de) {
			return sc.fail(ctx, sess, seq, de.Message)
		}
		sc.log.Warn("weather lookup failed", "city", city, "error", err)
		return sc.fail(ctx, sess, seq, MsgUnavailable)
	}

	card := NewCard(res)
	ok, err := sc.store.CommitCard(ctx, sess.ID, seq, &card)
	if err != nil {
		return SearchOutcome{}, fmt.Errorf("commit card: %w", err)
	}
	if !ok {
		return SearchOutcome{State: StateStale}, nil
	}
	sess.Card = &card

	// The servlet logged this lookup, so the history changed.
	return SearchOutcome{
		State:   StateRendered,
		Card:    &card,
		History: sc.history.Load(ctx, sess),
	}, nil
}

func (sc *SearchController) fail(ctx context.Context, sess *model.Session, seq int64, msg string) (SearchOutcome, error) {
	ok, err := sc.store.CommitCard(ctx, sess.ID, seq, nil)
	if err != nil {
		return SearchOutcome{}, fmt.Errorf("clear card: %w", err)
	}
	if !ok {
		return SearchOutcome{State: StateStale}, nil
	}
	sess.Card = nil
	return SearchOutcome{State: StateError, Message: msg}, nil
}

// NewCard formats a lookup result for display.
func NewCard(r *model.WeatherResult) model.Card {
	return model.Card{
		City:        r.LocationName,
		Description: r.ConditionDescription,
		Icon:        icons.For(r.ConditionMain),
		Temperature: strconv.FormatFloat(roundHalfUp(r.Temperature), 'f', 0, 64) + " °C",
		FeelsLike:   strconv.FormatFloat(roundHalfUp(r.FeelsLike), 'f', 0, 64) + " °C",
		Humidity:    formatNumber(r.Humidity) + "%",
		WindSpeed:   formatNumber(r.WindSpeed) + " m/s",
		Pressure:    formatNumber(r.Pressure) + " hPa",
		Favorite:    r.IsFavorite,
	}
}

// roundHalfUp rounds .5 towards positive infinity and never yields -0.
func roundHalfUp(v float64) float64 {
	r := math.Floor(v)
	if v-r >= 0.5 {
		r++
	}
	if r == 0 {
		return 0
	}
	return r
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
