// Package model defines shared data structures.
package model

import "time"

// Theme is the light/dark visual mode of the page.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a persisted value to a Theme. Anything unknown is light.
func ParseTheme(s string) Theme {
	if Theme(s) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// Flip returns the opposite mode.
func (t Theme) Flip() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ListKind names one of the two side panels.
type ListKind string

const (
	ListFavorites ListKind = "favorites"
	ListHistory   ListKind = "history"
)

// WeatherResult is one successful lookup, decoded from the backend payload.
// It lives only for the duration of a render.
type WeatherResult struct {
	LocationName         string
	ConditionMain        string
	ConditionDescription string
	Temperature          float64 // °C
	FeelsLike            float64 // °C
	Humidity             float64 // percent
	WindSpeed            float64 // m/s
	Pressure             float64 // hPa
	IsFavorite           bool
}

// Card is the rendered projection of a WeatherResult.
type Card struct {
	City        string `json:"city"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Temperature string `json:"temperature"`
	FeelsLike   string `json:"feels_like"`
	Humidity    string `json:"humidity"`
	WindSpeed   string `json:"wind_speed"`
	Pressure    string `json:"pressure"`
	Favorite    bool   `json:"favorite"`
}

// FavoriteLabel is the toggle button text for the current flag.
func (c Card) FavoriteLabel() string {
	if c.Favorite {
		return "Remove favourite"
	}
	return "Add to favourites"
}

// FavoriteAction is the action the toggle button requests: the inverse of
// the current flag.
func (c Card) FavoriteAction() string {
	if c.Favorite {
		return "remove"
	}
	return "add"
}

// Session is the render state owned by one browser.
type Session struct {
	ID        string
	SearchSeq int64
	Card      *Card
	Favorites []string
	History   []string
	UpdatedAt time.Time
}

// Rows returns the last rendered rows of a panel.
func (s *Session) Rows(kind ListKind) []string {
	if kind == ListFavorites {
		return s.Favorites
	}
	return s.History
}
