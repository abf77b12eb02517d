package widget

import (
	"net/http"
	"time"

	"github.com/weathernow/weathernow/internal/model"
)

// ThemeCookie holds the persisted theme preference.
const ThemeCookie = "theme"

// IconSpin is how long the toggle icon rotates after each paint.
const IconSpin = 400 * time.Millisecond

// IconView is the theme toggle icon as it should be painted.
type IconView struct {
	// Glyph names the mode a click switches to: "moon" while light, "sun" while dark.
	Glyph string
	// SpinMillis is the one-shot rotation length. The class is removed
	// afterwards so the next paint re-triggers it.
	SpinMillis int64
}

// PaintIcon returns the icon for mode.
func PaintIcon(mode model.Theme) IconView {
	glyph := "moon"
	if mode == model.ThemeDark {
		glyph = "sun"
	}
	return IconView{Glyph: glyph, SpinMillis: IconSpin.Milliseconds()}
}

// ThemeController reads and persists the theme preference in a cookie.
// A missing or unreadable cookie silently means light.
type ThemeController struct{}

// Initialize returns the persisted mode.
func (ThemeController) Initialize(r *http.Request) model.Theme {
	c, err := r.Cookie(ThemeCookie)
	if err != nil {
		return model.ThemeLight
	}
	return model.ParseTheme(c.Value)
}

// Toggle flips the mode, persists it and returns the new mode and icon.
func (tc ThemeController) Toggle(w http.ResponseWriter, r *http.Request) (model.Theme, IconView) {
	mode := tc.Initialize(r).Flip()
	// Not HttpOnly: the page script reads it to avoid a flash of the wrong theme.
	http.SetCookie(w, &http.Cookie{
		Name:     ThemeCookie,
		Value:    string(mode),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		SameSite: http.SameSiteLaxMode,
	})
	return mode, PaintIcon(mode)
}
