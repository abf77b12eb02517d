package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/weathernow/weathernow/internal/model"
	"github.com/weathernow/weathernow/internal/widget"
)

// SessionCookie identifies the browser's render state.
const SessionCookie = "wn_session"

type ctxKey struct{}

func sessionFrom(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(ctxKey{}).(*model.Session)
	return sess
}

// sessionMiddleware loads the caller's session, issuing a new cookie when
// the browser has none or sends one we did not mint.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		sess, err := s.widget.Open(r.Context(), id)
		if err != nil {
			s.log.Error("open session failed", "error", err)
			http.Error(w, "Session unavailable", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

// --- Page Handlers ---

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	theme := s.widget.Theme.Initialize(r)
	s.render(w, "layout.html", s.widget.Page(r.Context(), sess, theme))
}

// --- Fragment Handlers ---

type resultView struct {
	Outcome widget.SearchOutcome
	// OOB marks the history list for an out-of-band swap.
	OOB bool
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	out, err := s.widget.Search.Search(r.Context(), sess, r.FormValue("city"))
	if err != nil {
		s.log.Error("search failed", "error", err)
		out = widget.SearchOutcome{State: widget.StateError, Message: widget.MsgUnavailable}
	}
	if out.State == widget.StateStale {
		// A newer search owns the card; leave the page alone.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.render(w, "search-response", resultView{Outcome: out, OOB: out.State == widget.StateRendered})
}

type panelView struct {
	Kind model.ListKind
	Rows []string
	OOB  bool
}

type favoriteView struct {
	Panel panelView
	Card  *model.Card
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	city := r.FormValue("city")
	var add bool
	switch r.FormValue("action") {
	case "add":
		add = true
	case "remove":
	default:
		http.Error(w, "Invalid action", http.StatusBadRequest)
		return
	}
	s.setFavorite(w, r, city, add)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, r.FormValue("city"), false)
}

// setFavorite forwards city exactly as the row listed it.
func (s *Server) setFavorite(w http.ResponseWriter, r *http.Request, city string, add bool) {
	if strings.TrimSpace(city) == "" {
		http.Error(w, "Missing city", http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	out := s.widget.Favorite.SetFavorite(r.Context(), sess, city, add)
	s.render(w, "favorite-response", favoriteView{
		Panel: panelView{Kind: model.ListFavorites, Rows: out.Favorites},
		Card:  out.Card,
	})
}

func (s *Server) handleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	city := r.FormValue("city")
	if strings.TrimSpace(city) == "" {
		http.Error(w, "Missing city", http.StatusBadRequest)
		return
	}
	sess := sessionFrom(r.Context())
	rows := s.widget.History.Remove(r.Context(), sess, city)
	s.render(w, "panel", panelView{Kind: model.ListHistory, Rows: rows})
}

func (s *Server) handlePanel(kind model.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		rows := s.widget.Panel(kind).Load(r.Context(), sess)
		s.render(w, "panel", panelView{Kind: kind, Rows: rows})
	}
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	mode, icon := s.widget.Theme.Toggle(w, r)
	trigger, _ := json.Marshal(map[string]any{
		"themeChanged": map[string]string{"theme": string(mode)},
	})
	w.Header().Set("HX-Trigger", string(trigger))
	s.render(w, "theme-icon", icon)
}
