// Package server provides the HTTP server and handlers.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/metrics"
	"github.com/weathernow/weathernow/internal/model"
	"github.com/weathernow/weathernow/internal/widget"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server is the main HTTP server.
type Server struct {
	cfg        Config
	widget     *widget.Widget
	sweeper    *database.Sweeper
	router     chi.Router
	templates  *template.Template
	log        *slog.Logger
	httpServer *http.Server
}

// New creates a new server. sweeper may be nil.
func New(cfg Config, w *widget.Widget, sweeper *database.Sweeper, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"panelID": panelID,
		"panel":   newPanelView,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		widget:    w,
		sweeper:   sweeper,
		templates: tmpl,
		log:       logger,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Target", "HX-Trigger", "HX-Current-URL"},
		ExposedHeaders:   []string{"HX-Trigger"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/theme", s.handleTheme)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleHome)
		r.Post("/search", s.handleSearch)

		r.Get("/favorites", s.handlePanel(model.ListFavorites))
		r.Post("/favorites", s.handleFavorite)
		r.Post("/favorites/remove", s.handleRemoveFavorite)

		r.Get("/history", s.handlePanel(model.ListHistory))
		r.Post("/history/remove", s.handleRemoveHistory)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the sweeper and serves until Shutdown.
func (s *Server) Start() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.log.Info("weathernow server listening", "addr", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and stops the sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("template error", "template", name, "error", err)
		http.Error(w, "Render error", http.StatusInternalServerError)
	}
}

func newPanelView(kind string, rows []string, oob bool) panelView {
	return panelView{Kind: model.ListKind(kind), Rows: rows, OOB: oob}
}

func panelID(kind model.ListKind) string {
	if kind == model.ListFavorites {
		return "favoritesUl"
	}
	return "historyUl"
}
