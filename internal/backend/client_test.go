package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/weathernow/weathernow/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(Options{BaseURL: ts.URL + "/"})
}

func TestLookupDecodesPayload(t *testing.T) {
	var gotCity, gotCT string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/WeatherServlet" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotCT = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotCity = r.PostForm.Get("city")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Paris","weather":[{"main":"Rain","description":"light rain"}],
			"main":{"temp":14.6,"feels_like":13.9,"humidity":82,"pressure":1008},
			"wind":{"speed":4.1},"isFavorite":true}`))
	})

	res, err := c.Lookup(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if gotCity != "Paris" {
		t.Errorf("city form value = %q", gotCity)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotCT)
	}
	want := model.WeatherResult{
		LocationName:         "Paris",
		ConditionMain:        "Rain",
		ConditionDescription: "light rain",
		Temperature:          14.6,
		FeelsLike:            13.9,
		Humidity:             82,
		WindSpeed:            4.1,
		Pressure:             1008,
		IsFavorite:           true,
	}
	if *res != want {
		t.Errorf("got %+v, want %+v", *res, want)
	}
}

func TestLookupDomainError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"City not found or API error."}`))
	})

	_, err := c.Lookup(context.Background(), "Atlantis")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.Message != "City not found or API error." {
		t.Errorf("message = %q", de.Message)
	}
}

func TestLookupTransportFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not json", http.StatusOK, "<html>"},
		{"no conditions", http.StatusOK, `{"name":"X","weather":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Lookup(context.Background(), "X")
			if err == nil {
				t.Fatal("expected error")
			}
			var de *DomainError
			if errors.As(err, &de) {
				t.Fatalf("did not expect DomainError: %v", err)
			}
		})
	}
}

func TestListKeepsServerOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		switch r.URL.Path {
		case "/FavoriteServlet":
			w.Write([]byte(`["Tokyo","Berlin","Austin"]`))
		case "/HistoryServlet":
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	})

	favs, err := c.List(context.Background(), model.ListFavorites)
	if err != nil {
		t.Fatalf("List favorites: %v", err)
	}
	if len(favs) != 3 || favs[0] != "Tokyo" || favs[2] != "Austin" {
		t.Errorf("favorites = %v", favs)
	}

	hist, err := c.List(context.Background(), model.ListHistory)
	if err != nil {
		t.Fatalf("List history: %v", err)
	}
	if hist == nil || len(hist) != 0 {
		t.Errorf("history = %#v, want empty slice", hist)
	}

	if _, err := c.List(context.Background(), model.ListKind("bogus")); err == nil {
		t.Error("expected error for unknown list")
	}
}

func TestMutations(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = append(got, r.URL.Path+"?"+r.PostForm.Encode())
		if r.PostForm.Get("city") == "Nowhere" {
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	})
	ctx := context.Background()

	if err := c.SetFavorite(ctx, "Oslo", true); err != nil {
		t.Fatalf("SetFavorite add: %v", err)
	}
	if err := c.SetFavorite(ctx, "Oslo", false); err != nil {
		t.Fatalf("SetFavorite remove: %v", err)
	}
	if err := c.RemoveHistory(ctx, "Tokyo"); err != nil {
		t.Fatalf("RemoveHistory: %v", err)
	}
	if err := c.RemoveHistory(ctx, "Nowhere"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	want := []string{
		"/FavoriteServlet?action=add&city=Oslo",
		"/FavoriteServlet?action=remove&city=Oslo",
		"/HistoryServlet?city=Tokyo",
		"/HistoryServlet?city=Nowhere",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d requests, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUnreachableBackend(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	c := New(Options{BaseURL: ts.URL, RateLimit: 100, Burst: 1})

	if _, err := c.Lookup(context.Background(), "Paris"); err == nil {
		t.Fatal("expected transport error")
	}
	if err := c.SetFavorite(context.Background(), "Paris", true); err == nil {
		t.Fatal("expected transport error")
	}
}
