package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/weathernow/weathernow/internal/backend"
	"github.com/weathernow/weathernow/internal/database"
	"github.com/weathernow/weathernow/internal/model"
	"github.com/weathernow/weathernow/internal/widget"
)

// servlets is an in-memory stand-in for the three backend servlets.
type servlets struct {
	mu        sync.Mutex
	favorites []string
	history   []string
	failLists bool
	// posted records every city sent to a mutation endpoint.
	posted []string
}

func (f *servlets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = r.ParseForm()
	city := r.PostForm.Get("city")

	switch {
	case r.URL.Path == "/WeatherServlet":
		if city == "Atlantis" {
			w.Write([]byte(`{"error":"City not found"}`))
			return
		}
		f.history = append([]string{city}, slices.DeleteFunc(f.history, func(c string) bool { return c == city })...)
		w.Write([]byte(`{"name":"` + city + `","weather":[{"main":"Rain","description":"light rain"}],
			"main":{"temp":14.6,"feels_like":13.9,"humidity":82,"pressure":1008},
			"wind":{"speed":4.1},"isFavorite":` + boolJSON(slices.Contains(f.favorites, city)) + `}`))
	case r.Method == http.MethodGet && f.failLists:
		http.Error(w, "down", http.StatusServiceUnavailable)
	case r.Method == http.MethodGet:
		rows := f.favorites
		if r.URL.Path == "/HistoryServlet" {
			rows = f.history
		}
		json.NewEncoder(w).Encode(rows)
	case r.URL.Path == "/FavoriteServlet":
		f.posted = append(f.posted, city)
		if r.PostForm.Get("action") == "add" {
			f.favorites = append(f.favorites, city)
		} else {
			f.favorites = slices.DeleteFunc(f.favorites, func(c string) bool { return c == city })
		}
		w.Write([]byte(`{"success":true}`))
	case r.URL.Path == "/HistoryServlet":
		f.posted = append(f.posted, city)
		f.history = slices.DeleteFunc(f.history, func(c string) bool { return c == city })
		w.Write([]byte(`{"success":true}`))
	default:
		http.NotFound(w, r)
	}
}

func boolJSON(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type harness struct {
	t        *testing.T
	servlets *servlets
	url      string
	client   *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore lets a test wrap the session store.
func newHarnessWithStore(t *testing.T, wrap func(database.Store) database.Store) *harness {
	t.Helper()
	fake := &servlets{}
	backendSrv := httptest.NewServer(fake)
	t.Cleanup(backendSrv.Close)

	store, err := database.Open("sqlite", filepath.Join(t.TempDir(), "sessions.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if wrap != nil {
		store = wrap(store)
	}

	w := widget.New(backend.New(backend.Options{BaseURL: backendSrv.URL}), store, nil)
	s, err := New(Config{Addr: ":0"}, w, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &harness{t: t, servlets: fake, url: srv.URL, client: &http.Client{Jar: jar}}
}

func (h *harness) get(path string) (int, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.url + path)
	if err != nil {
		h.t.Fatalf("GET %s: %v", path, err)
	}
	return readBody(h.t, resp)
}

func (h *harness) post(path string, form url.Values) (int, string) {
	h.t.Helper()
	resp, err := h.client.PostForm(h.url+path, form)
	if err != nil {
		h.t.Fatalf("POST %s: %v", path, err)
	}
	return readBody(h.t, resp)
}

func readBody(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(b)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	code, body := h.get("/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Errorf("healthz: %d %s", code, body)
	}
}

func TestHomeRendersPanelsAndIcon(t *testing.T) {
	h := newHarness(t)
	h.servlets.favorites = []string{"Oslo"}
	h.servlets.history = []string{"Tokyo", "Paris"}

	code, body := h.get("/")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{`id="favoritesUl"`, `id="historyUl"`, "Oslo", "Tokyo", `data-feather="moon"`, `<body class="light">`} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
	if strings.Index(body, "Tokyo") > strings.Index(body, "Paris") {
		t.Error("history rows should keep server order")
	}

	u, _ := url.Parse(h.url)
	var found bool
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == SessionCookie {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not issued")
	}
}

func TestSearchRendersCardAndHistory(t *testing.T) {
	h := newHarness(t)
	code, body := h.post("/search", url.Values{"city": {"  Paris "}})
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	for _, want := range []string{
		"Paris", "light rain", "weather-icons/rain.svg", "15 °C", "14 °C", "82%", "4.1 m/s", "1008 hPa",
		"Add to favourites", `value="add"`, `class="weather-card animated"`,
		`id="historyUl" class="list" hx-swap-oob="true"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("search response missing %q\n%s", want, body)
		}
	}

	// A reload re-renders the stored card.
	_, page := h.get("/")
	if !strings.Contains(page, `id="weatherCard"`) {
		t.Error("card not restored on reload")
	}
}

func TestSearchErrors(t *testing.T) {
	h := newHarness(t)
	_, body := h.post("/search", url.Values{"city": {"   "}})
	if !strings.Contains(body, widget.MsgEmptyCity) || strings.Contains(body, "weatherCard") {
		t.Errorf("empty input: %s", body)
	}
	if strings.Contains(body, "hx-swap-oob") {
		t.Error("error responses should not touch history")
	}

	_, body = h.post("/search", url.Values{"city": {"Atlantis"}})
	if !strings.Contains(body, "City not found") {
		t.Errorf("domain error: %s", body)
	}
}

func TestFavoriteToggleUpdatesButton(t *testing.T) {
	h := newHarness(t)
	h.post("/search", url.Values{"city": {"Paris"}})

	code, body := h.post("/favorites", url.Values{"city": {"Paris"}, "action": {"add"}})
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{`id="favoritesUl"`, "Paris", `id="favSlot" hx-swap-oob="true"`, "Remove favourite", `value="remove"`, "favorited"} {
		if !strings.Contains(body, want) {
			t.Errorf("favourite response missing %q\n%s", want, body)
		}
	}

	_, body = h.post("/favorites/remove", url.Values{"city": {"Paris"}})
	if !strings.Contains(body, "Add to favourites") {
		t.Errorf("button not flipped back: %s", body)
	}
	if len(h.servlets.favorites) != 0 {
		t.Errorf("servlet favourites = %v", h.servlets.favorites)
	}
}

func TestFavoriteRejectsBadAction(t *testing.T) {
	h := newHarness(t)
	if code, _ := h.post("/favorites", url.Values{"city": {"Paris"}, "action": {"toggle"}}); code != http.StatusBadRequest {
		t.Errorf("bad action: status %d", code)
	}
	if code, _ := h.post("/favorites", url.Values{"action": {"add"}}); code != http.StatusBadRequest {
		t.Errorf("missing city: status %d", code)
	}
}

func TestRemoveHistoryReloadsPanel(t *testing.T) {
	h := newHarness(t)
	h.servlets.history = []string{"Tokyo", "Paris"}

	_, body := h.post("/history/remove", url.Values{"city": {"Tokyo"}})
	if strings.Contains(body, "Tokyo") || !strings.Contains(body, "Paris") {
		t.Errorf("history after removal: %s", body)
	}
}

func TestPanelFailureKeepsRows(t *testing.T) {
	h := newHarness(t)
	h.servlets.favorites = []string{"Oslo"}
	if _, body := h.get("/favorites"); !strings.Contains(body, "Oslo") {
		t.Fatalf("initial load: %s", body)
	}

	h.servlets.mu.Lock()
	h.servlets.failLists = true
	h.servlets.mu.Unlock()

	code, body := h.get("/favorites")
	if code != http.StatusOK || !strings.Contains(body, "Oslo") {
		t.Errorf("failed load should keep rows: %d %s", code, body)
	}
}

func TestThemeToggle(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Post(h.url+"/theme", "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatal(err)
	}
	trigger := resp.Header.Get("HX-Trigger")
	_, body := readBody(t, resp)
	if trigger != `{"themeChanged":{"theme":"dark"}}` {
		t.Errorf("HX-Trigger = %q", trigger)
	}
	if !strings.Contains(body, `data-feather="sun"`) || !strings.Contains(body, `data-spin="400"`) {
		t.Errorf("icon fragment: %s", body)
	}

	_, page := h.get("/")
	if !strings.Contains(page, `<body class="dark">`) {
		t.Error("theme not persisted")
	}

	_, body = h.post("/theme", nil)
	if !strings.Contains(body, `data-feather="moon"`) {
		t.Errorf("second toggle: %s", body)
	}
}

func TestStaticIcons(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"clear", "clouds", "rain", "snow", "thunderstorm", "mist"} {
		if code, _ := h.get("/static/weather-icons/" + name + ".svg"); code != http.StatusOK {
			t.Errorf("%s.svg: status %d", name, code)
		}
	}
}

func TestMetricsExposed(t *testing.T) {
	h := newHarness(t)
	h.post("/search", url.Values{"city": {"Paris"}})
	code, body := h.get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{`weathernow_searches_total{state="rendered"}`, "weathernow_backend_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

// commitFailingStore refuses every card write.
type commitFailingStore struct {
	database.Store
}

func (commitFailingStore) CommitCard(ctx context.Context, id string, seq int64, card *model.Card) (bool, error) {
	return false, errors.New("disk full")
}

func TestSearchStoreFailureRendersMessage(t *testing.T) {
	h := newHarnessWithStore(t, func(s database.Store) database.Store { return commitFailingStore{s} })

	code, body := h.post("/search", url.Values{"city": {"Paris"}})
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	if !strings.Contains(body, `<p class="error">`+widget.MsgUnavailable+`</p>`) {
		t.Errorf("expected generic message, got %s", body)
	}
}

func TestMutationsForwardCityVerbatim(t *testing.T) {
	h := newHarness(t)
	h.servlets.history = []string{" Tokyo"}

	h.post("/history/remove", url.Values{"city": {" Tokyo"}})
	h.post("/favorites", url.Values{"city": {"São Paulo "}, "action": {"add"}})
	h.post("/favorites/remove", url.Values{"city": {"São Paulo "}})

	want := []string{" Tokyo", "São Paulo ", "São Paulo "}
	if !slices.Equal(h.servlets.posted, want) {
		t.Errorf("posted cities = %q, want %q", h.servlets.posted, want)
	}
	if len(h.servlets.history) != 0 {
		t.Errorf("history = %q", h.servlets.history)
	}

	if code, _ := h.post("/history/remove", url.Values{"city": {"   "}}); code != http.StatusBadRequest {
		t.Errorf("blank city: status %d", code)
	}
}

func TestScriptHandlesFailedSearchRequests(t *testing.T) {
	h := newHarness(t)
	code, body := h.get("/static/app.js")
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	for _, want := range []string{"htmx:responseError", "htmx:sendError", widget.MsgUnavailable} {
		if !strings.Contains(body, want) {
			t.Errorf("app.js missing %q", want)
		}
	}
}
