// Package backend is the HTTP client for the weather, favourites and history
// servlets the widget depends on.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/weathernow/weathernow/internal/metrics"
	"github.com/weathernow/weathernow/internal/model"
)

const (
	weatherPath  = "/WeatherServlet"
	favoritePath = "/FavoriteServlet"
	historyPath  = "/HistoryServlet"
)

// ErrRejected is returned when a mutation answers {"success": false}.
var ErrRejected = errors.New("backend rejected the request")

// DomainError carries an error message reported by the weather servlet,
// e.g. an unknown city. The message is safe to show to the user.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string { return e.Message }

// StatusError is a non-2xx answer without a usable body.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables throttling
	Burst     int
}

// Client talks to the three servlets. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

// New creates a client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		tracer:     otel.Tracer("github.com/weathernow/weathernow/internal/backend"),
	}
}

type weatherPayload struct {
	Error   string `json:"error"`
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	IsFavorite bool `json:"isFavorite"`
}

type mutationPayload struct {
	Success bool `json:"success"`
}

// Lookup fetches current conditions for city. The servlet records the
// lookup in the search history as a side effect.
//
// A *DomainError is returned when the servlet answers with an error
// payload; any other error is a transport or decoding failure.
func (c *Client) Lookup(ctx context.Context, city string) (*model.WeatherResult, error) {
	form := url.Values{"city": {city}}
	var p weatherPayload
	err := c.do(ctx, http.MethodPost, weatherPath, form, func(status int, body []byte) error {
		if err := json.Unmarshal(body, &p); err != nil {
			if status/100 != 2 {
				return &StatusError{Status: status, Body: truncate(string(body))}
			}
			return fmt.Errorf("decode weather: %w", err)
		}
		if p.Error != "" {
			return &DomainError{Message: p.Error}
		}
		if status/100 != 2 {
			return &StatusError{Status: status}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(p.Weather) == 0 {
		return nil, errors.New("decode weather: empty condition list")
	}
	return &model.WeatherResult{
		LocationName:         p.Name,
		ConditionMain:        p.Weather[0].Main,
		ConditionDescription: p.Weather[0].Description,
		Temperature:          p.Main.Temp,
		FeelsLike:            p.Main.FeelsLike,
		Humidity:             p.Main.Humidity,
		WindSpeed:            p.Wind.Speed,
		Pressure:             p.Main.Pressure,
		IsFavorite:           p.IsFavorite,
	}, nil
}

// List returns the favourites or the history, in server order.
func (c *Client) List(ctx context.Context, kind model.ListKind) ([]string, error) {
	path, err := listPath(kind)
	if err != nil {
		return nil, err
	}
	var cities []string
	err = c.do(ctx, http.MethodGet, path, nil, func(status int, body []byte) error {
		if status/100 != 2 {
			return &StatusError{Status: status, Body: truncate(string(body))}
		}
		if err := json.Unmarshal(body, &cities); err != nil {
			return fmt.Errorf("decode %s: %w", kind, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cities == nil {
		cities = []string{}
	}
	return cities, nil
}

// SetFavorite adds or removes city from the favourites.
func (c *Client) SetFavorite(ctx context.Context, city string, add bool) error {
	action := "remove"
	if add {
		action = "add"
	}
	return c.mutate(ctx, favoritePath, url.Values{"city": {city}, "action": {action}})
}

// RemoveHistory deletes city from the search history.
func (c *Client) RemoveHistory(ctx context.Context, city string) error {
	return c.mutate(ctx, historyPath, url.Values{"city": {city}})
}

func (c *Client) mutate(ctx context.Context, path string, form url.Values) error {
	return c.do(ctx, http.MethodPost, path, form, func(status int, body []byte) error {
		if status/100 != 2 {
			return &StatusError{Status: status, Body: truncate(string(body))}
		}
		var p mutationPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("decode mutation: %w", err)
		}
		if !p.Success {
			return ErrRejected
		}
		return nil
	})
}

// do performs one throttled, traced request and hands the body to handle.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, handle func(status int, body []byte) error) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		metrics.BackendRequests.WithLabelValues(path, method, outcome).Inc()
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return handle(resp.StatusCode, data)
}

func listPath(kind model.ListKind) (string, error) {
	switch kind {
	case model.ListFavorites:
		return favoritePath, nil
	case model.ListHistory:
		return historyPath, nil
	default:
		return "", fmt.Errorf("unknown list %q", kind)
	}
}

func outcomeOf(err error) string {
	var de *DomainError
	var se *StatusError
	switch {
	case errors.As(err, &de):
		return "domain_error"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.As(err, &se):
		return "status_error"
	default:
		return "transport_error"
	}
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
