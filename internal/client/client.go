package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tongyiyu/weather-cli/internal/models"
	"github.com/tongyiyu/weather-cli/internal/observability"
)

// WeatherClient resolves city names and fetches current conditions.
type WeatherClient interface {
	LookupCity(ctx context.Context, name, lang string) (City, error)
	GetCurrentWeather(ctx context.Context, locationID, lang string) (models.Observation, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrLocationNotFound  = errors.New("location not found")
	ErrRateLimited       = errors.New("rate limited by provider")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// City is a geo lookup result.
type City struct {
	ID   string
	Name string
}

// QWeatherClient talks to the QWeather geo and weather APIs. One request per
// call; failures are terminal for the invocation (no retries by design).
type QWeatherClient struct {
	apiKey     string
	geoURL     string
	weatherURL string
	client     *http.Client
	limiter    *rate.Limiter // nil disables the client-side throttle
}

// NewQWeatherClient validates the key shape up front so a missing key fails
// as an authentication error before any network call. rps/burst of zero
// disables the outbound throttle.
func NewQWeatherClient(apiKey, geoURL, weatherURL string, timeout time.Duration, rps, burst int) (*QWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required (set QWEATHER_API_KEY)", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = rps
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return &QWeatherClient{
		apiKey:     apiKey,
		geoURL:     geoURL,
		weatherURL: weatherURL,
		limiter:    limiter,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type geoResponse struct {
	Code     string `json:"code"`
	Location []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"location"`
}

type nowResponse struct {
	Code       string            `json:"code"`
	UpdateTime string            `json:"updateTime"`
	Now        map[string]string `json:"now"`
}

// LookupCity resolves a city name (Chinese, pinyin, or English) to a provider
// location ID and display name.
func (c *QWeatherClient) LookupCity(ctx context.Context, name, lang string) (City, error) {
	params := url.Values{}
	params.Set("location", name)
	params.Set("lang", lang)
	params.Set("number", "1")

	body, err := c.call(ctx, "geo", c.geoURL, params)
	if err != nil {
		return City{}, err
	}

	var resp geoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return City{}, fmt.Errorf("%w: parse geo response: %v", ErrMalformedResponse, err)
	}
	if err := mapProviderCode(resp.Code); err != nil {
		return City{}, err
	}
	if len(resp.Location) == 0 {
		return City{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}
	return City{ID: resp.Location[0].ID, Name: resp.Location[0].Name}, nil
}

// GetCurrentWeather fetches current conditions for a resolved location ID.
// Values come back metric regardless of display units; conversion is the
// formatter's job.
func (c *QWeatherClient) GetCurrentWeather(ctx context.Context, locationID, lang string) (models.Observation, error) {
	params := url.Values{}
	params.Set("location", locationID)
	params.Set("lang", lang)

	body, err := c.call(ctx, "now", c.weatherURL, params)
	if err != nil {
		return models.Observation{}, err
	}

	var resp nowResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Observation{}, fmt.Errorf("%w: parse weather response: %v", ErrMalformedResponse, err)
	}
	if err := mapProviderCode(resp.Code); err != nil {
		return models.Observation{}, err
	}
	if len(resp.Now) == 0 {
		return models.Observation{}, fmt.Errorf("%w: missing now block", ErrMalformedResponse)
	}
	return mapObservation(resp, locationID), nil
}

// call performs one GET against a provider endpoint, recording latency and
// outcome metrics. The API key and a correlation ID ride on every request.
func (c *QWeatherClient) call(ctx context.Context, endpoint, rawURL string, params url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle wait: %w", err)
		}
	}

	start := time.Now()

	base, err := url.Parse(rawURL)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params.Set("key", c.apiKey)
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlationID(ctx))

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := mapHTTPStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

// mapHTTPStatus maps transport-level status codes onto the error taxonomy.
func mapHTTPStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, statusCode)
	}
	return nil
}

// mapProviderCode maps QWeather's body-level code string. The provider can
// return HTTP 200 with an error code in the body, so both layers are checked.
func mapProviderCode(code string) error {
	switch code {
	case "200":
		return nil
	case "204", "404":
		return ErrLocationNotFound
	case "401", "403":
		return fmt.Errorf("%w: provider code %s", ErrInvalidAPIKey, code)
	case "402", "429":
		return fmt.Errorf("%w: provider code %s", ErrRateLimited, code)
	case "":
		return fmt.Errorf("%w: missing provider code", ErrMalformedResponse)
	default:
		return fmt.Errorf("%w: provider code %s", ErrUpstreamFailure, code)
	}
}

func mapObservation(resp nowResponse, locationID string) models.Observation {
	now := resp.Now
	return models.Observation{
		LocationID:   locationID,
		TempC:        parseFloat(now["temp"]),
		FeelsLikeC:   parseFloat(now["feelsLike"]),
		Humidity:     int(parseFloat(now["humidity"])),
		WindSpeedKmh: parseFloat(now["windSpeed"]),
		WindDir:      now["windDir"],
		VisibilityKm: parseFloat(now["vis"]),
		Condition:    now["text"],
		IconCode:     now["icon"],
		ObservedAt:   parseTime(now["obsTime"]),
		UpdatedAt:    parseTime(resp.UpdateTime),
		Raw:          now,
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseTime accepts RFC3339 plus the provider's minute-precision variant
// without seconds, e.g. 2024-06-01T12:35+08:00.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02T15:04Z07:00", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// WithCorrelationID stamps the ID forwarded as X-Correlation-ID on outbound
// provider calls. The CLI mints one per invocation; serve mode's middleware
// sets one per request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, "correlation_id", id)
}

func correlationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return uuid.New().String()
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
