package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tongyiyu/weather-cli/internal/client"
	"github.com/tongyiyu/weather-cli/internal/format"
	"github.com/tongyiyu/weather-cli/internal/models"
	"github.com/tongyiyu/weather-cli/internal/service"
	"github.com/tongyiyu/weather-cli/internal/validation"
)

// Handler holds dependencies for the serve-mode HTTP handlers.
type Handler struct {
	weatherService  *service.WeatherService
	defaultLanguage string
	defaultUnits    models.Units
	logger          *zap.Logger
	// cachePing, when set, is called by the health handler to check cache
	// backend reachability (memcached/redis).
	cachePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(weatherService *service.WeatherService, defaultLanguage string, defaultUnits models.Units, logger *zap.Logger, cachePing func() error) *Handler {
	return &Handler{
		weatherService:  weatherService,
		defaultLanguage: defaultLanguage,
		defaultUnits:    defaultUnits,
		logger:          logger,
		cachePing:       cachePing,
	}
}

// weatherResponse is the serve-mode response body.
type weatherResponse struct {
	Report json.RawMessage `json:"report"`
	Cached bool            `json:"cached"`
}

// GetWeather handles GET /weather/{location}?lang=..&units=..
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	lang := strings.TrimSpace(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = h.defaultLanguage
	}
	lang, err = validation.ValidateLanguage(lang)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LANGUAGE", err.Error())
		return
	}

	units := h.defaultUnits
	if raw := r.URL.Query().Get("units"); raw != "" {
		parsed, ok := models.ParseUnits(raw)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "INVALID_UNITS", validation.ErrUnknownUnits.Error())
			return
		}
		units = parsed
	}

	query := models.WeatherQuery{Location: location, Language: lang, Units: units}
	obs, cached, err := h.weatherService.GetWeather(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	report, err := format.RenderJSON(obs, units, cached)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "unable to render report")
		return
	}
	writeJSON(w, http.StatusOK, weatherResponse{Report: json.RawMessage(report), Cached: cached})
}

// GetHealth handles GET /healthz. Reports cache backend reachability when the
// backend supports a ping.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)
	if h.cachePing != nil {
		if err := h.cachePing(); err == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weather-cli",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response with code, message, and requestId
// (correlation ID) when available in the request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps client error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "location not found")
	case errors.Is(err, client.ErrInvalidAPIKey):
		writeError(w, r, http.StatusServiceUnavailable, "PROVIDER_AUTH_FAILED", "provider rejected credentials")
	case errors.Is(err, client.ErrRateLimited):
		writeError(w, r, http.StatusServiceUnavailable, "PROVIDER_RATE_LIMITED", "provider rate limit reached")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
