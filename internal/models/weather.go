package models

import (
	"strings"
	"time"
)

// Units selects the measurement system used for display. Observations are
// always stored in metric; imperial is a presentation-time conversion.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// ParseUnits accepts the full names plus the short spellings from the
// original CLI ("c" / "f").
func ParseUnits(s string) (Units, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metric", "c", "celsius":
		return UnitsMetric, true
	case "imperial", "f", "fahrenheit":
		return UnitsImperial, true
	}
	return "", false
}

// WeatherQuery describes a single lookup. Immutable once constructed.
type WeatherQuery struct {
	Location string
	Language string
	Units    Units
}

// Key derives the cache key. Units are deliberately excluded: the provider is
// always queried in metric, so an imperial rendering of a cached metric fetch
// must be a cache hit.
func (q WeatherQuery) Key() string {
	loc := strings.ToLower(strings.TrimSpace(q.Location))
	lang := strings.ToLower(strings.TrimSpace(q.Language))
	if lang == "" {
		lang = "en"
	}
	return loc + "|" + lang
}

// Observation is a provider response normalized to canonical metric values.
type Observation struct {
	LocationID   string    `json:"locationId"`
	LocationName string    `json:"locationName"`
	TempC        float64   `json:"tempC"`
	FeelsLikeC   float64   `json:"feelsLikeC"`
	Humidity     int       `json:"humidity"`
	WindSpeedKmh float64   `json:"windSpeedKmh"`
	WindDir      string    `json:"windDir"`
	VisibilityKm float64   `json:"visibilityKm"`
	Condition    string    `json:"condition"`
	IconCode     string    `json:"iconCode"`
	ObservedAt   time.Time `json:"observedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Raw carries the provider's source fields untouched, for callers that
	// need something the normalized view dropped.
	Raw map[string]string `json:"raw,omitempty"`
}

// CacheEntry is the persisted form of a fetched observation.
type CacheEntry struct {
	Key         string      `json:"key"`
	Observation Observation `json:"observation"`
	FetchedAt   time.Time   `json:"fetchedAt"`
}
