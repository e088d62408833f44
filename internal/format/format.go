package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tongyiyu/weather-cli/internal/models"
)

// labels holds the localized strings for one language.
type labels struct {
	Title       string // "%s weather"
	Temperature string
	FeelsLike   string
	Humidity    string
	Wind        string
	Visibility  string
	Updated     string
	CachedNote  string
}

var labelTable = map[string]labels{
	"en": {
		Title:       "%s weather",
		Temperature: "Temperature",
		FeelsLike:   "Feels like",
		Humidity:    "Humidity",
		Wind:        "Wind",
		Visibility:  "Visibility",
		Updated:     "Updated",
		CachedNote:  "cached",
	},
	"zh": {
		Title:       "%s 天气",
		Temperature: "温度",
		FeelsLike:   "体感",
		Humidity:    "湿度",
		Wind:        "风速",
		Visibility:  "能见度",
		Updated:     "更新时间",
		CachedNote:  "缓存",
	},
	"es": {
		Title:       "Tiempo en %s",
		Temperature: "Temperatura",
		FeelsLike:   "Sensación",
		Humidity:    "Humedad",
		Wind:        "Viento",
		Visibility:  "Visibilidad",
		Updated:     "Actualizado",
		CachedNote:  "caché",
	},
}

// conditionIcons maps QWeather icon code prefixes to emoji. Codes: 1xx clear
// to overcast, 3xx rain, 4xx snow, 5xx fog/haze. Falls back on condition text
// for providers or entries missing the code.
var conditionIcons = map[string]string{
	"100": "☀️",
	"101": "⛅",
	"102": "⛅",
	"103": "⛅",
	"104": "☁️",
	"3":   "🌧️",
	"4":   "❄️",
	"5":   "🌫️",
}

var conditionTextIcons = map[string]string{
	"sunny":    "☀️",
	"clear":    "☀️",
	"cloudy":   "⛅",
	"overcast": "☁️",
	"rain":     "🌧️",
	"snow":     "❄️",
	"thunder":  "⚡",
	"fog":      "🌫️",
	"haze":     "🌫️",
	"晴":        "☀️",
	"多云":       "⛅",
	"阴":        "☁️",
	"雨":        "🌧️",
	"雪":        "❄️",
	"雾":        "🌫️",
	"霾":        "🌫️",
}

const defaultIcon = "🌤️"
const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Render produces the human-readable report. Unit conversion happens here and
// only here: the observation is canonical metric, and numbers must be
// identical across languages.
func Render(obs models.Observation, language string, units models.Units, cached bool) string {
	lb, ok := labelTable[strings.ToLower(language)]
	if !ok {
		lb = labelTable["en"]
	}

	temp := formatTemp(obs.TempC, units)
	feels := formatTemp(obs.FeelsLikeC, units)
	wind := formatSpeed(obs.WindSpeedKmh, units)
	if obs.WindDir != "" {
		wind += " " + obs.WindDir
	}
	vis := formatDistance(obs.VisibilityKm, units)

	title := fmt.Sprintf(lb.Title, obs.LocationName)
	if cached {
		title += " (" + lb.CachedNote + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Icon(obs), title)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "🌡️  %s: %s\n", lb.Temperature, temp)
	fmt.Fprintf(&b, "😅  %s: %s\n", lb.FeelsLike, feels)
	fmt.Fprintf(&b, "💧  %s: %d%%\n", lb.Humidity, obs.Humidity)
	fmt.Fprintf(&b, "💨  %s: %s\n", lb.Wind, wind)
	fmt.Fprintf(&b, "👀  %s: %s\n", lb.Visibility, vis)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%s: %s\n", lb.Updated, formatTimestamp(obs.UpdatedAt))
	return b.String()
}

// jsonReport is the machine-readable shape for -json output.
type jsonReport struct {
	Location    string  `json:"location"`
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feelsLike"`
	Units       string  `json:"units"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	WindDir     string  `json:"windDir,omitempty"`
	Visibility  float64 `json:"visibility"`
	UpdatedAt   string  `json:"updatedAt"`
	Cached      bool    `json:"cached"`
}

// RenderJSON produces the -json output. Conversion rules match Render.
func RenderJSON(obs models.Observation, units models.Units, cached bool) (string, error) {
	rep := jsonReport{
		Location:    obs.LocationName,
		Condition:   obs.Condition,
		Temperature: round1(convertTemp(obs.TempC, units)),
		FeelsLike:   round1(convertTemp(obs.FeelsLikeC, units)),
		Units:       string(units),
		Humidity:    obs.Humidity,
		WindSpeed:   round1(convertSpeed(obs.WindSpeedKmh, units)),
		WindDir:     obs.WindDir,
		Visibility:  round1(convertDistance(obs.VisibilityKm, units)),
		UpdatedAt:   formatTimestamp(obs.UpdatedAt),
		Cached:      cached,
	}
	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(out), nil
}

// Icon picks the emoji for an observation, preferring the provider icon code.
func Icon(obs models.Observation) string {
	if obs.IconCode != "" {
		if icon, ok := conditionIcons[obs.IconCode]; ok {
			return icon
		}
		if len(obs.IconCode) > 0 {
			if icon, ok := conditionIcons[obs.IconCode[:1]]; ok {
				return icon
			}
		}
	}
	text := strings.ToLower(obs.Condition)
	for k, icon := range conditionTextIcons {
		if strings.Contains(text, k) {
			return icon
		}
	}
	return defaultIcon
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 {
	return c*9/5 + 32
}

func convertTemp(c float64, units models.Units) float64 {
	if units == models.UnitsImperial {
		return CToF(c)
	}
	return c
}

func convertSpeed(kmh float64, units models.Units) float64 {
	if units == models.UnitsImperial {
		return kmh * 0.621371
	}
	return kmh
}

func convertDistance(km float64, units models.Units) float64 {
	if units == models.UnitsImperial {
		return km * 0.621371
	}
	return km
}

func formatTemp(c float64, units models.Units) string {
	if units == models.UnitsImperial {
		return fmt.Sprintf("%.1f°F", CToF(c))
	}
	return fmt.Sprintf("%.1f°C", c)
}

func formatSpeed(kmh float64, units models.Units) string {
	if units == models.UnitsImperial {
		return fmt.Sprintf("%.1f mph", convertSpeed(kmh, units))
	}
	return fmt.Sprintf("%.1f km/h", kmh)
}

func formatDistance(km float64, units models.Units) string {
	if units == models.UnitsImperial {
		return fmt.Sprintf("%.1f mi", convertDistance(km, units))
	}
	return fmt.Sprintf("%.1f km", km)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
