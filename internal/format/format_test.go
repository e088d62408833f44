package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tongyiyu/weather-cli/internal/models"
)

func sampleObservation() models.Observation {
	return models.Observation{
		LocationID:   "101010100",
		LocationName: "Beijing",
		TempC:        24.0,
		FeelsLikeC:   26.0,
		Humidity:     72,
		WindSpeedKmh: 10.0,
		WindDir:      "SE",
		VisibilityKm: 16.0,
		Condition:    "Sunny",
		IconCode:     "100",
		UpdatedAt:    time.Date(2024, 6, 1, 12, 35, 0, 0, time.UTC),
	}
}

// TestRender_UnitConversion verifies the same underlying Celsius value renders
// as Fahrenheit when imperial units are requested.
func TestRender_UnitConversion(t *testing.T) {
	obs := sampleObservation()

	metric := Render(obs, "en", models.UnitsMetric, false)
	if !strings.Contains(metric, "24.0°C") {
		t.Errorf("metric output missing 24.0°C:\n%s", metric)
	}
	if !strings.Contains(metric, "10.0 km/h") {
		t.Errorf("metric output missing wind in km/h:\n%s", metric)
	}

	imperial := Render(obs, "en", models.UnitsImperial, false)
	if !strings.Contains(imperial, "75.2°F") {
		t.Errorf("imperial output missing 75.2°F (24°C converted):\n%s", imperial)
	}
	if !strings.Contains(imperial, "78.8°F") {
		t.Errorf("imperial output missing feels-like 78.8°F (26°C converted):\n%s", imperial)
	}
	if !strings.Contains(imperial, "6.2 mph") {
		t.Errorf("imperial output missing wind in mph:\n%s", imperial)
	}
	if strings.Contains(imperial, "°C") {
		t.Errorf("imperial output still contains °C:\n%s", imperial)
	}
}

// TestRender_Localization verifies label text changes with the language while
// numeric values do not.
func TestRender_Localization(t *testing.T) {
	obs := sampleObservation()

	en := Render(obs, "en", models.UnitsMetric, false)
	zh := Render(obs, "zh", models.UnitsMetric, false)
	es := Render(obs, "es", models.UnitsMetric, false)

	if !strings.Contains(en, "Temperature") {
		t.Errorf("en output missing Temperature label:\n%s", en)
	}
	if !strings.Contains(zh, "温度") {
		t.Errorf("zh output missing 温度 label:\n%s", zh)
	}
	if !strings.Contains(es, "Temperatura") {
		t.Errorf("es output missing Temperatura label:\n%s", es)
	}

	for name, out := range map[string]string{"en": en, "zh": zh, "es": es} {
		if !strings.Contains(out, "24.0°C") {
			t.Errorf("%s output changed the numeric value:\n%s", name, out)
		}
		if !strings.Contains(out, "72%") {
			t.Errorf("%s output changed the humidity value:\n%s", name, out)
		}
	}
}

// TestRender_UnknownLanguageFallsBackToEnglish keeps rendering usable for
// provider-passthrough locales the label table does not know.
func TestRender_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	out := Render(sampleObservation(), "fr", models.UnitsMetric, false)
	if !strings.Contains(out, "Temperature") {
		t.Errorf("unknown language should fall back to English labels:\n%s", out)
	}
}

// TestRender_CachedMarker verifies cached results are labelled as such.
func TestRender_CachedMarker(t *testing.T) {
	out := Render(sampleObservation(), "en", models.UnitsMetric, true)
	if !strings.Contains(out, "(cached)") {
		t.Errorf("cached output missing marker:\n%s", out)
	}
}

func TestIcon(t *testing.T) {
	tests := []struct {
		name string
		obs  models.Observation
		want string
	}{
		{
			name: "sunny by icon code",
			obs:  models.Observation{IconCode: "100"},
			want: "☀️",
		},
		{
			name: "rain family by code prefix",
			obs:  models.Observation{IconCode: "305"},
			want: "🌧️",
		},
		{
			name: "snow family by code prefix",
			obs:  models.Observation{IconCode: "401"},
			want: "❄️",
		},
		{
			name: "falls back to condition text",
			obs:  models.Observation{Condition: "Light rain"},
			want: "🌧️",
		},
		{
			name: "chinese condition text",
			obs:  models.Observation{Condition: "多云"},
			want: "⛅",
		},
		{
			name: "unknown condition gets default",
			obs:  models.Observation{Condition: "Sandstorm"},
			want: defaultIcon,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Icon(tc.obs); got != tc.want {
				t.Errorf("Icon() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCToF(t *testing.T) {
	tests := []struct {
		c, f float64
	}{
		{0, 32},
		{100, 212},
		{24, 75.2},
		{-40, -40},
	}
	for _, tc := range tests {
		if got := CToF(tc.c); got != tc.f {
			t.Errorf("CToF(%v) = %v, want %v", tc.c, got, tc.f)
		}
	}
}

// TestRenderJSON verifies the machine-readable output carries converted
// values and the cached flag.
func TestRenderJSON(t *testing.T) {
	out, err := RenderJSON(sampleObservation(), models.UnitsImperial, true)
	if err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}

	var rep struct {
		Location    string  `json:"location"`
		Temperature float64 `json:"temperature"`
		Units       string  `json:"units"`
		Cached      bool    `json:"cached"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if rep.Location != "Beijing" {
		t.Errorf("location = %q, want Beijing", rep.Location)
	}
	if rep.Temperature != 75.2 {
		t.Errorf("temperature = %v, want 75.2", rep.Temperature)
	}
	if rep.Units != "imperial" {
		t.Errorf("units = %q, want imperial", rep.Units)
	}
	if !rep.Cached {
		t.Error("cached = false, want true")
	}
}
