package service

import (
	"context"
	"testing"
	"time"

	"github.com/tongyiyu/weather-cli/internal/client"
	"github.com/tongyiyu/weather-cli/internal/models"
)

// TestWarmer_PopulatesCache verifies warming fetches every configured
// location so later queries hit the cache.
func TestWarmer_PopulatesCache(t *testing.T) {
	fc := &fakeClient{
		city: client.City{ID: "101010100", Name: "Beijing"},
		obs:  models.Observation{TempC: 22.0},
	}
	cacheSvc := newFakeCache()
	svc := NewWeatherService(fc, cacheSvc, 30*time.Minute, "file", false, nil)

	locations := []string{"beijing", "shanghai", "shenzhen"}
	if err := NewWarmer(svc, nil).Warm(context.Background(), locations, "en"); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	if fc.fetchCalls != len(locations) {
		t.Errorf("fetch calls = %d, want %d", fc.fetchCalls, len(locations))
	}
	for _, loc := range locations {
		key := models.WeatherQuery{Location: loc, Language: "en"}.Key()
		if _, ok := cacheSvc.data[key]; !ok {
			t.Errorf("cache missing warmed entry for %q", key)
		}
	}
}

// TestWarmer_ContinuesPastFailures verifies one failing location does not
// stop the rest and the aggregate error reports it.
func TestWarmer_ContinuesPastFailures(t *testing.T) {
	fc := &fakeClient{lookupErr: client.ErrLocationNotFound}
	svc := NewWeatherService(fc, newFakeCache(), 30*time.Minute, "file", false, nil)

	err := NewWarmer(svc, nil).Warm(context.Background(), []string{"nowhere", "alsonowhere"}, "en")
	if err == nil {
		t.Fatal("Warm() error = nil, want aggregated error")
	}
	if fc.lookupCalls != 2 {
		t.Errorf("lookup calls = %d, want 2 (continue past failures)", fc.lookupCalls)
	}
}
