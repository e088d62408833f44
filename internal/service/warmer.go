package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tongyiyu/weather-cli/internal/models"
)

// Warmer prefetches a list of locations through the service so later queries
// hit the cache. Locations are fetched one at a time; the client-side throttle
// sets the pace against the provider's free-tier limits.
type Warmer struct {
	svc    *WeatherService
	logger *zap.Logger
}

// NewWarmer creates a Warmer that fetches through svc.
func NewWarmer(svc *WeatherService, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{svc: svc, logger: logger}
}

// Warm fetches each location in turn, continuing past individual failures.
// Returns an aggregated error if any location failed.
func (w *Warmer) Warm(ctx context.Context, locations []string, language string) error {
	start := time.Now()
	w.logger.Info("warming cache", zap.Int("locations", len(locations)))

	var errs []error
	for _, loc := range locations {
		query := models.WeatherQuery{Location: loc, Language: language, Units: models.UnitsMetric}
		if _, _, err := w.svc.GetWeather(ctx, query); err != nil {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			errs = append(errs, fmt.Errorf("warm %s: %w", loc, err))
		}
	}

	w.logger.Info("cache warming complete",
		zap.Int("locations", len(locations)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	if len(errs) > 0 {
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
