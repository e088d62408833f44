package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tongyiyu/weather-cli/internal/cache"
	"github.com/tongyiyu/weather-cli/internal/client"
	"github.com/tongyiyu/weather-cli/internal/models"
	"github.com/tongyiyu/weather-cli/internal/observability"
)

// WeatherService answers queries cache-first: a fresh entry for the query key
// short-circuits before any network traffic; a miss resolves the city, fetches
// current conditions, and stores the result under the key.
type WeatherService struct {
	client      client.WeatherClient
	cache       cache.Cache
	ttl         time.Duration
	backend     string
	bypassCache bool
	logger      *zap.Logger
}

// NewWeatherService wires the service. backend names the cache implementation
// for metrics labels. bypassCache skips cache reads (still populates on fetch).
func NewWeatherService(cl client.WeatherClient, c cache.Cache, ttl time.Duration, backend string, bypassCache bool, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client:      cl,
		cache:       c,
		ttl:         ttl,
		backend:     backend,
		bypassCache: bypassCache,
		logger:      logger,
	}
}

// GetWeather serves one query. Cache read and write failures are non-fatal;
// upstream failures are terminal for the invocation.
func (s *WeatherService) GetWeather(ctx context.Context, query models.WeatherQuery) (models.Observation, bool, error) {
	key := query.Key()
	observability.WeatherQueriesTotal.Inc()

	if !s.bypassCache {
		entry, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			observability.CacheHitsTotal.WithLabelValues(s.backend).Inc()
			s.logger.Debug("cache hit",
				zap.String("key", key),
				zap.Duration("age", time.Since(entry.FetchedAt)))
			return entry.Observation, true, nil
		} else {
			observability.CacheMissesTotal.WithLabelValues(s.backend).Inc()
			s.logger.Debug("cache miss", zap.String("key", key))
		}
	}

	city, err := s.client.LookupCity(ctx, query.Location, query.Language)
	if err != nil {
		return models.Observation{}, false, fmt.Errorf("resolve %q: %w", query.Location, err)
	}

	obs, err := s.client.GetCurrentWeather(ctx, city.ID, query.Language)
	if err != nil {
		return models.Observation{}, false, fmt.Errorf("fetch weather for %s: %w", city.Name, err)
	}
	obs.LocationName = city.Name

	entry := models.CacheEntry{
		Key:         key,
		Observation: obs,
		FetchedAt:   time.Now(),
	}
	if err := s.cache.Set(ctx, key, entry, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}

	return obs, false, nil
}

// ClearCache discards all cached entries.
func (s *WeatherService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}
