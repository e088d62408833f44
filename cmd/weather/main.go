package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tongyiyu/weather-cli/internal/cache"
	"github.com/tongyiyu/weather-cli/internal/client"
	"github.com/tongyiyu/weather-cli/internal/config"
	"github.com/tongyiyu/weather-cli/internal/format"
	"github.com/tongyiyu/weather-cli/internal/models"
	"github.com/tongyiyu/weather-cli/internal/observability"
	"github.com/tongyiyu/weather-cli/internal/server"
	"github.com/tongyiyu/weather-cli/internal/service"
	"github.com/tongyiyu/weather-cli/internal/validation"
)

type options struct {
	city       string
	lang       string
	units      string
	jsonOut    bool
	noCache    bool
	clearCache bool
	warm       bool
	serve      bool
	addr       string
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.city, "city", "", "city name (Chinese, pinyin, or English); overrides the positional argument")
	flag.StringVar(&opts.lang, "lang", "", "output language: en, zh, es")
	flag.StringVar(&opts.units, "units", "", "unit system: metric|imperial (also c|f)")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	flag.BoolVar(&opts.noCache, "no-cache", false, "skip the cache read (the fresh result is still cached)")
	flag.BoolVar(&opts.clearCache, "clear-cache", false, "remove all cached entries and exit")
	flag.BoolVar(&opts.warm, "warm", false, "prefetch the configured warm_locations and exit")
	flag.BoolVar(&opts.serve, "serve", false, "run as an HTTP service instead of a one-shot query")
	flag.StringVar(&opts.addr, "addr", "", "serve mode listen address (default :<config port>)")
	flag.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if opts.city == "" && flag.NArg() > 0 {
		opts.city = flag.Arg(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "weather: %s\n", userMessage(err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: weather [flags] [city]\n\n")
	fmt.Fprintf(flag.CommandLine.Output(), "Look up current conditions for a city, e.g.:\n")
	fmt.Fprintf(flag.CommandLine.Output(), "  weather 北京\n")
	fmt.Fprintf(flag.CommandLine.Output(), "  weather -city shanghai -units f\n\n")
	flag.PrintDefaults()
}

func run(opts options) error {
	logger, err := observability.NewLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cacheSvc, cachePing, closeCache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache(logger)

	if opts.clearCache {
		if err := cacheSvc.Clear(context.Background()); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	}

	weatherClient, err := client.NewQWeatherClient(
		cfg.APIKey,
		cfg.GeoAPIURL,
		cfg.WeatherAPIURL,
		cfg.APITimeout,
		cfg.APIRateLimitRPS,
		cfg.APIRateLimitBurst,
	)
	if err != nil {
		return err
	}

	weatherService := service.NewWeatherService(weatherClient, cacheSvc, cfg.CacheTTL, cfg.CacheBackend, opts.noCache, logger)

	lang := opts.lang
	if lang == "" {
		lang = cfg.DefaultLanguage
	}
	lang, err = validation.ValidateLanguage(lang)
	if err != nil {
		return err
	}

	// One correlation ID per invocation so the geo lookup and the conditions
	// fetch can be tied together in provider-side logs.
	ctx := client.WithCorrelationID(context.Background(), uuid.New().String())

	if opts.warm {
		if len(cfg.WarmLocations) == 0 {
			return errors.New("no warm_locations configured")
		}
		return service.NewWarmer(weatherService, logger).Warm(ctx, cfg.WarmLocations, lang)
	}

	units, ok := models.ParseUnits(firstNonEmpty(opts.units, cfg.DefaultUnits))
	if !ok {
		return validation.ErrUnknownUnits
	}

	if opts.serve {
		return serve(opts, cfg, weatherService, lang, units, cachePing)
	}

	location, err := validation.ValidateLocation(firstNonEmpty(opts.city, cfg.DefaultCity))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	query := models.WeatherQuery{Location: location, Language: lang, Units: units}
	obs, cached, err := weatherService.GetWeather(ctx, query)
	if err != nil {
		return err
	}

	if opts.jsonOut {
		out, err := format.RenderJSON(obs, units, cached)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(format.Render(obs, lang, units, cached))
	return nil
}

// buildCache selects the backend from config. The returned close func is safe
// to call unconditionally.
func buildCache(cfg *config.Config) (cache.Cache, func() error, func(*zap.Logger), error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		closer := func(logger *zap.Logger) {
			if err := mc.Close(); err != nil {
				logger.Warn("memcached close", zap.Error(err))
			}
		}
		return mc, mc.Ping, closer, nil
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		ping := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rc.Ping(ctx)
		}
		closer := func(logger *zap.Logger) {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close", zap.Error(err))
			}
		}
		return rc, ping, closer, nil
	default:
		fc, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("file cache: %w", err)
		}
		return fc, nil, func(*zap.Logger) {}, nil
	}
}

// serve runs the HTTP mode until SIGINT/SIGTERM.
func serve(opts options, cfg *config.Config, weatherService *service.WeatherService, lang string, units models.Units, cachePing func() error) error {
	logger, err := observability.NewServerLogger()
	if err != nil {
		return fmt.Errorf("server logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var limiter *rate.Limiter
	if cfg.ServerRateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ServerRateRPS), cfg.ServerRateBurst)
	}

	handler := server.NewHandler(weatherService, lang, units, logger, cachePing)
	router := server.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	addr := opts.addr
	if addr == "" {
		addr = ":" + cfg.ServerPort
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// userMessage turns the error taxonomy into the message printed on exit.
func userMessage(err error) string {
	switch {
	case errors.Is(err, client.ErrInvalidAPIKey):
		return fmt.Sprintf("authentication failed: %v\nset QWEATHER_API_KEY in the environment or a local .env file", err)
	case errors.Is(err, client.ErrLocationNotFound):
		return "city not found; check the name or try pinyin"
	case errors.Is(err, client.ErrRateLimited):
		return "provider rate limit reached; try again shortly"
	case errors.Is(err, validation.ErrUnknownLanguage):
		return "unsupported language (supported: en, zh, es)"
	default:
		return err.Error()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
