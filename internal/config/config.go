package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tongyiyu/weather-cli/internal/models"
)

// Config holds tool configuration loaded from an optional YAML file, a local
// .env file, and the process environment. Read-only after Load.
type Config struct {
	APIKey string

	GeoAPIURL     string
	WeatherAPIURL string
	APITimeout    time.Duration

	DefaultCity     string
	DefaultLanguage string
	DefaultUnits    string

	CacheBackend string // "file", "memcached" or "redis"
	CacheDir     string
	CacheTTL     time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Client-side throttle for outbound provider calls. Zero disables it.
	APIRateLimitRPS   int
	APIRateLimitBurst int

	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ServerRateRPS   int
	ServerRateBurst int

	WarmLocations []string
}

type fileConfig struct {
	Provider struct {
		GeoURL     string `yaml:"geo_url"`
		WeatherURL string `yaml:"weather_url"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"provider"`

	Defaults struct {
		City     string `yaml:"city"`
		Language string `yaml:"language"`
		Units    string `yaml:"units"`
	} `yaml:"defaults"`

	Cache struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		TTL     string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	RateLimit struct {
		RPS   int `yaml:"rps"`
		Burst int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Server struct {
		Port            string `yaml:"port"`
		RequestTimeout  string `yaml:"request_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		RateLimitRPS    int    `yaml:"rate_limit_rps"`
		RateLimitBurst  int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	WarmLocations []string `yaml:"warm_locations"`
}

// Load reads configuration in ascending precedence: built-in defaults,
// config/{ENV_NAME}.yaml (optional), .env in the working directory (optional),
// process environment. A missing API key is not an error here; the client
// rejects it before any network call.
func Load() (*Config, error) {
	var fc fileConfig
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join("config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	dotenv, err := loadDotEnv(".env")
	if err != nil {
		return nil, err
	}

	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	cfg := &Config{}
	cfg.APIKey = get("QWEATHER_API_KEY")

	cfg.GeoAPIURL = fc.Provider.GeoURL
	if cfg.GeoAPIURL == "" {
		cfg.GeoAPIURL = "https://geoapi.qweather.com/v2/city/lookup"
	}
	cfg.WeatherAPIURL = fc.Provider.WeatherURL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://devapi.qweather.com/v7/weather/now"
	}
	cfg.APITimeout = parseDuration(fc.Provider.Timeout, 15*time.Second)

	cfg.DefaultCity = get("DEFAULT_CITY")
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = fc.Defaults.City
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = "beijing"
	}
	cfg.DefaultLanguage = fc.Defaults.Language
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	cfg.DefaultUnits = fc.Defaults.Units
	if cfg.DefaultUnits == "" {
		cfg.DefaultUnits = "metric"
	}

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(get("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "file"
	}
	cfg.CacheDir = get("CACHE_DIR")
	if cfg.CacheDir == "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory for cache: %w", err)
		}
		cfg.CacheDir = filepath.Join(home, ".weather_cache")
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 30*time.Minute)

	cfg.MemcachedAddrs = get("MEMCACHED_ADDRS")
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = get("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = fc.Cache.Redis.Addr
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPassword = get("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		cfg.RedisPassword = fc.Cache.Redis.Password
	}
	cfg.RedisDB = getInt(get("REDIS_DB"), fc.Cache.Redis.DB)

	cfg.APIRateLimitRPS = fc.RateLimit.RPS
	cfg.APIRateLimitBurst = fc.RateLimit.Burst
	if cfg.APIRateLimitBurst <= 0 && cfg.APIRateLimitRPS > 0 {
		cfg.APIRateLimitBurst = cfg.APIRateLimitRPS
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 20*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Server.ShutdownTimeout, 10*time.Second)
	cfg.ServerRateRPS = fc.Server.RateLimitRPS
	cfg.ServerRateBurst = fc.Server.RateLimitBurst
	if cfg.ServerRateBurst <= 0 && cfg.ServerRateRPS > 0 {
		cfg.ServerRateBurst = cfg.ServerRateRPS * 2
	}

	cfg.WarmLocations = fc.WarmLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv parses a KEY=VALUE env file. Missing file is not an error.
// Supports '#' comments, blank lines, optional "export " prefix and
// single/double quoted values.
func loadDotEnv(path string) (map[string]string, error) {
	out := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		if key != "" {
			out[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}
	return out, nil
}

// parseDuration parses a duration string, falling back to defaultVal on empty
// input, parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}

// validate performs post-load checks on configuration values.
func validate(cfg *Config) error {
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive")
	}
	switch cfg.CacheBackend {
	case "file", "memcached", "redis":
		// valid
	default:
		return fmt.Errorf("cache.backend must be file, memcached or redis, got %q", cfg.CacheBackend)
	}
	if _, ok := models.ParseUnits(cfg.DefaultUnits); !ok {
		return fmt.Errorf("defaults.units must be metric or imperial, got %q", cfg.DefaultUnits)
	}
	return nil
}
