package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp moves the test into a fresh temp dir so Load sees only the files
// the test writes, and clears the env vars Load consults.
func chdirTemp(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"QWEATHER_API_KEY", "DEFAULT_CITY", "CACHE_BACKEND", "CACHE_DIR", "MEMCACHED_ADDRS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "ENV_NAME"} {
		t.Setenv(key, "")
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestLoad_Defaults verifies Load succeeds with no files at all and applies
// documented defaults, including the empty API key (rejected later by the
// client, not here).
func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "" {
		t.Errorf("APIKey = %q, want empty when nothing is configured", cfg.APIKey)
	}
	if cfg.DefaultCity != "beijing" {
		t.Errorf("DefaultCity = %q, want beijing", cfg.DefaultCity)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", cfg.DefaultLanguage)
	}
	if cfg.CacheBackend != "file" {
		t.Errorf("CacheBackend = %q, want file", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
	if filepath.Base(cfg.CacheDir) != ".weather_cache" {
		t.Errorf("CacheDir = %q, want a ~/.weather_cache default", cfg.CacheDir)
	}
	if cfg.GeoAPIURL == "" || cfg.WeatherAPIURL == "" {
		t.Error("provider URLs should have defaults")
	}
}

// TestLoad_DotEnvFile verifies .env parsing: comments, export prefix, quotes.
func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, ".env"), `
# local secrets, gitignored
QWEATHER_API_KEY="abc123def456"
export DEFAULT_CITY='shanghai'
MALFORMED LINE
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "abc123def456" {
		t.Errorf("APIKey = %q, want value from .env", cfg.APIKey)
	}
	if cfg.DefaultCity != "shanghai" {
		t.Errorf("DefaultCity = %q, want shanghai", cfg.DefaultCity)
	}
}

// TestLoad_EnvOverridesDotEnv verifies process environment wins over .env.
func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, ".env"), "QWEATHER_API_KEY=from-dotenv-file\n")
	t.Setenv("QWEATHER_API_KEY", "from-process-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIKey != "from-process-env" {
		t.Errorf("APIKey = %q, want process env to win", cfg.APIKey)
	}
}

// TestLoad_YAMLFile verifies the optional config file feeds provider, cache,
// and server settings.
func TestLoad_YAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, "config", "dev.yaml"), `
provider:
  timeout: 5s
defaults:
  city: shenzhen
  language: zh
  units: imperial
cache:
  backend: redis
  ttl: 10m
  redis:
    addr: redis.internal:6379
    db: 3
server:
  port: "9090"
warm_locations:
  - beijing
  - shanghai
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APITimeout != 5*time.Second {
		t.Errorf("APITimeout = %v, want 5s", cfg.APITimeout)
	}
	if cfg.DefaultCity != "shenzhen" || cfg.DefaultLanguage != "zh" || cfg.DefaultUnits != "imperial" {
		t.Errorf("defaults = %q/%q/%q", cfg.DefaultCity, cfg.DefaultLanguage, cfg.DefaultUnits)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("CacheBackend = %q, want redis", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.RedisAddr != "redis.internal:6379" || cfg.RedisDB != 3 {
		t.Errorf("redis = %q db %d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if len(cfg.WarmLocations) != 2 {
		t.Errorf("WarmLocations = %v, want 2 entries", cfg.WarmLocations)
	}
}

// TestLoad_EnvOverridesYAML verifies env beats the config file for the
// overridable knobs.
func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, "config", "dev.yaml"), "cache:\n  backend: redis\n")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached from env", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
}

// TestLoad_InvalidBackend verifies validation rejects unknown cache backends.
func TestLoad_InvalidBackend(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CACHE_BACKEND", "etcd")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want invalid backend error")
	}
}

// TestLoad_BadDurationFallsBack verifies malformed durations fall back to
// defaults instead of failing.
func TestLoad_BadDurationFallsBack(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, "config", "dev.yaml"), "cache:\n  ttl: not-a-duration\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m fallback", cfg.CacheTTL)
	}
}

// TestLoad_EnvName verifies ENV_NAME selects the config file.
func TestLoad_EnvName(t *testing.T) {
	dir := chdirTemp(t)
	writeFile(t, filepath.Join(dir, "config", "prod.yaml"), "defaults:\n  city: guangzhou\n")
	t.Setenv("ENV_NAME", "prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultCity != "guangzhou" {
		t.Errorf("DefaultCity = %q, want guangzhou from prod.yaml", cfg.DefaultCity)
	}
}
