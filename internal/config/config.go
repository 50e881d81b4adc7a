package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"PocketChat/internal/backend"
)

// Cache backend selectors.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheOff    = "off"
)

// Config holds application configuration. Values come from defaults,
// then an optional TOML file, then command-line flags, in that order.
type Config struct {
	Backend           string   `toml:"backend"`
	Model             string   `toml:"model"`
	SystemInstruction string   `toml:"system_instruction"`
	Models            []string `toml:"models"`
	MaxTokens         int64    `toml:"max_tokens"`
	Temperature       *float64 `toml:"temperature"`

	Addr   string `toml:"addr"`
	LogDir string `toml:"log_dir"`
	Debug  bool   `toml:"debug"`

	LedgerPath string `toml:"ledger_path"`

	CacheBackend string `toml:"cache_backend"`
	CacheTTL     string `toml:"cache_ttl"`
	RedisURL     string `toml:"redis_url"`

	OllamaHost  string `toml:"ollama_host"`
	OllamaModel string `toml:"ollama_model"` // Model specification in format "model:version" (e.g., "llama3:latest")

	Interactive bool `toml:"-"`
}

// Default returns the configuration used when nothing is overridden.
// The model list is what the UI's picker offers for hosted backends.
func Default() Config {
	return Config{
		Backend:      backend.NameOllama,
		Models:       []string{"gpt-3.5-turbo", "gpt-4o-mini", "gpt-4o"},
		Addr:         ":8080",
		LogDir:       "logs",
		LedgerPath:   "pocketchat.db",
		CacheBackend: CacheMemory,
		RedisURL:     "redis://localhost:6379",
		OllamaHost:   backend.DefaultOllamaHost,
		OllamaModel:  backend.DefaultOllamaModel,
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration shape. Credentials are not checked
// here; backend construction validates those at startup.
func (c *Config) Validate() error {
	if !backend.Known(c.Backend) {
		return fmt.Errorf("unknown backend: %s (choose from %v)", c.Backend, backend.Names())
	}
	switch c.CacheBackend {
	case CacheMemory, CacheRedis, CacheOff:
	default:
		return fmt.Errorf("unknown cache backend: %s (memory|redis|off)", c.CacheBackend)
	}
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path must not be empty")
	}
	if c.CacheTTL != "" {
		if _, err := time.ParseDuration(c.CacheTTL); err != nil {
			return fmt.Errorf("invalid cache_ttl: %w", err)
		}
	}
	return nil
}

// CacheTTLDuration returns the parsed cache TTL, zero when unset.
func (c *Config) CacheTTLDuration() time.Duration {
	if c.CacheTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}
