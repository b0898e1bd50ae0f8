package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-liveness/internal/log"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how analysis results are printed.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds all configuration for lva
type Config struct {
	// Output format for analyze/solve results
	Output OutputFormat `yaml:"output" env:"LVA_OUTPUT"`

	// Result cache
	CacheEnabled    bool   `yaml:"cache_enabled" env:"LVA_CACHE_ENABLED"`
	CachePath       string `yaml:"cache_path" env:"LVA_CACHE_PATH"`
	CacheMaxEntries int    `yaml:"cache_max_entries" env:"LVA_CACHE_MAX_ENTRIES"`
	CacheMaxBytes   int64  `yaml:"cache_max_bytes" env:"LVA_CACHE_MAX_BYTES"`

	// Number of methods analyzed concurrently by batch runs
	Workers int `yaml:"workers" env:"LVA_WORKERS"`

	// File extensions picked up when analyzing or watching directories
	Extensions []string `yaml:"extensions" env:"LVA_EXTENSIONS"`

	// Quiet period before a watched change triggers re-analysis
	WatchDebounceMS int `yaml:"watch_debounce_ms" env:"LVA_WATCH_DEBOUNCE_MS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"LVA_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"LVA_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"LVA_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Output:          OutputText,
		CacheEnabled:    true,
		CachePath:       defaultCachePath(),
		CacheMaxEntries: 4096,
		CacheMaxBytes:   64 * 1024 * 1024,
		Workers:         4,
		Extensions:      []string{".cs", ".yaml", ".yml"},
		WatchDebounceMS: 200,
		LogLevel:        "info",
		LogJSON:         false,
		Verbose:         false,
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lva", "cache.msgpack")
	}
	return filepath.Join(home, ".lva", "cache.msgpack")
}

// GlobalConfigFilePath returns the global config file path (~/.lva/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lva", "config.yaml")
	}
	return filepath.Join(home, ".lva", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.lva/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".lva", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.lva/config.yaml)
// 3. Global config (~/.lva/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LVA_OUTPUT"); v != "" {
		cfg.Output = OutputFormat(v)
	}
	if v := os.Getenv("LVA_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("LVA_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("LVA_CACHE_MAX_ENTRIES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheMaxEntries = i
		}
	}
	if v := os.Getenv("LVA_CACHE_MAX_BYTES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheMaxBytes = int64(i)
		}
	}
	if v := os.Getenv("LVA_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("LVA_EXTENSIONS"); v != "" {
		var exts []string
		for _, ext := range strings.Split(v, ",") {
			if ext = strings.TrimSpace(ext); ext != "" {
				exts = append(exts, ext)
			}
		}
		cfg.Extensions = exts
	}
	if v := os.Getenv("LVA_WATCH_DEBOUNCE_MS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.WatchDebounceMS = i
		}
	}
	if v := os.Getenv("LVA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LVA_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("LVA_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("invalid output: %s (must be 'text' or 'json')", c.Output)
	}

	if c.CacheEnabled && c.CachePath == "" {
		return fmt.Errorf("cache_path is required when the cache is enabled")
	}
	if c.CacheMaxEntries < 0 {
		return fmt.Errorf("cache_max_entries must be non-negative")
	}
	if c.CacheMaxBytes < 0 {
		return fmt.Errorf("cache_max_bytes must be non-negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.WatchDebounceMS < 0 {
		return fmt.Errorf("watch_debounce_ms must be non-negative")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Logger builds a logger from the logging settings. Verbose forces debug.
func (c *Config) Logger() *log.DefaultLogger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	if c.Verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{Level: level, JSONOutput: c.LogJSON})
}

// HasExtension reports whether path matches one of the configured extensions.
func (c *Config) HasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
