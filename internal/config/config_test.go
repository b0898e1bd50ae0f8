package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/l3aro/go-liveness/internal/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Output", cfg.Output, OutputText},
		{"CacheEnabled", cfg.CacheEnabled, true},
		{"CacheMaxEntries", cfg.CacheMaxEntries, 4096},
		{"CacheMaxBytes", cfg.CacheMaxBytes, int64(64 * 1024 * 1024)},
		{"Workers", cfg.Workers, 4},
		{"WatchDebounceMS", cfg.WatchDebounceMS, 200},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogJSON", cfg.LogJSON, false},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if !strings.HasSuffix(cfg.CachePath, filepath.Join(".lva", "cache.msgpack")) {
		t.Errorf("CachePath = %q, want it under .lva", cfg.CachePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"defaults", func(*Config) {}, ""},
		{"json output", func(c *Config) { c.Output = OutputJSON }, ""},
		{"cache disabled without path", func(c *Config) { c.CacheEnabled = false; c.CachePath = "" }, ""},
		{"invalid output", func(c *Config) { c.Output = "xml" }, "invalid output"},
		{"cache without path", func(c *Config) { c.CachePath = "" }, "cache_path is required"},
		{"negative entries", func(c *Config) { c.CacheMaxEntries = -1 }, "cache_max_entries"},
		{"negative bytes", func(c *Config) { c.CacheMaxBytes = -1 }, "cache_max_bytes"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers must be positive"},
		{"negative debounce", func(c *Config) { c.WatchDebounceMS = -5 }, "watch_debounce_ms"},
		{"extension without dot", func(c *Config) { c.Extensions = []string{"cs"} }, "must start with a dot"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CachePath = "/tmp/lva.cache"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %q, should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		errContains string
	}{
		{
			name: "load valid config from file",
			configYAML: `
output: json
cache_enabled: true
cache_path: /var/cache/lva.msgpack
cache_max_entries: 10
workers: 8
extensions: [".cs"]
log_level: debug
log_json: true
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Output != OutputJSON {
					t.Errorf("Output = %v, want json", cfg.Output)
				}
				if cfg.CachePath != "/var/cache/lva.msgpack" {
					t.Errorf("CachePath = %v, want /var/cache/lva.msgpack", cfg.CachePath)
				}
				if cfg.CacheMaxEntries != 10 {
					t.Errorf("CacheMaxEntries = %v, want 10", cfg.CacheMaxEntries)
				}
				if cfg.Workers != 8 {
					t.Errorf("Workers = %v, want 8", cfg.Workers)
				}
				if !reflect.DeepEqual(cfg.Extensions, []string{".cs"}) {
					t.Errorf("Extensions = %v, want [.cs]", cfg.Extensions)
				}
				if cfg.LogLevel != "debug" || !cfg.LogJSON {
					t.Errorf("logging = %s/%v, want debug/true", cfg.LogLevel, cfg.LogJSON)
				}
				if cfg.WatchDebounceMS != 200 {
					t.Errorf("WatchDebounceMS = %v, want default 200", cfg.WatchDebounceMS)
				}
			},
		},
		{
			name:       "env var overrides file values",
			configYAML: "workers: 2\noutput: text\n",
			envVars: map[string]string{
				"LVA_WORKERS":       "16",
				"LVA_OUTPUT":        "json",
				"LVA_CACHE_ENABLED": "0",
				"LVA_EXTENSIONS":    ".cs, .csx",
			},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Workers != 16 {
					t.Errorf("Workers = %v, want 16 (from env)", cfg.Workers)
				}
				if cfg.Output != OutputJSON {
					t.Errorf("Output = %v, want json (from env)", cfg.Output)
				}
				if cfg.CacheEnabled {
					t.Error("CacheEnabled = true, want false (from env)")
				}
				if !reflect.DeepEqual(cfg.Extensions, []string{".cs", ".csx"}) {
					t.Errorf("Extensions = %v, want [.cs .csx]", cfg.Extensions)
				}
			},
		},
		{
			name:       "malformed env number is ignored",
			configYAML: "workers: 3\n",
			envVars:    map[string]string{"LVA_WORKERS": "many"},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Workers != 3 {
					t.Errorf("Workers = %v, want 3", cfg.Workers)
				}
			},
		},
		{
			name: "invalid yaml",
			configYAML: `
output: text
  invalid: indent
`,
			errContains: "failed to parse",
		},
		{
			name:        "invalid output in file",
			configYAML:  "output: xml\n",
			errContains: "invalid output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			cfg, err := LoadFromFile(configPath)
			if tt.errContains != "" {
				if err == nil {
					t.Fatalf("Expected error containing %q, got nil", tt.errContains)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Error = %q, should contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.checkCfg(t, cfg)
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("LoadFromFile(missing) error = %v, want read failure", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	chdir(t, project)

	write := func(path, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(home, ".lva", "config.yaml"), "workers: 2\nlog_level: warn\noutput: json\n")
	write(filepath.Join(project, ".lva", "config.yaml"), "workers: 6\n")
	t.Setenv("LVA_LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6 from the project file", cfg.Workers)
	}
	if cfg.Output != OutputJSON {
		t.Errorf("Output = %s, want json from the global file", cfg.Output)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %s, want error from env", cfg.LogLevel)
	}
	if cfg.CachePath != filepath.Join(home, ".lva", "cache.msgpack") {
		t.Errorf("CachePath = %s, want default under HOME", cfg.CachePath)
	}
}

func TestConfigSave(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 12
	cfg.Output = OutputJSON

	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestConfigLogger(t *testing.T) {
	cfg := DefaultConfig()
	var _ log.Logger = cfg.Logger()

	cfg.LogLevel = "bogus"
	if cfg.Logger() == nil {
		t.Error("Logger() returned nil for an unknown level")
	}
}

func TestHasExtension(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		path string
		want bool
	}{
		{"src/Program.cs", true},
		{"src/Program.CS", true},
		{"graphs/m.yml", true},
		{"README.md", false},
		{"Makefile", false},
	}
	for _, tt := range tests {
		if got := cfg.HasExtension(tt.path); got != tt.want {
			t.Errorf("HasExtension(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"42", 42},
		{"-3", -3},
		{"abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseInt(tt.in); got != tt.want {
			t.Errorf("parseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// chdir changes the working directory for the duration of the test and
// restores it during cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
