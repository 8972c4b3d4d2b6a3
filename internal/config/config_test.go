package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(*Config)
	}{
		{"inverted page delay", func(c *Config) { c.MinPageDelay, c.MaxPageDelay = 5, 1 }},
		{"inverted typing delay", func(c *Config) { c.MinTypingDelay, c.MaxTypingDelay = 200, 10 }},
		{"zero page load timeout", func(c *Config) { c.PageLoadTimeout = 0 }},
		{"rotation chance above one", func(c *Config) { c.ProxyRotationChance = 1.5 }},
		{"zero max pages", func(c *Config) { c.MaxPagesPerQuery = 0 }},
		{"empty locale pool", func(c *Config) { c.Locales = nil }},
		{"bad viewport", func(c *Config) { c.Viewports = []Viewport{{Width: 0, Height: 100}} }},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			cfg := Default()
			testCase.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted %s", testCase.description)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HEADLESS":              "false",
		"USE_PROXY":             "TRUE",
		"PROXY_LIST_FILE":       "/tmp/proxies.txt",
		"MAX_PAGES_PER_QUERY":   "4",
		"MIN_PAGE_DELAY":        "1.5",
		"PROXY_ROTATION_CHANCE": "0",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}

	got := []any{cfg.Headless, cfg.UseProxy, cfg.ProxyListFile, cfg.MaxPagesPerQuery, cfg.MinPageDelay, cfg.ProxyRotationChance}
	want := []any{false, true, "/tmp/proxies.txt", 4, 1.5, 0.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("applyEnv mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyEnvBadNumber(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == "MAX_PAGES_PER_QUERY" {
			return "ten", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("expected parse error for MAX_PAGES_PER_QUERY")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"max_pages_per_query": 2, "min_page_delay": 0, "max_page_delay": 0, "locales": ["de-DE"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPagesPerQuery != 2 && os.Getenv("MAX_PAGES_PER_QUERY") == "" {
		t.Errorf("MaxPagesPerQuery = %d, want 2", cfg.MaxPagesPerQuery)
	}
	if diff := cmp.Diff([]string{"de-DE"}, cfg.Locales); diff != "" {
		t.Errorf("Locales mismatch (-want +got):\n%s", diff)
	}
	if cfg.BaseURL != defaultConfig.BaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Viewports) != len(defaultConfig.Viewports) {
		t.Errorf("got %d viewports, want %d", len(cfg.Viewports), len(defaultConfig.Viewports))
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	lo, hi := cfg.TypingDelayRange()
	if lo != 50*time.Millisecond || hi != 150*time.Millisecond {
		t.Errorf("TypingDelayRange() = %v,%v", lo, hi)
	}
	if cfg.PageLoad() != time.Minute {
		t.Errorf("PageLoad() = %v, want 1m", cfg.PageLoad())
	}
}

func TestDefaultReturnsCopy(t *testing.T) {
	a := Default()
	a.Locales[0] = "xx-XX"
	if Default().Locales[0] == "xx-XX" {
		t.Error("Default() shares slices with the package defaults")
	}
}
