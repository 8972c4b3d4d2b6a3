package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hiteshvirani/email.scrapping/internal/logger"
)

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config holds every recognized runtime option. Durations are stored the way
// they appear in config.json (seconds or milliseconds) and exposed through
// typed accessors.
type Config struct {
	// Stealth
	EnableStealth bool   `json:"enable_stealth"`
	Headless      bool   `json:"headless"`
	ChromePath    string `json:"chrome_path"`

	// Timing
	MinPageDelay    float64 `json:"min_page_delay"`   // seconds
	MaxPageDelay    float64 `json:"max_page_delay"`   // seconds
	MinActionDelay  float64 `json:"min_action_delay"` // seconds
	MaxActionDelay  float64 `json:"max_action_delay"` // seconds
	MinTypingDelay  int     `json:"min_typing_delay"` // milliseconds
	MaxTypingDelay  int     `json:"max_typing_delay"` // milliseconds
	MinScroll       int     `json:"min_scroll"`       // pixels
	MaxScroll       int     `json:"max_scroll"`       // pixels
	PageLoadTimeout int     `json:"page_load_timeout"` // milliseconds

	// Proxy
	UseProxy            bool    `json:"use_proxy"`
	ProxyServer         string  `json:"proxy_server"`
	ProxyUsername       string  `json:"proxy_username"`
	ProxyPassword       string  `json:"proxy_password"`
	ProxyListFile       string  `json:"proxy_list_file"`
	ProxyRotationChance float64 `json:"proxy_rotation_chance"`
	MaxProxyFailures    int     `json:"max_proxy_failures"`
	HealthCheckURL      string  `json:"health_check_url"`
	HealthCheckTimeout  float64 `json:"health_check_timeout"` // seconds

	// Retries
	MaxRetries int     `json:"max_retries"`
	RetryDelay float64 `json:"retry_delay"` // seconds

	// Search
	BaseURL          string `json:"base_url"`
	MaxPagesPerQuery int    `json:"max_pages_per_query"`

	// Fingerprint pools
	Locales             []string   `json:"locales"`
	Timezones           []string   `json:"timezones"`
	Viewports           []Viewport `json:"viewports"`
	UserAgents          []string   `json:"user_agents"`
	DeviceScaleFactors  []float64  `json:"device_scale_factors"`
	HardwareConcurrency []int      `json:"hardware_concurrency"`

	ChallengeIndicators []string `json:"challenge_indicators"`

	// Query generation
	QuerySites     []string `json:"query_sites"`
	QueryCities    []string `json:"query_cities"`
	QueryProviders []string `json:"query_providers"`
	QueriesPerFile int      `json:"queries_per_file"`

	// Files
	InputDir         string `json:"input_dir"`
	OutputDir        string `json:"output_dir"`
	CSVPath          string `json:"csv_path"`
	DatabasePath     string `json:"database_path"`
	ConsolidatedPath string `json:"consolidated_path"`
	EmailDomain      string `json:"email_domain"`

	LogLevel string `json:"log_level"`
}

// DefaultUserAgents look like current desktop browsers.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

// DefaultChallengeIndicators are matched case-insensitively against page HTML.
var DefaultChallengeIndicators = []string{
	"recaptcha",
	"captcha",
	"unusual traffic",
	"are you a robot",
	"verify you're human",
	"security check",
}

var defaultConfig = Config{
	EnableStealth: true,
	Headless:      true,

	MinPageDelay:    3.0,
	MaxPageDelay:    12.0,
	MinActionDelay:  0.3,
	MaxActionDelay:  1.5,
	MinTypingDelay:  50,
	MaxTypingDelay:  150,
	MinScroll:       200,
	MaxScroll:       600,
	PageLoadTimeout: 60000,

	ProxyRotationChance: 0.3,
	MaxProxyFailures:    3,
	HealthCheckURL:      "https://httpbin.org/ip",
	HealthCheckTimeout:  10,

	MaxRetries: 3,
	RetryDelay: 5.0,

	BaseURL:          "https://www.google.com/search",
	MaxPagesPerQuery: 10,

	Locales: []string{"en-US", "en-GB", "en-CA", "en-AU"},
	Timezones: []string{
		"America/New_York", "America/Los_Angeles", "America/Chicago",
		"Europe/London", "America/Denver", "America/Phoenix",
	},
	Viewports: []Viewport{
		{Width: 1920, Height: 1080},
		{Width: 1366, Height: 768},
		{Width: 1536, Height: 864},
		{Width: 1440, Height: 900},
		{Width: 1280, Height: 720},
		{Width: 1600, Height: 900},
	},
	UserAgents:          DefaultUserAgents,
	DeviceScaleFactors:  []float64{1, 1.25, 1.5, 2},
	HardwareConcurrency: []int{4, 8},
	ChallengeIndicators: DefaultChallengeIndicators,

	QuerySites:     []string{"site:instagram.com", "site:linkedin.com", "site:x.com"},
	QueryCities:    DefaultCities,
	QueryProviders: []string{"@gmail.com"},
	QueriesPerFile: 10000,

	InputDir:         "input",
	OutputDir:        "output",
	CSVPath:          "input/search.queries.1.csv",
	DatabasePath:     "emails/emails.sqlite",
	ConsolidatedPath: "emails/extracted_emails.csv",
	EmailDomain:      "gmail.com",

	LogLevel: "info",
}

// Default returns a copy of the built-in defaults.
func Default() Config {
	return defaultConfig.clone()
}

// Load builds the configuration: defaults, then config.json at path (if it
// exists), then .env, then process environment. The result is validated.
func Load(path string) (Config, error) {
	l := logger.WithComponent("config")
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil:
			l.Warn().Err(err).Str("path", path).Msg("Could not read config file, using defaults")
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				l.Warn().Err(err).Str("path", path).Msg("Invalid config file, using defaults")
				cfg = Default()
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.Warn().Err(err).Msg("Could not parse .env file")
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.clone(), nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from environment variables. Booleans follow the
// "true"/anything-else convention of the old deployment scripts.
func (c *Config) applyEnv(lookup lookupFunc) error {
	boolVar := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	strVar := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	intVar := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	floatVar := func(key string, dst *float64) error {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}

	boolVar("ENABLE_STEALTH", &c.EnableStealth)
	boolVar("HEADLESS", &c.Headless)
	boolVar("USE_PROXY", &c.UseProxy)
	strVar("PROXY_SERVER", &c.ProxyServer)
	strVar("PROXY_USERNAME", &c.ProxyUsername)
	strVar("PROXY_PASSWORD", &c.ProxyPassword)
	strVar("PROXY_LIST_FILE", &c.ProxyListFile)
	strVar("OUTPUT_DIR", &c.OutputDir)
	strVar("INPUT_DIR", &c.InputDir)
	strVar("CSV_PATH", &c.CSVPath)
	strVar("CHROME_PATH", &c.ChromePath)
	strVar("LOG_LEVEL", &c.LogLevel)

	if err := intVar("MAX_PAGES_PER_QUERY", &c.MaxPagesPerQuery); err != nil {
		return err
	}
	if err := intVar("PAGE_LOAD_TIMEOUT", &c.PageLoadTimeout); err != nil {
		return err
	}
	if err := floatVar("MIN_PAGE_DELAY", &c.MinPageDelay); err != nil {
		return err
	}
	if err := floatVar("MAX_PAGE_DELAY", &c.MaxPageDelay); err != nil {
		return err
	}
	if err := floatVar("PROXY_ROTATION_CHANCE", &c.ProxyRotationChance); err != nil {
		return err
	}
	return nil
}

// Validate rejects option combinations the crawler cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MinPageDelay < 0 || c.MaxPageDelay < c.MinPageDelay {
		errs = append(errs, fmt.Errorf("page delay range [%v,%v] is invalid", c.MinPageDelay, c.MaxPageDelay))
	}
	if c.MinActionDelay < 0 || c.MaxActionDelay < c.MinActionDelay {
		errs = append(errs, fmt.Errorf("action delay range [%v,%v] is invalid", c.MinActionDelay, c.MaxActionDelay))
	}
	if c.MinTypingDelay < 0 || c.MaxTypingDelay < c.MinTypingDelay {
		errs = append(errs, fmt.Errorf("typing delay range [%d,%d] is invalid", c.MinTypingDelay, c.MaxTypingDelay))
	}
	if c.MinScroll <= 0 || c.MaxScroll < c.MinScroll {
		errs = append(errs, fmt.Errorf("scroll range [%d,%d] is invalid", c.MinScroll, c.MaxScroll))
	}
	if c.PageLoadTimeout <= 0 {
		errs = append(errs, errors.New("page_load_timeout must be positive"))
	}
	if c.ProxyRotationChance < 0 || c.ProxyRotationChance > 1 {
		errs = append(errs, fmt.Errorf("proxy_rotation_chance %v is outside [0,1]", c.ProxyRotationChance))
	}
	if c.MaxProxyFailures <= 0 {
		errs = append(errs, errors.New("max_proxy_failures must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must not be negative"))
	}
	if c.MaxPagesPerQuery <= 0 {
		errs = append(errs, errors.New("max_pages_per_query must be positive"))
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if len(c.Locales) == 0 || len(c.Timezones) == 0 || len(c.Viewports) == 0 ||
		len(c.UserAgents) == 0 || len(c.DeviceScaleFactors) == 0 || len(c.HardwareConcurrency) == 0 {
		errs = append(errs, errors.New("fingerprint pools must not be empty"))
	}
	if c.QueriesPerFile <= 0 {
		errs = append(errs, errors.New("queries_per_file must be positive"))
	}
	for _, vp := range c.Viewports {
		if vp.Width <= 0 || vp.Height <= 0 {
			errs = append(errs, fmt.Errorf("viewport %dx%d is invalid", vp.Width, vp.Height))
		}
	}
	return errors.Join(errs...)
}

func (c Config) clone() Config {
	out := c
	out.Locales = append([]string(nil), c.Locales...)
	out.Timezones = append([]string(nil), c.Timezones...)
	out.Viewports = append([]Viewport(nil), c.Viewports...)
	out.UserAgents = append([]string(nil), c.UserAgents...)
	out.DeviceScaleFactors = append([]float64(nil), c.DeviceScaleFactors...)
	out.HardwareConcurrency = append([]int(nil), c.HardwareConcurrency...)
	out.ChallengeIndicators = append([]string(nil), c.ChallengeIndicators...)
	out.QuerySites = append([]string(nil), c.QuerySites...)
	out.QueryCities = append([]string(nil), c.QueryCities...)
	out.QueryProviders = append([]string(nil), c.QueryProviders...)
	return out
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (c Config) PageDelayRange() (time.Duration, time.Duration) {
	return seconds(c.MinPageDelay), seconds(c.MaxPageDelay)
}

func (c Config) ActionDelayRange() (time.Duration, time.Duration) {
	return seconds(c.MinActionDelay), seconds(c.MaxActionDelay)
}

func (c Config) TypingDelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.MinTypingDelay) * time.Millisecond, time.Duration(c.MaxTypingDelay) * time.Millisecond
}

func (c Config) PageLoad() time.Duration {
	return time.Duration(c.PageLoadTimeout) * time.Millisecond
}

func (c Config) HealthTimeout() time.Duration {
	return seconds(c.HealthCheckTimeout)
}

func (c Config) Retry() time.Duration {
	return seconds(c.RetryDelay)
}
