package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
	"spotprice/internal/source"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Logging  LoggingConfig `yaml:"logging"`
	Timezone string        `yaml:"timezone"`
	Refresh  RefreshConfig `yaml:"refresh"`
	Cache    CacheConfig   `yaml:"cache"`

	// Defaults for every source; a source's own surcharge block overrides non-zero fields.
	Surcharge pricing.Surcharge `yaml:"surcharge"`

	// Optional: load sources from a separate YAML (e.g. examples/sources.yaml).
	// Entries in Sources with the same id override entries from the file.
	SourcesFile string         `yaml:"sources_file"`
	Sources     []SourceConfig `yaml:"sources"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	Env            string   `yaml:"env"`
	RulesDir       string   `yaml:"rules_dir"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level      string            `yaml:"level"`
	Format     string            `yaml:"format"`
	Output     string            `yaml:"output"`
	FilePath   string            `yaml:"file_path"`
	MaxSize    int               `yaml:"max_size"`
	MaxBackups int               `yaml:"max_backups"`
	MaxAge     int               `yaml:"max_age"`
	Compress   bool              `yaml:"compress"`
	Fields     map[string]string `yaml:"fields"`
}

type RefreshConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Jitter    time.Duration `yaml:"jitter"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxErrors int           `yaml:"max_errors"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

type SourceConfig struct {
	ID              string `yaml:"id"`
	Provider        string `yaml:"provider"`
	MarketArea      string `yaml:"market_area"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Mode            string `yaml:"mode"`
	Currency        string `yaml:"currency"`
	Formula         string `yaml:"formula"`
	BaseURL         string `yaml:"base_url"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `yaml:"token_env"`
	Dataset  string `yaml:"dataset"`
	Location string `yaml:"location"`
	Path     string `yaml:"path"`

	Surcharge pricing.Surcharge `yaml:"surcharge"`
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Port: "8080", Env: "development", RulesDir: "examples/rules"},
		Logging:  LoggingConfig{Level: "info", Format: "text", Output: "stdout", MaxSize: 50, MaxBackups: 3, MaxAge: 14},
		Timezone: "Europe/Berlin",
		Refresh: RefreshConfig{
			Interval:  time.Hour,
			Jitter:    9 * time.Minute,
			Timeout:   30 * time.Second,
			MaxErrors: 3,
		},
		Cache:     CacheConfig{TTL: time.Hour},
		Surcharge: pricing.DefaultSurcharge(),
	}
}

// LoadEnv reads .env style files into the process environment. Missing files
// are skipped; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config over Default, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.SourcesFile != "" {
		sourcesPath := c.SourcesFile
		if !filepath.IsAbs(sourcesPath) {
			// Prefer paths relative to the config file, fall back to cwd.
			cand := filepath.Join(filepath.Dir(path), sourcesPath)
			if _, err := os.Stat(cand); err == nil {
				sourcesPath = cand
			}
		}
		loaded, err := loadSourcesFile(sourcesPath)
		if err != nil {
			return nil, err
		}
		c.Sources = MergeSources(loaded, c.Sources)
	}
	return &c, nil
}

// applyEnv lets deployment environment variables override file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("API_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("API_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("RULES_DIR"); v != "" {
		c.Server.RulesDir = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Refresh.Interval <= 0 {
		return errors.New("refresh.interval must be > 0")
	}
	if c.Refresh.Jitter < 0 || c.Refresh.Timeout < 0 {
		return errors.New("refresh.jitter and refresh.timeout must be >= 0")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0 when cache is enabled")
	}
	if err := c.Surcharge.Validate(); err != nil {
		return fmt.Errorf("surcharge: %w", err)
	}
	if len(c.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := map[string]bool{}
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
		if _, err := s.Spec(); err != nil {
			return fmt.Errorf("source %q: %w", s.ID, err)
		}
		if _, err := pricing.ParseFormula(s.Formula); err != nil {
			return fmt.Errorf("source %q: %w", s.ID, err)
		}
	}
	return nil
}

// Location resolves Timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Spec converts the YAML entry into what the source registry builds from.
// The token is read from the environment at this point.
func (s SourceConfig) Spec() (source.Spec, error) {
	spec := source.Spec{
		ID:              s.ID,
		Provider:        s.Provider,
		MarketArea:      s.MarketArea,
		DurationMinutes: s.DurationMinutes,
		Currency:        s.Currency,
		BaseURL:         s.BaseURL,
		Dataset:         s.Dataset,
		Location:        s.Location,
		Path:            s.Path,
	}
	if s.TokenEnv != "" {
		spec.Token = os.Getenv(s.TokenEnv)
	}
	if s.Mode != "" {
		mode, err := model.ParseNormalizeMode(s.Mode)
		if err != nil {
			return source.Spec{}, err
		}
		spec.Mode = mode
	}
	if !source.Registered(s.Provider) {
		return source.Spec{}, fmt.Errorf("unknown provider %q (known: %s)", s.Provider, strings.Join(source.Providers(), ", "))
	}
	return spec, nil
}

// SourceSpec is s.Spec() with the configured time zone attached, so adapters
// ask for the market's calendar days rather than the host's.
func (c *Config) SourceSpec(s SourceConfig) (source.Spec, error) {
	spec, err := s.Spec()
	if err != nil {
		return source.Spec{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return source.Spec{}, err
	}
	spec.TimeZone = loc
	return spec, nil
}

// SurchargeFor returns the global surcharge overlaid with the source's own.
func (c *Config) SurchargeFor(s SourceConfig) pricing.Surcharge {
	return MergeSurcharge(c.Surcharge, s.Surcharge)
}

type sourcesFileWrapper struct {
	Sources []SourceConfig `yaml:"sources"`
}

func loadSourcesFile(path string) ([]SourceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w sourcesFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Sources, nil
}

// MergeSources appends override entries to base, replacing base entries with
// the same id in place.
func MergeSources(base, override []SourceConfig) []SourceConfig {
	out := append([]SourceConfig(nil), base...)
	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.ID] = i
	}
	for _, s := range override {
		if i, ok := index[s.ID]; ok {
			out[i] = s
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

// MergeSurcharge overlays non-zero fields from override onto base.
func MergeSurcharge(base, override pricing.Surcharge) pricing.Surcharge {
	out := base
	if override.Percent != 0 {
		out.Percent = override.Percent
	}
	if override.Absolute != 0 {
		out.Absolute = override.Absolute
	}
	if override.Tax != 0 {
		out.Tax = override.Tax
	}
	return out
}
