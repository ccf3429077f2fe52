package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadMergesSourcesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sources.yaml", `
sources:
  - id: awattar-de
    provider: awattar
    market_area: de
    duration_minutes: 60
  - id: energycharts-de
    provider: energycharts
    market_area: DE-LU
    duration_minutes: 15
`)
	path := writeFile(t, dir, "config.yaml", `
timezone: Europe/Vienna
refresh:
  interval: 30m
sources_file: sources.yaml
sources:
  - id: awattar-de
    provider: awattar
    market_area: at
    duration_minutes: 60
    mode: average
    surcharge:
      absolute: 0.15
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Vienna", c.Timezone)
	assert.Equal(t, 30*time.Minute, c.Refresh.Interval)
	assert.Equal(t, 9*time.Minute, c.Refresh.Jitter)

	require.Len(t, c.Sources, 2)
	assert.Equal(t, "at", c.Sources[0].MarketArea)
	assert.Equal(t, "energycharts-de", c.Sources[1].ID)

	spec, err := c.Sources[0].Spec()
	require.NoError(t, err)
	assert.Equal(t, model.ModeAverage, spec.Mode)

	spec, err = c.SourceSpec(c.Sources[0])
	require.NoError(t, err)
	require.NotNil(t, spec.TimeZone)
	assert.Equal(t, "Europe/Vienna", spec.TimeZone.String())

	s := c.SurchargeFor(c.Sources[0])
	assert.Equal(t, 0.15, s.Absolute)
	assert.Equal(t, pricing.DefaultSurcharge().Percent, s.Percent)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
sources:
  - id: tibber-home
    provider: tibber
    token_env: TEST_TIBBER_TOKEN
`)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TEST_TIBBER_TOKEN", "secret")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "debug", c.Logging.Level)

	spec, err := c.Sources[0].Spec()
	require.NoError(t, err)
	assert.Equal(t, "secret", spec.Token)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "TEST_SPOTPRICE_DOTENV=from-file\n")
	t.Setenv("TEST_SPOTPRICE_DOTENV", "")
	os.Unsetenv("TEST_SPOTPRICE_DOTENV")

	require.NoError(t, LoadEnv(p, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("TEST_SPOTPRICE_DOTENV"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Sources = []SourceConfig{{ID: "a", Provider: "awattar", MarketArea: "de"}}
		return &c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no sources":       func(c *Config) { c.Sources = nil },
		"missing id":       func(c *Config) { c.Sources[0].ID = "" },
		"duplicate id":     func(c *Config) { c.Sources = append(c.Sources, c.Sources[0]) },
		"unknown provider": func(c *Config) { c.Sources[0].Provider = "nordpool" },
		"bad mode":         func(c *Config) { c.Sources[0].Mode = "sample" },
		"bad formula":      func(c *Config) { c.Sources[0].Formula = "flat" },
		"bad timezone":     func(c *Config) { c.Timezone = "Mars/Olympus" },
		"zero interval":    func(c *Config) { c.Refresh.Interval = 0 },
		"cache without ttl": func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = 0
		},
		"negative tax": func(c *Config) { c.Surcharge.Tax = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestMergeSources(t *testing.T) {
	out := MergeSources(
		[]SourceConfig{{ID: "a", MarketArea: "de"}, {ID: "b"}},
		[]SourceConfig{{ID: "a", MarketArea: "at"}, {ID: "c"}},
	)
	require.Len(t, out, 3)
	assert.Equal(t, "at", out[0].MarketArea)
	assert.Equal(t, "c", out[2].ID)
}

func TestLocationDefaultsToUTC(t *testing.T) {
	c := Config{}
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
