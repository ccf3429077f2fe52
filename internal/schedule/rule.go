package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"spotprice/internal/model"
	"spotprice/internal/search"

	"gopkg.in/yaml.v3"
)

var ErrUnknownRule = errors.New("unknown rule")

// Rule runs a load of Duration once per day at the best price between
// EarliestStart and LatestEnd (local time).
//
// A LatestEnd at or before EarliestStart wraps past midnight, so 22:00 to
// 06:00 is an overnight window.
type Rule struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	EarliestStart search.TimeOfDay   `json:"earliest_start"`
	LatestEnd     search.TimeOfDay   `json:"latest_end"`
	Duration      time.Duration      `json:"-"`
	IntervalMode  model.IntervalMode `json:"interval_mode"`
	PriceMode     model.PriceMode    `json:"price_mode"`
}

// ruleFile is the on-disk shape of a rule preset.
type ruleFile struct {
	Rule struct {
		Name          string        `yaml:"name"`
		Description   string        `yaml:"description"`
		EarliestStart string        `yaml:"earliest_start"`
		LatestEnd     string        `yaml:"latest_end"`
		Duration      time.Duration `yaml:"duration"`
		IntervalMode  string        `yaml:"interval_mode"`
		PriceMode     string        `yaml:"price_mode"`
	} `yaml:"rule"`
}

// wraps reports whether the window crosses midnight.
func (r Rule) wraps() bool {
	return r.LatestEnd.Minutes() <= r.EarliestStart.Minutes()
}

// WindowLength is the nominal length of the daily window, ignoring DST.
func (r Rule) WindowLength() time.Duration {
	mins := r.LatestEnd.Minutes() - r.EarliestStart.Minutes()
	if r.wraps() {
		mins += 24 * 60
	}
	return time.Duration(mins) * time.Minute
}

func (r Rule) Validate() error {
	if r.Duration <= 0 {
		return fmt.Errorf("rule %q: duration must be > 0", r.ID)
	}
	if r.Duration > r.WindowLength() {
		return fmt.Errorf("rule %q: duration %s exceeds window %s-%s", r.ID, r.Duration, r.EarliestStart, r.LatestEnd)
	}
	if _, err := model.ParseIntervalMode(string(r.IntervalMode)); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	if _, err := model.ParsePriceMode(string(r.PriceMode)); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}

// ParseRule decodes a YAML rule preset. id names the rule when the file
// carries no name.
func ParseRule(id string, raw []byte) (Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Rule{}, fmt.Errorf("parse rule %q: %w", id, err)
	}
	es, err := search.ParseTimeOfDay(f.Rule.EarliestStart)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q earliest_start: %w", id, err)
	}
	le, err := search.ParseTimeOfDay(f.Rule.LatestEnd)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q latest_end: %w", id, err)
	}
	im, err := model.ParseIntervalMode(f.Rule.IntervalMode)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", id, err)
	}
	pm, err := model.ParsePriceMode(f.Rule.PriceMode)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", id, err)
	}

	r := Rule{
		ID:            id,
		Name:          f.Rule.Name,
		Description:   f.Rule.Description,
		EarliestStart: es,
		LatestEnd:     le,
		Duration:      f.Rule.Duration,
		IntervalMode:  im,
		PriceMode:     pm,
	}
	if r.Name == "" {
		r.Name = id
	}
	return r, r.Validate()
}

// LoadRule reads one preset; the id is the file name without extension.
func LoadRule(path string) (Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rule{}, err
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseRule(id, raw)
}

// LoadRules reads every *.yaml preset in dir, ordered by id. Files that fail
// to parse are logged and skipped. A missing directory yields no rules.
func LoadRules(dir string, logger *slog.Logger) ([]Rule, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("rules directory not found", "dir", dir)
			return nil, nil
		}
		return nil, err
	}

	var rules []Rule
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		r, err := LoadRule(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping rule preset", "file", name, "error", err)
			continue
		}
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// Find returns the rule with the given id.
func Find(rules []Rule, id string) (Rule, error) {
	for _, r := range rules {
		if r.ID == id {
			return r, nil
		}
	}
	return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRule, id)
}
