package model

import (
	"fmt"
	"strings"
)

// Keep these values stable; they appear in config files, query strings and CSV output.

// NormalizeMode selects how fine-grained segments become the target resolution.
type NormalizeMode string

const (
	ModeCompress NormalizeMode = "compress"
	ModeAverage  NormalizeMode = "average"
)

func ParseNormalizeMode(s string) (NormalizeMode, error) {
	switch NormalizeMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCompress:
		return ModeCompress, nil
	case ModeAverage:
		return ModeAverage, nil
	default:
		return "", fmt.Errorf("invalid normalize mode %q, expected compress or average", s)
	}
}

// PriceMode selects whether a search prefers low or high prices.
type PriceMode string

const (
	PriceCheapest      PriceMode = "cheapest"
	PriceMostExpensive PriceMode = "most_expensive"
)

func ParsePriceMode(s string) (PriceMode, error) {
	switch PriceMode(strings.ToLower(strings.TrimSpace(s))) {
	case PriceCheapest, "lowest", "":
		return PriceCheapest, nil
	case PriceMostExpensive, "highest":
		return PriceMostExpensive, nil
	default:
		return "", fmt.Errorf("invalid price mode %q, expected cheapest or most_expensive", s)
	}
}

func (m PriceMode) PreferHigh() bool {
	return m == PriceMostExpensive
}

// IntervalMode selects a single contiguous interval or a set of disjoint slices.
type IntervalMode string

const (
	IntervalContiguous   IntervalMode = "contiguous"
	IntervalIntermittent IntervalMode = "intermittent"
)

func ParseIntervalMode(s string) (IntervalMode, error) {
	switch IntervalMode(strings.ToLower(strings.TrimSpace(s))) {
	case IntervalContiguous, "":
		return IntervalContiguous, nil
	case IntervalIntermittent:
		return IntervalIntermittent, nil
	default:
		return "", fmt.Errorf("invalid interval mode %q, expected contiguous or intermittent", s)
	}
}
