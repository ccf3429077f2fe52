package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"spotprice/internal/model"
	"spotprice/internal/pricing"
)

// LoadRawJSON reads a price file. Two shapes are accepted: a plain array of
// RawPrice, or a Grid Status LMP response (as saved by the cli fetch command).
func LoadRawJSON(path string) ([]model.RawPrice, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var prices []model.RawPrice
	if err := json.Unmarshal(raw, &prices); err == nil {
		return tidy(prices), nil
	}
	var resp GridStatusLMPResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return lmpToRaw(resp.Data), nil
}

func SaveRawJSON(path string, prices []model.RawPrice) error {
	raw, err := json.MarshalIndent(prices, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// File serves prices from a local JSON file, re-read on every fetch.
type File struct {
	info Info
	path string
}

func NewFile(spec Spec, _ *Client) (Source, error) {
	if spec.Path == "" {
		return nil, errors.New("file: path is required")
	}
	if spec.MarketArea == "" {
		spec.MarketArea = "local"
	}
	return &File{
		info: spec.info("Local file", 60, model.ModeCompress, pricing.FormulaStandard),
		path: spec.Path,
	}, nil
}

func (f *File) Info() Info { return f.info }

func (f *File) Fetch(ctx context.Context) ([]model.RawPrice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadRawJSON(f.path)
}
