// Package search finds the cheapest or most expensive time to run a load of a
// given duration inside a window of a price curve.
//
// Every function here is pure: it reads a curve snapshot and returns a result.
// Expected data-availability failures satisfy errors.Is(err, ErrNoResult);
// caller mistakes (bad window, bad duration) do not.
package search

import (
	"errors"
	"fmt"

	"spotprice/internal/model"
)

var ErrNoResult = errors.New("no result")

var (
	ErrCoverageGap          = fmt.Errorf("%w: price curve has a gap inside the interval", ErrNoResult)
	ErrInsufficientDuration = fmt.Errorf("%w: not enough priced time inside the window", ErrNoResult)
	ErrNoCandidates         = fmt.Errorf("%w: duration does not fit inside the window", ErrNoResult)
	ErrInsufficientCoverage = fmt.Errorf("%w: window extends beyond the last known price", ErrNoResult)
)

var (
	ErrInvalidWindow   = model.ErrInvalidWindow
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrNoData          = errors.New("no data yet")
)
