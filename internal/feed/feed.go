// Package feed keeps the latest normalized curve of each configured source
// and refreshes it in the background.
//
// A snapshot is replaced wholesale after a successful fetch and never
// mutated, so readers always see a complete curve. A failed fetch keeps the
// previous snapshot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"spotprice/internal/curve"
	"spotprice/internal/model"
	"spotprice/internal/source"
)

var ErrEmptyFetch = errors.New("provider returned no prices")

// Snapshot is one immutable generation of a source's curve.
type Snapshot struct {
	Curve     model.Curve
	FetchedAt time.Time
}

type Options struct {
	Interval  time.Duration
	Jitter    time.Duration
	Timeout   time.Duration
	MaxErrors int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Hour
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxErrors <= 0 {
		o.MaxErrors = 3
	}
	return o
}

// Status is a point-in-time view of a feed's health.
type Status struct {
	ID                string    `json:"id"`
	FetchedAt         time.Time `json:"fetched_at,omitempty"`
	Segments          int       `json:"segments"`
	DataEnd           time.Time `json:"data_end,omitempty"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
}

type Feed struct {
	src    source.Source
	info   source.Info
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	snap    atomic.Pointer[Snapshot]
	fetchMu sync.Mutex

	errMu   sync.Mutex
	errs    int
	lastErr error
}

func New(src source.Source, opts Options, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	info := src.Info()
	return &Feed{
		src:    src,
		info:   info,
		opts:   opts.withDefaults(),
		logger: logger.With(slog.String("component", "feed"), slog.String("source_id", info.ID)),
		now:    time.Now,
	}
}

func (f *Feed) Info() source.Info { return f.info }

// Snapshot returns the current generation, or nil before the first success.
func (f *Feed) Snapshot() *Snapshot {
	return f.snap.Load()
}

// Curve returns the current curve (nil before the first success).
func (f *Feed) Curve() model.Curve {
	if s := f.snap.Load(); s != nil {
		return s.Curve
	}
	return nil
}

// Fetch pulls fresh prices and swaps in the normalized curve. On any error
// the previous snapshot stays in place.
func (f *Feed) Fetch(ctx context.Context) error {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	start := f.now()
	c, err := f.load(ctx)
	if err != nil {
		f.recordError(err)
		return err
	}

	f.snap.Store(&Snapshot{Curve: c, FetchedAt: f.now()})
	f.recordError(nil)
	f.logger.Info("curve updated",
		"segments", len(c),
		"data_start", c.Start().Format(time.RFC3339),
		"data_end", c.End().Format(time.RFC3339),
		"duration", f.now().Sub(start))
	return nil
}

func (f *Feed) load(ctx context.Context) (model.Curve, error) {
	raw, err := f.src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.info.ID, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", f.info.ID, ErrEmptyFetch)
	}
	c, err := curve.Normalize(raw, f.info.DurationMinutes, f.info.Mode)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", f.info.ID, err)
	}
	return c, nil
}

// recordError tracks consecutive failures; from MaxErrors on they are logged
// as errors instead of warnings. nil resets the counter.
func (f *Feed) recordError(err error) {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	if err == nil {
		f.errs = 0
		f.lastErr = nil
		return
	}
	f.errs++
	f.lastErr = err
	if f.errs >= f.opts.MaxErrors {
		f.logger.Error("fetch failing repeatedly, serving last known curve", "consecutive_errors", f.errs, "error", err)
		return
	}
	f.logger.Warn("fetch failed, serving last known curve", "consecutive_errors", f.errs, "error", err)
}

func (f *Feed) Status() Status {
	st := Status{ID: f.info.ID}
	if s := f.snap.Load(); s != nil {
		st.FetchedAt = s.FetchedAt
		st.Segments = len(s.Curve)
		st.DataEnd = s.Curve.End()
	}
	f.errMu.Lock()
	st.ConsecutiveErrors = f.errs
	if f.lastErr != nil {
		st.LastError = f.lastErr.Error()
	}
	f.errMu.Unlock()
	return st
}

// Run fetches immediately and then every Interval plus a random share of
// Jitter, so many instances do not hit a provider at the same second.
func (f *Feed) Run(ctx context.Context) {
	rng := rand.New(rand.NewSource(f.now().UnixNano()))
	for {
		_ = f.Fetch(ctx)

		wait := f.opts.Interval
		if f.opts.Jitter > 0 {
			wait += time.Duration(rng.Int63n(int64(f.opts.Jitter)))
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
