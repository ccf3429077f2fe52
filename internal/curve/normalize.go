// Package curve turns provider price records into a queryable price curve
// and answers "now" and "today" questions about it.
package curve

import (
	"errors"
	"fmt"
	"time"

	"spotprice/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrMalformedInput     = errors.New("malformed price input")
	ErrResolutionMismatch = errors.New("target duration is not an integer multiple of source resolution")
)

// AveragePrecision is the number of decimal places averaged prices are rounded to,
// so equal-price merging downstream is stable.
const AveragePrecision = 5

// FromRaw builds a curve from adapter output. Input must already be sorted;
// overlapping or non-positive records are rejected rather than repaired.
func FromRaw(raw []model.RawPrice) (model.Curve, error) {
	out := make(model.Curve, 0, len(raw))
	for i, r := range raw {
		if r.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: record %d has duration %d min", ErrMalformedInput, i, r.DurationMinutes)
		}
		if r.Start.IsZero() {
			return nil, fmt.Errorf("%w: record %d has no start time", ErrMalformedInput, i)
		}
		out = append(out, model.Segment{
			Start: r.Start.UTC(),
			End:   r.End().UTC(),
			Price: r.Price,
		})
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return out, nil
}

// Normalize converts raw records into a curve at targetMinutes resolution.
// Sources already at the target resolution pass through unchanged.
func Normalize(raw []model.RawPrice, targetMinutes int, mode model.NormalizeMode) (model.Curve, error) {
	if targetMinutes <= 0 {
		return nil, fmt.Errorf("%w: target duration %d min", ErrMalformedInput, targetMinutes)
	}
	segs, err := FromRaw(raw)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return segs, nil
	}

	target := time.Duration(targetMinutes) * time.Minute
	base := Resolution(segs)

	switch mode {
	case model.ModeCompress:
		if base >= target {
			return segs, nil
		}
		return Compress(segs, target), nil
	case model.ModeAverage:
		if base == target {
			return segs, nil
		}
		return Average(segs, target)
	default:
		return nil, fmt.Errorf("%w: unknown normalize mode %q", ErrMalformedInput, mode)
	}
}

// Resolution returns the most common segment duration (ties go to the shorter one).
func Resolution(segs model.Curve) time.Duration {
	counts := map[time.Duration]int{}
	var best time.Duration
	for _, s := range segs {
		d := s.Duration()
		counts[d]++
		if counts[d] > counts[best] || (counts[d] == counts[best] && d < best) {
			best = d
		}
	}
	return best
}

// Compress merges runs of equal, contiguous prices. A merged segment never
// spans more than target measured from its first member's start, so the
// output stays aligned to target-sized buckets even when prices keep matching.
func Compress(segs model.Curve, target time.Duration) model.Curve {
	out := make(model.Curve, 0, len(segs))
	if len(segs) == 0 {
		return out
	}

	acc := segs[0]
	for _, next := range segs[1:] {
		samePrice := acc.Price == next.Price
		contiguous := acc.End.Equal(next.Start)
		withinBucket := !next.End.After(acc.Start.Add(target))

		if samePrice && contiguous && withinBucket {
			acc = model.Segment{Start: acc.Start, End: next.End, Price: acc.Price}
			continue
		}
		out = append(out, acc)
		acc = next
	}
	return append(out, acc)
}

// Average aggregates uniform fine-grained segments into target-sized blocks
// on a grid anchored at the first segment's start. A complete bucket becomes
// one segment priced at the arithmetic mean of its members; so does the last
// bucket when it is short, and it still spans the full target. A bucket with
// a hole keeps the hole: each contiguous run inside it is averaged on its own.
func Average(segs model.Curve, target time.Duration) (model.Curve, error) {
	if len(segs) == 0 {
		return model.Curve{}, nil
	}
	d := segs[0].Duration()
	for i, s := range segs {
		if s.Duration() != d {
			return nil, fmt.Errorf("%w: segment %d is %s, expected uniform %s", ErrMalformedInput, i, s.Duration(), d)
		}
	}
	if target < d || target%d != 0 {
		return nil, fmt.Errorf("%w: source %s, target %s", ErrResolutionMismatch, d, target)
	}
	groupSize := int(target / d)

	origin := segs[0].Start
	bucket := func(s model.Segment) int64 { return int64(s.Start.Sub(origin) / target) }

	out := make(model.Curve, 0, (len(segs)+groupSize-1)/groupSize)
	for i := 0; i < len(segs); {
		b := bucket(segs[i])
		j := i + 1
		for j < len(segs) && bucket(segs[j]) == b {
			j++
		}
		group := segs[i:j]
		bucketStart := origin.Add(time.Duration(b) * target)
		whole := group[0].Start.Equal(bucketStart) && contiguous(group) &&
			(len(group) == groupSize || j == len(segs))

		if whole {
			out = append(out, model.Segment{Start: bucketStart, End: bucketStart.Add(target), Price: mean(group)})
		} else {
			for _, run := range runs(group) {
				out = append(out, model.Segment{Start: run[0].Start, End: run[len(run)-1].End, Price: mean(run)})
			}
		}
		i = j
	}
	return out, nil
}

func contiguous(segs model.Curve) bool {
	for i := 1; i < len(segs); i++ {
		if !segs[i-1].End.Equal(segs[i].Start) {
			return false
		}
	}
	return true
}

// runs splits segs at every gap.
func runs(segs model.Curve) []model.Curve {
	var out []model.Curve
	from := 0
	for i := 1; i <= len(segs); i++ {
		if i == len(segs) || !segs[i-1].End.Equal(segs[i].Start) {
			out = append(out, segs[from:i])
			from = i
		}
	}
	return out
}

func mean(segs model.Curve) float64 {
	sum := decimal.Zero
	for _, s := range segs {
		sum = sum.Add(decimal.NewFromFloat(s.Price))
	}
	return sum.Div(decimal.NewFromInt(int64(len(segs)))).Round(AveragePrecision).InexactFloat64()
}
