package search

import (
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"spotprice/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func hourly(prices ...float64) model.Curve {
	c := make(model.Curve, 0, len(prices))
	for i, p := range prices {
		c = append(c, model.Segment{Start: at(i, 0), End: at(i+1, 0), Price: p})
	}
	return c
}

func window(from, to time.Time) model.Window {
	return model.Window{EarliestStart: from, LatestEnd: to}
}

// randomCurve builds a gap-free curve of mixed 15/30/60 minute segments.
func randomCurve(rng *rand.Rand, n int) model.Curve {
	steps := []int{15, 30, 60}
	c := make(model.Curve, 0, n)
	cursor := day
	for i := 0; i < n; i++ {
		end := cursor.Add(time.Duration(steps[rng.Intn(len(steps))]) * time.Minute)
		price := math.Round((rng.Float64()*0.6-0.1)*1000) / 1000
		c = append(c, model.Segment{Start: cursor, End: end, Price: price})
		cursor = end
	}
	return c
}

// priceAt returns the price covering t; the curve is gap-free in these tests.
func priceAt(c model.Curve, t time.Time) float64 {
	for _, s := range c {
		if s.Contains(t) {
			return s.Price
		}
	}
	panic("uncovered instant " + t.String())
}

func bruteForceContiguous(c model.Curve, w model.Window, d time.Duration, preferHigh bool) float64 {
	best := math.NaN()
	for s := w.EarliestStart; !s.Add(d).After(w.LatestEnd); s = s.Add(time.Minute) {
		cost := 0.0
		for m := s; m.Before(s.Add(d)); m = m.Add(time.Minute) {
			cost += priceAt(c, m) / 60
		}
		if math.IsNaN(best) || (preferHigh && cost > best) || (!preferHigh && cost < best) {
			best = cost
		}
	}
	return best
}

func TestFindExtremeContiguous(t *testing.T) {
	t.Run("tie picks earliest start", func(t *testing.T) {
		iv, err := FindExtremeContiguous(hourly(10, 10, 30), window(at(0, 0), at(3, 0)), time.Hour, false)
		require.NoError(t, err)
		assert.Equal(t, at(0, 0), iv.Start)
		assert.Equal(t, at(1, 0), iv.End)
		assert.InDelta(t, 10, iv.Price, 1e-9)
		assert.InDelta(t, 10, iv.Cost, 1e-9)
	})

	t.Run("most expensive", func(t *testing.T) {
		iv, err := FindExtremeContiguous(hourly(10, 10, 30), window(at(0, 0), at(3, 0)), time.Hour, true)
		require.NoError(t, err)
		assert.Equal(t, at(2, 0), iv.Start)
		assert.InDelta(t, 30, iv.Price, 1e-9)
	})

	t.Run("straddles boundary", func(t *testing.T) {
		iv, err := FindExtremeContiguous(hourly(50, 5, 1, 50), window(at(0, 0), at(4, 0)), 90*time.Minute, false)
		require.NoError(t, err)
		assert.Equal(t, at(1, 30), iv.Start)
		assert.Equal(t, at(3, 0), iv.End)
		assert.InDelta(t, 2.5+1, iv.Cost, 1e-9)
		assert.InDelta(t, 3.5/1.5, iv.Price, 1e-9)
	})

	t.Run("window not on a boundary", func(t *testing.T) {
		iv, err := FindExtremeContiguous(hourly(1, 9, 9), window(at(0, 20), at(3, 0)), time.Hour, false)
		require.NoError(t, err)
		assert.Equal(t, at(0, 20), iv.Start)
	})

	t.Run("duration longer than window", func(t *testing.T) {
		_, err := FindExtremeContiguous(hourly(1, 2, 3), window(at(0, 0), at(1, 0)), 2*time.Hour, false)
		assert.ErrorIs(t, err, ErrNoCandidates)
		assert.ErrorIs(t, err, ErrNoResult)
	})

	t.Run("window beyond data", func(t *testing.T) {
		_, err := FindExtremeContiguous(hourly(1, 2), window(at(0, 0), at(3, 0)), time.Hour, false)
		assert.ErrorIs(t, err, ErrInsufficientCoverage)
	})

	t.Run("empty curve", func(t *testing.T) {
		_, err := FindExtremeContiguous(nil, window(at(0, 0), at(3, 0)), time.Hour, false)
		assert.ErrorIs(t, err, ErrInsufficientCoverage)
	})

	t.Run("invalid window is not a no-result", func(t *testing.T) {
		_, err := FindExtremeContiguous(hourly(1, 2), window(at(2, 0), at(1, 0)), time.Hour, false)
		assert.ErrorIs(t, err, ErrInvalidWindow)
		assert.NotErrorIs(t, err, ErrNoResult)
	})

	t.Run("non-positive duration", func(t *testing.T) {
		_, err := FindExtremeContiguous(hourly(1, 2), window(at(0, 0), at(2, 0)), 0, false)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("gap fails the search", func(t *testing.T) {
		c := model.Curve{
			{Start: at(0, 0), End: at(1, 0), Price: 5},
			{Start: at(2, 0), End: at(4, 0), Price: 1},
		}
		_, err := FindExtremeContiguous(c, window(at(0, 0), at(4, 0)), time.Hour, false)
		assert.ErrorIs(t, err, ErrCoverageGap)
		assert.ErrorIs(t, err, ErrNoResult)
	})

	t.Run("gap outside window is ignored", func(t *testing.T) {
		c := model.Curve{
			{Start: at(0, 0), End: at(1, 0), Price: 5},
			{Start: at(2, 0), End: at(4, 0), Price: 1},
		}
		iv, err := FindExtremeContiguous(c, window(at(2, 0), at(4, 0)), time.Hour, false)
		require.NoError(t, err)
		assert.Equal(t, at(2, 0), iv.Start)
	})
}

func TestFindExtremeContiguousMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(20240314))
	durations := []time.Duration{15 * time.Minute, 45 * time.Minute, time.Hour, 100 * time.Minute, 3 * time.Hour}

	for n := 0; n < 60; n++ {
		c := randomCurve(rng, 8+rng.Intn(16))
		span := int(c.End().Sub(c.Start()).Minutes())
		from := c.Start().Add(time.Duration(rng.Intn(span/3)) * time.Minute)
		to := c.End().Add(-time.Duration(rng.Intn(span/3)) * time.Minute)
		w := window(from, to)
		d := durations[rng.Intn(len(durations))]
		if from.Add(d).After(to) {
			continue
		}

		for _, high := range []bool{false, true} {
			iv, err := FindExtremeContiguous(c, w, d, high)
			require.NoError(t, err)
			assert.InDelta(t, bruteForceContiguous(c, w, d, high), iv.Cost, 1e-9)
			assert.Equal(t, d, iv.Duration())
			assert.False(t, iv.Start.Before(w.EarliestStart))
			assert.False(t, iv.End.After(w.LatestEnd))
		}
	}
}

func TestFindExtremeIntermittent(t *testing.T) {
	t.Run("cheapest slices in rank order", func(t *testing.T) {
		ivs, err := FindExtremeIntermittent(hourly(10, 10, 30), window(at(0, 0), at(3, 0)), 90*time.Minute, false)
		require.NoError(t, err)
		require.Len(t, ivs, 2)
		assert.Equal(t, model.Interval{Start: at(0, 0), End: at(1, 0), Price: 10, Cost: 10, Rank: 0}, ivs[0])
		assert.Equal(t, model.Interval{Start: at(1, 0), End: at(1, 30), Price: 10, Cost: 5, Rank: 1}, ivs[1])
	})

	t.Run("most expensive", func(t *testing.T) {
		ivs, err := FindExtremeIntermittent(hourly(10, 40, 30), window(at(0, 0), at(3, 0)), 2*time.Hour, true)
		require.NoError(t, err)
		require.Len(t, ivs, 2)
		assert.Equal(t, at(1, 0), ivs[0].Start)
		assert.Equal(t, at(2, 0), ivs[1].Start)
	})

	t.Run("clips to window", func(t *testing.T) {
		ivs, err := FindExtremeIntermittent(hourly(1, 9, 9), window(at(0, 30), at(3, 0)), time.Hour, false)
		require.NoError(t, err)
		require.Len(t, ivs, 2)
		assert.Equal(t, at(0, 30), ivs[0].Start)
		assert.Equal(t, at(1, 0), ivs[0].End)
		assert.Equal(t, 30*time.Minute, ivs[1].Duration())
	})

	t.Run("not enough time in window", func(t *testing.T) {
		_, err := FindExtremeIntermittent(hourly(1, 2, 3), window(at(0, 0), at(2, 0)), 3*time.Hour, false)
		assert.ErrorIs(t, err, ErrInsufficientDuration)
		assert.ErrorIs(t, err, ErrNoResult)
	})

	t.Run("gaps reduce available time", func(t *testing.T) {
		c := model.Curve{
			{Start: at(0, 0), End: at(1, 0), Price: 5},
			{Start: at(2, 0), End: at(3, 0), Price: 1},
		}
		_, err := FindExtremeIntermittent(c, window(at(0, 0), at(3, 0)), 150*time.Minute, false)
		assert.ErrorIs(t, err, ErrInsufficientDuration)

		ivs, err := FindExtremeIntermittent(c, window(at(0, 0), at(3, 0)), 2*time.Hour, false)
		require.NoError(t, err)
		assert.Len(t, ivs, 2)
	})

	t.Run("window beyond data", func(t *testing.T) {
		_, err := FindExtremeIntermittent(hourly(1), window(at(0, 0), at(2, 0)), time.Hour, false)
		assert.ErrorIs(t, err, ErrInsufficientCoverage)
	})
}

func TestFindExtremeIntermittentExactAndOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for n := 0; n < 60; n++ {
		c := randomCurve(rng, 10+rng.Intn(20))
		w := window(c.Start().Add(10*time.Minute), c.End().Add(-5*time.Minute))
		avail := int(w.Duration().Minutes())
		d := time.Duration(1+rng.Intn(avail)) * time.Minute

		for _, high := range []bool{false, true} {
			ivs, err := FindExtremeIntermittent(c, w, d, high)
			require.NoError(t, err)

			var total time.Duration
			for i, iv := range ivs {
				total += iv.Duration()
				assert.Equal(t, i, iv.Rank)
			}
			assert.Equal(t, d, total)

			// Per-minute bound: the best d minutes of the window picked freely.
			minutes := make([]float64, 0, avail)
			for m := w.EarliestStart; m.Before(w.LatestEnd); m = m.Add(time.Minute) {
				minutes = append(minutes, priceAt(c, m))
			}
			sort.Float64s(minutes)
			if high {
				sort.Sort(sort.Reverse(sort.Float64Slice(minutes)))
			}
			bound := 0.0
			for _, p := range minutes[:int(d.Minutes())] {
				bound += p / 60
			}
			assert.InDelta(t, bound, TotalCost(ivs), 1e-9)
		}
	}
}

func TestScenario(t *testing.T) {
	compressed := model.Curve{
		{Start: at(0, 0), End: at(2, 0), Price: 10},
		{Start: at(2, 0), End: at(3, 0), Price: 30},
	}
	w := window(at(0, 0), at(3, 0))

	iv, err := FindExtremeContiguous(compressed, w, time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, at(0, 0), iv.Start)
	assert.InDelta(t, 10, iv.Price, 1e-9)

	ivs, err := FindExtremeIntermittent(compressed, w, 90*time.Minute, false)
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, model.Interval{Start: at(0, 0), End: at(1, 30), Price: 10, Cost: 15, Rank: 0}, ivs[0])
}

func TestInIntervals(t *testing.T) {
	ivs := []model.Interval{
		{Start: at(1, 0), End: at(2, 0)},
		{Start: at(4, 0), End: at(4, 15)},
	}
	assert.True(t, InIntervals(at(1, 0), ivs))
	assert.True(t, InIntervals(at(4, 10), ivs))
	assert.False(t, InIntervals(at(2, 0), ivs))
	assert.False(t, InIntervals(at(0, 0), nil))
}
