package curve

import (
	"math"
	"math/rand"
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

func raws(start time.Time, minutes int, prices ...float64) []model.RawPrice {
	out := make([]model.RawPrice, 0, len(prices))
	for i, p := range prices {
		out = append(out, model.RawPrice{
			Start:           start.Add(time.Duration(i*minutes) * time.Minute),
			DurationMinutes: minutes,
			Price:           p,
		})
	}
	return out
}

func segs(start time.Time, minutes int, prices ...float64) model.Curve {
	c, err := FromRaw(raws(start, minutes, prices...))
	if err != nil {
		panic(err)
	}
	return c
}

func TestFromRaw(t *testing.T) {
	t.Run("builds half-open segments in UTC", func(t *testing.T) {
		loc := time.FixedZone("CET", 3600)
		c, err := FromRaw([]model.RawPrice{{Start: time.Date(2024, 3, 14, 1, 0, 0, 0, loc), DurationMinutes: 15, Price: 0.1}})
		require.NoError(t, err)
		require.Len(t, c, 1)
		assert.Equal(t, time.UTC, c[0].Start.Location())
		assert.True(t, c[0].Start.Equal(at(0, 0)))
		assert.True(t, c[0].End.Equal(at(0, 15)))
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		_, err := FromRaw([]model.RawPrice{{Start: at(0, 0), DurationMinutes: 0, Price: 1}})
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("rejects overlap", func(t *testing.T) {
		_, err := FromRaw([]model.RawPrice{
			{Start: at(0, 0), DurationMinutes: 60, Price: 1},
			{Start: at(0, 30), DurationMinutes: 60, Price: 2},
		})
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("keeps gaps", func(t *testing.T) {
		c, err := FromRaw([]model.RawPrice{
			{Start: at(0, 0), DurationMinutes: 60, Price: 1},
			{Start: at(2, 0), DurationMinutes: 60, Price: 2},
		})
		require.NoError(t, err)
		assert.Len(t, c, 2)
	})
}

func TestCompress(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Compress(nil, time.Hour))
	})

	t.Run("single segment", func(t *testing.T) {
		out := Compress(segs(at(0, 0), 15, 5), time.Hour)
		require.Len(t, out, 1)
		assert.Equal(t, 5.0, out[0].Price)
	})

	t.Run("merges equal quarter hours within one bucket", func(t *testing.T) {
		out := Compress(segs(at(0, 0), 15, 10, 10, 10, 10, 10, 10, 20, 20), time.Hour)
		require.Len(t, out, 3)
		assert.Equal(t, model.Segment{Start: at(0, 0), End: at(1, 0), Price: 10}, out[0])
		assert.Equal(t, model.Segment{Start: at(1, 0), End: at(1, 30), Price: 10}, out[1])
		assert.Equal(t, model.Segment{Start: at(1, 30), End: at(2, 0), Price: 20}, out[2])
	})

	t.Run("never merges across a gap", func(t *testing.T) {
		in := model.Curve{
			{Start: at(0, 0), End: at(0, 15), Price: 1},
			{Start: at(0, 30), End: at(0, 45), Price: 1},
		}
		assert.Equal(t, in, Compress(in, time.Hour))
	})

	t.Run("does not touch input", func(t *testing.T) {
		in := segs(at(0, 0), 15, 1, 1, 1, 1)
		before := in.Clone()
		_ = Compress(in, time.Hour)
		assert.Equal(t, before, in)
	})

	t.Run("hourly input at hourly target stays hourly", func(t *testing.T) {
		in := segs(at(0, 0), 60, 10, 10, 30)
		assert.Equal(t, in, Compress(in, time.Hour))
	})

	t.Run("hourly input at two hour target", func(t *testing.T) {
		out := Compress(segs(at(0, 0), 60, 10, 10, 30), 2*time.Hour)
		require.Len(t, out, 2)
		assert.Equal(t, model.Segment{Start: at(0, 0), End: at(2, 0), Price: 10}, out[0])
		assert.Equal(t, model.Segment{Start: at(2, 0), End: at(3, 0), Price: 30}, out[1])
	})
}

func TestCompressIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		prices := make([]float64, 96)
		for i := range prices {
			prices[i] = float64(rng.Intn(3))
		}
		once := Compress(segs(at(0, 0), 15, prices...), time.Hour)
		twice := Compress(once, time.Hour)
		assert.Equal(t, once, twice)
	}
}

func TestAverage(t *testing.T) {
	t.Run("quarter hours to hours", func(t *testing.T) {
		out, err := Average(segs(at(0, 0), 15, 1, 2, 3, 4, 10, 10, 10, 10), time.Hour)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, model.Segment{Start: at(0, 0), End: at(1, 0), Price: 2.5}, out[0])
		assert.Equal(t, model.Segment{Start: at(1, 0), End: at(2, 0), Price: 10}, out[1])
	})

	t.Run("short trailing group", func(t *testing.T) {
		out, err := Average(segs(at(0, 0), 15, 4, 4, 4, 4, 1, 2), time.Hour)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 1.5, out[1].Price)
		assert.True(t, out[1].End.Equal(at(2, 0)))
	})

	t.Run("gap stays a gap", func(t *testing.T) {
		in := segs(at(0, 0), 15, 1, 1, 1, 1, 9, 9, 9, 9)
		in = append(in[:2:2], in[3:]...)

		out, err := Average(in, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, model.Curve{
			{Start: at(0, 0), End: at(0, 30), Price: 1},
			{Start: at(0, 45), End: at(1, 0), Price: 1},
			{Start: at(1, 0), End: at(2, 0), Price: 9},
		}, out)
		assert.NoError(t, out.Validate())
	})

	t.Run("missing bucket keeps later buckets on the grid", func(t *testing.T) {
		in := segs(at(0, 0), 15, 2, 2, 2, 2, 0, 0, 0, 0, 6, 6, 6, 6)
		in = append(in[:4:4], in[8:]...)

		out, err := Average(in, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, model.Curve{
			{Start: at(0, 0), End: at(1, 0), Price: 2},
			{Start: at(2, 0), End: at(3, 0), Price: 6},
		}, out)
	})

	t.Run("rounds to fixed precision", func(t *testing.T) {
		out, err := Average(segs(at(0, 0), 20, 0.1, 0.2, 0.2), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 0.16667, out[0].Price)
	})

	t.Run("rejects non multiple", func(t *testing.T) {
		_, err := Average(segs(at(0, 0), 15, 1, 2, 3), 50*time.Minute)
		assert.ErrorIs(t, err, ErrResolutionMismatch)
	})

	t.Run("rejects coarser source", func(t *testing.T) {
		_, err := Average(segs(at(0, 0), 60, 1, 2), 15*time.Minute)
		assert.ErrorIs(t, err, ErrResolutionMismatch)
	})

	t.Run("rejects mixed resolution", func(t *testing.T) {
		in := model.Curve{
			{Start: at(0, 0), End: at(0, 15), Price: 1},
			{Start: at(0, 15), End: at(1, 0), Price: 1},
		}
		_, err := Average(in, time.Hour)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestAverageConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 1; n <= 40; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = math.Round(rng.Float64()*40000-5000) / 100000
		}
		out, err := Average(segs(at(0, 0), 15, prices...), time.Hour)
		require.NoError(t, err)
		require.Len(t, out, (n+3)/4)

		for g, s := range out {
			lo, hi := g*4, g*4+4
			if hi > n {
				hi = n
			}
			sum := 0.0
			for _, p := range prices[lo:hi] {
				sum += p
			}
			assert.InDelta(t, sum, s.Price*float64(hi-lo), 1e-4)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Run("compress mode", func(t *testing.T) {
		c, err := Normalize(raws(at(0, 0), 15, 1, 1, 1, 1, 2, 2, 2, 2), 60, model.ModeCompress)
		require.NoError(t, err)
		assert.Len(t, c, 2)
	})

	t.Run("average mode", func(t *testing.T) {
		c, err := Normalize(raws(at(0, 0), 15, 1, 2, 3, 4), 60, model.ModeAverage)
		require.NoError(t, err)
		require.Len(t, c, 1)
		assert.Equal(t, 2.5, c[0].Price)
	})

	t.Run("same resolution passes through", func(t *testing.T) {
		c, err := Normalize(raws(at(0, 0), 60, 1, 2), 60, model.ModeAverage)
		require.NoError(t, err)
		assert.Len(t, c, 2)
	})

	t.Run("compress leaves coarser source alone", func(t *testing.T) {
		c, err := Normalize(raws(at(0, 0), 60, 1, 1), 15, model.ModeCompress)
		require.NoError(t, err)
		assert.Len(t, c, 2)
	})

	t.Run("empty", func(t *testing.T) {
		c, err := Normalize(nil, 60, model.ModeAverage)
		require.NoError(t, err)
		assert.Empty(t, c)
	})

	t.Run("bad target", func(t *testing.T) {
		_, err := Normalize(raws(at(0, 0), 15, 1), 0, model.ModeAverage)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}

func TestResolution(t *testing.T) {
	c := model.Curve{
		{Start: at(0, 0), End: at(0, 15)},
		{Start: at(0, 15), End: at(0, 30)},
		{Start: at(0, 30), End: at(1, 30)},
	}
	assert.Equal(t, 15*time.Minute, Resolution(c))
}
