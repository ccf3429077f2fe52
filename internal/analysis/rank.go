package analysis

import (
	"sort"
)

type RankedSource struct {
	DayStats
	Position int `json:"position"`
}

// RankByMean orders sources by today's mean price, cheapest first.
// Sources without data for today sort last.
func RankByMean(bySource map[string]DayStats) []RankedSource {
	out := make([]RankedSource, 0, len(bySource))
	for name, st := range bySource {
		st.Source = name
		out = append(out, RankedSource{DayStats: st})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Count == 0) != (b.Count == 0) {
			return b.Count == 0
		}
		if a.Mean != b.Mean {
			return a.Mean < b.Mean
		}
		return a.Source < b.Source
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}
