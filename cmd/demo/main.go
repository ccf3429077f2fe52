package main

import (
	"flag"
	"fmt"
	"math"
	"time"

	"spotprice/internal/analysis"
	"spotprice/internal/curve"
	"spotprice/internal/model"
	"spotprice/internal/pricing"
	"spotprice/internal/schedule"
	"spotprice/internal/search"
	"spotprice/internal/source"
)

// Demo:
// - Load quarter-hour prices from a JSON file, or synthesize two days of them
// - Normalize them to hourly both ways
// - Show the current price, today's stats and the best windows to run a load
func main() {
	dataPath := flag.String("data", "", "Optional JSON price file (cli fetch output)")
	tz := flag.String("tz", "Europe/Berlin", "Local timezone")
	at := flag.String("at", "", "RFC3339 time to use as now (default: 13:20 local on the first day)")
	outCSV := flag.String("out", "", "Optional path to write the plan CSV")
	flag.Parse()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		panic(err)
	}

	var raw []model.RawPrice
	if *dataPath != "" {
		raw, err = source.LoadRawJSON(*dataPath)
		if err != nil {
			panic(err)
		}
	} else {
		raw = synthetic(time.Date(2024, 3, 14, 0, 0, 0, 0, loc))
	}
	if len(raw) == 0 {
		panic("no prices")
	}

	now := raw[0].Start.In(loc).Add(13*time.Hour + 20*time.Minute)
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			panic(err)
		}
	}

	fine, err := curve.FromRaw(raw)
	if err != nil {
		panic(err)
	}
	hourly, err := curve.Normalize(raw, 60, model.ModeAverage)
	if err != nil {
		panic(err)
	}
	compressed, err := curve.Normalize(raw, 60, model.ModeCompress)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Loaded %d prices at %s resolution (%s .. %s)\n", len(fine), curve.Resolution(fine),
		fine.Start().In(loc).Format("2006-01-02 15:04"), fine.End().In(loc).Format("2006-01-02 15:04"))
	fmt.Printf("Averaged to %d hourly segments, compressed to %d segments\n", len(hourly), len(compressed))
	fmt.Printf("Now: %s\n\n", now.In(loc).Format("2006-01-02 15:04 MST"))

	surcharge := pricing.DefaultSurcharge()
	cur, err := curve.CurrentSegment(hourly, now)
	if err != nil {
		fmt.Printf("current price: unavailable (%v)\n", err)
	} else {
		fmt.Printf("current price: %.5f EUR/kWh (net %.5f)\n", cur.Price, surcharge.Net(cur.Price, pricing.FormulaStandard))
	}

	sorted := curve.TodaySorted(hourly, now, loc)
	var current *model.Segment
	if err == nil {
		current = &cur
	}
	st := analysis.ComputeDayStats(sorted, current)
	fmt.Printf("today: min %.5f at %s, max %.5f at %s, mean %.5f, rank %d/%d, quantile %.2f\n\n",
		st.Min.Price, st.Min.Start.In(loc).Format("15:04"),
		st.Max.Price, st.Max.Start.In(loc).Format("15:04"),
		st.Mean, st.Rank, st.Count, st.Quantile)

	w, err := search.BuildSearchWindow(now, loc, search.WindowQuery{}, fine.End())
	if err != nil {
		panic(err)
	}
	for _, d := range []time.Duration{time.Hour, 3 * time.Hour, 90 * time.Minute} {
		lo, err := search.FindExtremeContiguous(fine, w, d, false)
		if err != nil {
			panic(err)
		}
		hi, err := search.FindExtremeContiguous(fine, w, d, true)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%-6s cheapest %s .. %s avg %.5f | most expensive %s .. %s avg %.5f\n", d,
			lo.Start.In(loc).Format("Mon 15:04"), lo.End.In(loc).Format("15:04"), lo.Price,
			hi.Start.In(loc).Format("Mon 15:04"), hi.End.In(loc).Format("15:04"), hi.Price)
	}

	slices, err := search.FindExtremeIntermittent(fine, w, 2*time.Hour, false)
	if err != nil {
		panic(err)
	}
	fmt.Printf("\ncheapest 2h in pieces (%d slices, cost %.5f):\n", len(slices), search.TotalCost(slices))
	for _, s := range slices {
		fmt.Printf("  #%d %s .. %s %.5f\n", s.Rank, s.Start.In(loc).Format("Mon 15:04"), s.End.In(loc).Format("15:04"), s.Price)
	}

	rule := schedule.Rule{
		ID:            "night_charge",
		Name:          "Overnight charge",
		EarliestStart: search.MustParseTimeOfDay("22:00"),
		LatestEnd:     search.MustParseTimeOfDay("06:00"),
		Duration:      3 * time.Hour,
		IntervalMode:  model.IntervalIntermittent,
		PriceMode:     model.PriceCheapest,
	}
	plan, err := schedule.Evaluate(rule, fine, now, loc)
	if err != nil {
		panic(err)
	}
	fmt.Printf("\nrule %s: in window %v, enabled %v\n", rule.Name, plan.InWindow, plan.Enabled)
	if plan.Current != nil {
		fmt.Printf("  tonight from %s, average %.5f\n", plan.Current.Start().In(loc).Format("Mon 15:04"), plan.Current.Price)
	}

	if *outCSV != "" {
		if err := schedule.WritePlanCSVFile(*outCSV, plan, loc); err != nil {
			panic(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}
}

// synthetic builds two days of 15-minute prices with a night trough, a solar
// dip at noon and an evening peak, in EUR/kWh.
func synthetic(day time.Time) []model.RawPrice {
	var out []model.RawPrice
	for t := day; t.Before(day.AddDate(0, 0, 2)); t = t.Add(15 * time.Minute) {
		h := float64(t.Hour()) + float64(t.Minute())/60
		p := 0.09 +
			0.05*math.Exp(-math.Pow(h-19, 2)/6) -
			0.04*math.Exp(-math.Pow(h-13, 2)/4) -
			0.02*math.Exp(-math.Pow(h-3, 2)/5)
		if t.YearDay() != day.YearDay() {
			p += 0.01
		}
		out = append(out, model.RawPrice{Start: t.UTC(), DurationMinutes: 15, Price: math.Round(p*1e5) / 1e5})
	}
	return out
}
