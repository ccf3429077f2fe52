package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spotprice/internal/analysis"
	"spotprice/internal/config"
	"spotprice/internal/curve"
	"spotprice/internal/logger"
	"spotprice/internal/model"
	"spotprice/internal/pricing"
	"spotprice/internal/schedule"
	"spotprice/internal/search"
	"spotprice/internal/source"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "fetch":
		err = cmdFetch(os.Args[2:])
	case "normalize":
		err = cmdNormalize(os.Args[2:])
	case "lowest":
		err = cmdSearch(os.Args[2:], model.PriceCheapest)
	case "highest":
		err = cmdSearch(os.Args[2:], model.PriceMostExpensive)
	case "today":
		err = cmdToday(os.Args[2:])
	case "plan":
		err = cmdPlan(os.Args[2:])
	case "rank":
		err = cmdRank(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli fetch --config examples/config.yaml --source awattar-de --out data/awattar-de.json")
	fmt.Println("  cli normalize --data data/awattar-de.json --minutes 60 --mode average")
	fmt.Println("  cli lowest --data data/awattar-de.json --duration 2h --earliest 22:00 --latest 06:00")
	fmt.Println("  cli highest --data data/awattar-de.json --duration 90m --mode intermittent")
	fmt.Println("  cli today --data data/awattar-de.json --at 2024-03-14T12:00:00+01:00")
	fmt.Println("  cli plan --data data/awattar-de.json --rule examples/rules/night_charge.yaml --out results/plan.csv")
	fmt.Println("  cli rank --data data/")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - --data takes a JSON price file (cli fetch output) and --source/--config fetch live instead")
	fmt.Println("  - times without a zone are read in --tz (default Europe/Berlin)")
}

// curveFlags are shared by every command that works on a curve.
type curveFlags struct {
	data     *string
	cfgPath  *string
	sourceID *string
	minutes  *int
	mode     *string
	tz       *string
	at       *string
	net      *bool
}

func addCurveFlags(fs *flag.FlagSet) curveFlags {
	return curveFlags{
		data:     fs.String("data", "", "Path to a JSON price file"),
		cfgPath:  fs.String("config", "", "Path to YAML config (with --source, fetch live)"),
		sourceID: fs.String("source", "", "Source id from the config"),
		minutes:  fs.Int("minutes", 0, "Target resolution in minutes (0 = keep the data's own)"),
		mode:     fs.String("mode-normalize", "compress", "compress or average"),
		tz:       fs.String("tz", "Europe/Berlin", "Local timezone for windows and 'today'"),
		at:       fs.String("at", "", "RFC3339 time to use as now (default: current time)"),
		net:      fs.Bool("net", false, "Also print net prices with the default surcharge"),
	}
}

func (f curveFlags) location() (*time.Location, error) {
	return time.LoadLocation(*f.tz)
}

func (f curveFlags) now() (time.Time, error) {
	if *f.at == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, *f.at)
}

func (f curveFlags) load(ctx context.Context) (model.Curve, source.Info, error) {
	var (
		raw  []model.RawPrice
		info source.Info
		err  error
	)
	switch {
	case *f.data != "":
		raw, err = source.LoadRawJSON(*f.data)
		if err != nil {
			return nil, info, err
		}
		info = source.Info{ID: strings.TrimSuffix(filepath.Base(*f.data), filepath.Ext(*f.data)), Currency: "EUR", Formula: pricing.FormulaStandard}
	case *f.cfgPath != "" && *f.sourceID != "":
		raw, info, err = fetchLive(ctx, *f.cfgPath, *f.sourceID)
		if err != nil {
			return nil, info, err
		}
	default:
		return nil, info, fmt.Errorf("--data or --config with --source is required")
	}
	if len(raw) == 0 {
		return nil, info, fmt.Errorf("no prices in input")
	}

	mode, err := model.ParseNormalizeMode(*f.mode)
	if err != nil {
		return nil, info, err
	}
	minutes := *f.minutes
	if minutes == 0 {
		minutes = info.DurationMinutes
	}
	if minutes == 0 {
		minutes = nativeMinutes(raw)
	}
	c, err := curve.Normalize(raw, minutes, mode)
	return c, info, err
}

// nativeMinutes is the input's own resolution; 0 lets Normalize report bad input.
func nativeMinutes(raw []model.RawPrice) int {
	c, err := curve.FromRaw(raw)
	if err != nil {
		return 0
	}
	return int(curve.Resolution(c).Minutes())
}

func fetchLive(ctx context.Context, cfgPath, id string) ([]model.RawPrice, source.Info, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, source.Info{}, err
	}
	cfg, err := config.LoadUnchecked(cfgPath)
	if err != nil {
		return nil, source.Info{}, err
	}
	for _, sc := range cfg.Sources {
		if sc.ID != id {
			continue
		}
		spec, err := cfg.SourceSpec(sc)
		if err != nil {
			return nil, source.Info{}, err
		}
		logs := logger.NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, os.Stderr)
		src, err := source.New(spec, source.NewClient(source.ClientOptions{Logger: logs.Component("source")}))
		if err != nil {
			return nil, source.Info{}, err
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Refresh.Timeout)
		defer cancel()
		raw, err := src.Fetch(ctx)
		return raw, src.Info(), err
	}
	return nil, source.Info{}, fmt.Errorf("source %q not found in %s", id, cfgPath)
}

func cmdFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "examples/config.yaml", "Path to YAML config")
	id := fs.String("source", "", "Source id from the config")
	outPath := fs.String("out", "", "Output JSON path (default data/<source>.json)")
	_ = fs.Parse(args)

	if *id == "" {
		return fmt.Errorf("--source is required")
	}
	raw, info, err := fetchLive(context.Background(), *cfgPath, *id)
	if err != nil {
		return err
	}
	if *outPath == "" {
		*outPath = filepath.Join("data", info.ID+".json")
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return err
	}
	if err := source.SaveRawJSON(*outPath, raw); err != nil {
		return err
	}
	fmt.Printf("Wrote %d prices from %s (%s) to %s\n", len(raw), info.ID, info.Name, *outPath)
	return nil
}

func cmdNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	cf := addCurveFlags(fs)
	_ = fs.Parse(args)

	c, info, err := cf.load(context.Background())
	if err != nil {
		return err
	}
	loc, err := cf.location()
	if err != nil {
		return err
	}
	printCurve(c, info, loc, *cf.net)
	return nil
}

func printCurve(c model.Curve, info source.Info, loc *time.Location, net bool) {
	surcharge := pricing.DefaultSurcharge()
	fmt.Printf("%-25s %-25s %-12s", "start", "end", "price/kWh")
	if net {
		fmt.Printf(" %-12s", "net/kWh")
	}
	fmt.Println()
	for _, s := range c {
		fmt.Printf("%-25s %-25s %-12.6f", s.Start.In(loc).Format(time.RFC3339), s.End.In(loc).Format(time.RFC3339), s.Price)
		if net {
			fmt.Printf(" %-12.6f", surcharge.Net(s.Price, info.Formula))
		}
		fmt.Println()
	}
	fmt.Printf("%d segments, resolution %s\n", len(c), curve.Resolution(c))
}

func cmdSearch(args []string, priceMode model.PriceMode) error {
	fs := flag.NewFlagSet(string(priceMode), flag.ExitOnError)
	cf := addCurveFlags(fs)
	durationStr := fs.String("duration", "1h", "Run time, e.g. 90m or 2h")
	intervalMode := fs.String("mode", "contiguous", "contiguous or intermittent")
	earliest := fs.String("earliest", "", "Earliest start HH:MM (default: now)")
	earliestPost := fs.Int("earliest-post", 0, "Day offset for --earliest")
	latest := fs.String("latest", "", "Latest end HH:MM (default: end of data)")
	latestPost := fs.Int("latest-post", 0, "Day offset for --latest")
	_ = fs.Parse(args)

	d, err := time.ParseDuration(*durationStr)
	if err != nil {
		return err
	}
	im, err := model.ParseIntervalMode(*intervalMode)
	if err != nil {
		return err
	}
	q := search.WindowQuery{EarliestStartDayOffset: *earliestPost, LatestEndDayOffset: *latestPost}
	if *earliest != "" {
		t, err := search.ParseTimeOfDay(*earliest)
		if err != nil {
			return err
		}
		q.EarliestStart = &t
	}
	if *latest != "" {
		t, err := search.ParseTimeOfDay(*latest)
		if err != nil {
			return err
		}
		q.LatestEnd = &t
	}

	c, _, err := cf.load(context.Background())
	if err != nil {
		return err
	}
	loc, err := cf.location()
	if err != nil {
		return err
	}
	now, err := cf.now()
	if err != nil {
		return err
	}

	w, err := search.BuildSearchWindow(now, loc, q, c.End())
	if err != nil {
		return err
	}

	var intervals []model.Interval
	if im == model.IntervalIntermittent {
		intervals, err = search.FindExtremeIntermittent(c, w, d, priceMode.PreferHigh())
	} else {
		var iv model.Interval
		iv, err = search.FindExtremeContiguous(c, w, d, priceMode.PreferHigh())
		intervals = []model.Interval{iv}
	}
	if err != nil {
		return err
	}

	fmt.Printf("window %s .. %s\n", w.EarliestStart.In(loc).Format(time.RFC3339), w.LatestEnd.In(loc).Format(time.RFC3339))
	fmt.Printf("%-4s %-25s %-25s %-12s %-12s\n", "rank", "start", "end", "price/kWh", "cost")
	for _, iv := range intervals {
		fmt.Printf("%-4d %-25s %-25s %-12.6f %-12.6f\n", iv.Rank,
			iv.Start.In(loc).Format(time.RFC3339), iv.End.In(loc).Format(time.RFC3339), iv.Price, iv.Cost)
	}
	total := search.TotalCost(intervals)
	fmt.Printf("%s %s: cost %.6f, average %.6f/kWh\n", priceMode, d, total, total/d.Hours())
	return nil
}

func cmdToday(args []string) error {
	fs := flag.NewFlagSet("today", flag.ExitOnError)
	cf := addCurveFlags(fs)
	_ = fs.Parse(args)

	c, info, err := cf.load(context.Background())
	if err != nil {
		return err
	}
	loc, err := cf.location()
	if err != nil {
		return err
	}
	now, err := cf.now()
	if err != nil {
		return err
	}

	sorted := curve.TodaySorted(c, now, loc)
	if len(sorted) == 0 {
		return fmt.Errorf("no prices for %s", now.In(loc).Format("2006-01-02"))
	}
	var current *model.Segment
	if seg, err := curve.CurrentSegment(c, now); err == nil {
		current = &seg
	}
	st := analysis.ComputeDayStats(sorted, current)

	fmt.Printf("%s %s (%d segments)\n", info.ID, st.DayStart.In(loc).Format("2006-01-02"), st.Count)
	fmt.Printf("min    %.6f at %s\n", st.Min.Price, st.Min.Start.In(loc).Format("15:04"))
	fmt.Printf("max    %.6f at %s\n", st.Max.Price, st.Max.Start.In(loc).Format("15:04"))
	fmt.Printf("mean   %.6f  median %.6f  p05 %.6f  p95 %.6f\n", st.Mean, st.Median, st.P05, st.P95)
	fmt.Printf("storage value (1 kWh) %.6f\n", st.StorageValue)
	if st.HasCurrent {
		fmt.Printf("now    %.6f  rank %d  quantile %.3f\n", st.Current, st.Rank, st.Quantile)
	} else {
		fmt.Println("now    unavailable")
	}
	return nil
}

func cmdPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	cf := addCurveFlags(fs)
	rulePath := fs.String("rule", "", "Path to a rule preset YAML")
	outPath := fs.String("out", "", "Optional CSV output path")
	_ = fs.Parse(args)

	if *rulePath == "" {
		return fmt.Errorf("--rule is required")
	}
	rule, err := schedule.LoadRule(*rulePath)
	if err != nil {
		return err
	}
	c, _, err := cf.load(context.Background())
	if err != nil {
		return err
	}
	loc, err := cf.location()
	if err != nil {
		return err
	}
	now, err := cf.now()
	if err != nil {
		return err
	}

	plan, err := schedule.Evaluate(rule, c, now, loc)
	if err != nil {
		return err
	}

	fmt.Printf("rule %s (%s-%s, %s %s %s)\n", rule.ID, rule.EarliestStart, rule.LatestEnd, rule.Duration, rule.IntervalMode, rule.PriceMode)
	fmt.Printf("in window: %v, enabled: %v\n", plan.InWindow, plan.Enabled)
	printSelection("current", plan.Current, loc)
	printSelection("next", plan.Next, loc)

	if *outPath != "" {
		if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
			return err
		}
		if err := schedule.WritePlanCSVFile(*outPath, plan, loc); err != nil {
			return err
		}
		fmt.Printf("Wrote plan to %s\n", *outPath)
	}
	return nil
}

func printSelection(name string, s *schedule.Selection, loc *time.Location) {
	if s == nil {
		fmt.Printf("%-8s none\n", name)
		return
	}
	fmt.Printf("%-8s from %s, average %.6f/kWh, cost %.6f\n", name, s.Start().In(loc).Format(time.RFC3339), s.Price, s.Cost)
	for _, iv := range s.Intervals {
		fmt.Printf("         %s .. %s  %.6f\n", iv.Start.In(loc).Format("2006-01-02 15:04"), iv.End.In(loc).Format("15:04"), iv.Price)
	}
}

func cmdRank(args []string) error {
	fs := flag.NewFlagSet("rank", flag.ExitOnError)
	dataPaths := fs.String("data", "data", "Comma-separated JSON paths or a directory")
	tz := fs.String("tz", "Europe/Berlin", "Local timezone for 'today'")
	at := fs.String("at", "", "RFC3339 time to use as now")
	_ = fs.Parse(args)

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return err
	}
	now := time.Now()
	if *at != "" {
		if now, err = time.Parse(time.RFC3339, *at); err != nil {
			return err
		}
	}

	files, err := expandPaths(splitPaths(*dataPaths))
	if err != nil {
		return err
	}
	stats := map[string]analysis.DayStats{}
	for _, p := range files {
		raw, err := source.LoadRawJSON(p)
		if err != nil {
			return err
		}
		c, err := curve.FromRaw(raw)
		if err != nil {
			slog.Warn("skipping file", "path", p, "error", err)
			continue
		}
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		var current *model.Segment
		if seg, err := curve.CurrentSegment(c, now); err == nil {
			current = &seg
		}
		sorted := curve.TodaySorted(c, now, loc)
		if len(sorted) == 0 {
			stats[name] = analysis.DayStats{}
			continue
		}
		stats[name] = analysis.ComputeDayStats(sorted, current)
	}

	ranked := analysis.RankByMean(stats)
	fmt.Printf("%-4s %-24s %-6s %-10s %-10s %-10s %-10s %-10s\n", "rank", "source", "count", "mean", "min", "max", "p95-p05", "storage")
	for _, r := range ranked {
		fmt.Printf("%-4d %-24s %-6d %-10.5f %-10.5f %-10.5f %-10.5f %-10.5f\n",
			r.Position, r.Source, r.Count, r.Mean, r.Min.Price, r.Max.Price, r.SpreadP95P05, r.StorageValue)
	}
	return nil
}

func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			out = append(out, filepath.Join(p, e.Name()))
		}
	}
	return out, nil
}

func splitPaths(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
