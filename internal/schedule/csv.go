package schedule

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

// WritePlanCSV writes one row per selected interval of p, current window first.
// Local times use loc.
func WritePlanCSV(w io.Writer, p Plan, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)

	header := []string{
		"rule",
		"window",
		"rank",
		"interval_start_local",
		"interval_end_local",
		"interval_start_utc",
		"interval_end_utc",
		"duration_minutes",
		"price_per_kwh",
		"interval_price",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, part := range []struct {
		name string
		sel  *Selection
	}{{"current", p.Current}, {"next", p.Next}} {
		if part.sel == nil {
			continue
		}
		for _, iv := range part.sel.Intervals {
			row := []string{
				p.Rule,
				part.name,
				strconv.Itoa(iv.Rank),
				fmtTime(iv.Start.In(loc)),
				fmtTime(iv.End.In(loc)),
				fmtTime(iv.Start.UTC()),
				fmtTime(iv.End.UTC()),
				strconv.FormatFloat(iv.Duration().Minutes(), 'f', -1, 64),
				fmtFloat(iv.Price),
				fmtFloat(iv.Cost),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func WritePlanCSVFile(path string, p Plan, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePlanCSV(f, p, loc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
