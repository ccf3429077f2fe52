package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"spotprice/internal/model"
)

// TimeOfDay is a local wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		vals[i] = v
	}
	t := TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight, ignoring seconds.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant at this wall-clock time on the local date of day,
// shifted by offsetDays calendar days.
func (t TimeOfDay) On(day time.Time, offsetDays int, loc *time.Location) time.Time {
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offsetDays, t.Hour, t.Minute, t.Second, 0, loc)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// WindowQuery is the caller's description of a search window in local time.
// A nil EarliestStart means "now"; a nil LatestEnd means "end of known data".
type WindowQuery struct {
	EarliestStart          *TimeOfDay
	EarliestStartDayOffset int
	LatestEnd              *TimeOfDay
	LatestEndDayOffset     int
}

// BuildSearchWindow resolves q against now in loc. latestAvailable is the end
// of the newest known price; a zero value means nothing has been fetched yet.
//
// A latest end with a day offset counts from the local date of now, like the
// earliest start. Without an offset it is taken on the earliest start's date
// and moves to the next day when it falls at or before the earliest start
// (e.g. 22:00 to 06:00). The latest end is capped at latestAvailable.
func BuildSearchWindow(now time.Time, loc *time.Location, q WindowQuery, latestAvailable time.Time) (model.Window, error) {
	if latestAvailable.IsZero() {
		return model.Window{}, ErrNoData
	}
	if loc == nil {
		loc = time.UTC
	}

	earliest := now
	if q.EarliestStart != nil {
		earliest = q.EarliestStart.On(now, q.EarliestStartDayOffset, loc)
	} else if q.EarliestStartDayOffset != 0 {
		earliest = now.AddDate(0, 0, q.EarliestStartDayOffset)
	}

	latest := latestAvailable
	if q.LatestEnd != nil {
		if q.LatestEndDayOffset != 0 {
			latest = q.LatestEnd.On(now, q.LatestEndDayOffset, loc)
		} else {
			latest = q.LatestEnd.On(earliest, 0, loc)
			if !latest.After(earliest) {
				latest = q.LatestEnd.On(earliest, 1, loc)
			}
		}
	}
	if latest.After(latestAvailable) {
		latest = latestAvailable
	}

	w := model.Window{EarliestStart: earliest.UTC(), LatestEnd: latest.UTC()}
	if err := w.Validate(); err != nil {
		return model.Window{}, err
	}
	return w, nil
}
