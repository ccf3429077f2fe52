package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spotprice/internal/api/models"
	"spotprice/internal/model"
	"spotprice/internal/search"

	"github.com/gin-gonic/gin"
)

// IntervalHandler answers "when is the best time to run for d"
type IntervalHandler struct {
	env *Env
}

func NewIntervalHandler(env *Env) *IntervalHandler {
	return &IntervalHandler{env: env}
}

// FindInterval handles GET /api/v1/sources/:id/interval
func (h *IntervalHandler) FindInterval(c *gin.Context) {
	var req models.IntervalQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	mode, err := model.ParseIntervalMode(req.Mode)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	priceMode, err := model.ParsePriceMode(req.PriceMode)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	d, err := parseDuration(req.Duration)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_DURATION", err.Error(), nil)
		return
	}
	q, err := windowQuery(req)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_WINDOW", err.Error(), nil)
		return
	}

	f, ok := h.env.feed(c)
	if !ok {
		return
	}
	snap, ok := h.env.snapshot(c, f)
	if !ok {
		return
	}
	at, ok := h.env.at(c, req.At)
	if !ok {
		return
	}

	w, err := search.BuildSearchWindow(at, h.env.loc(), q, snap.Curve.End())
	if err != nil {
		writeError(c, err)
		return
	}

	var intervals []model.Interval
	if mode == model.IntervalIntermittent {
		intervals, err = search.FindExtremeIntermittent(snap.Curve, w, d, priceMode.PreferHigh())
	} else {
		var iv model.Interval
		iv, err = search.FindExtremeContiguous(snap.Curve, w, d, priceMode.PreferHigh())
		intervals = []model.Interval{iv}
	}
	if err != nil {
		h.env.log(c).Debug("interval search without result", "error", err)
		writeError(c, err)
		return
	}

	cost := search.TotalCost(intervals)
	price := cost / d.Hours()
	start, end := intervals[0].Start, intervals[0].End
	for _, iv := range intervals[1:] {
		if iv.Start.Before(start) {
			start = iv.Start
		}
		if iv.End.After(end) {
			end = iv.End
		}
	}

	c.JSON(http.StatusOK, models.IntervalResponse{
		Source:          f.Info().ID,
		Mode:            string(mode),
		PriceMode:       string(priceMode),
		DurationMinutes: d.Minutes(),
		Window:          w,
		Start:           start,
		End:             end,
		Price:           price,
		NetPrice:        h.env.netPrice(f.Info(), price),
		Cost:            cost,
		Active:          search.InIntervals(at, intervals),
		Intervals:       intervals,
	})
}

// parseDuration accepts a Go duration ("1h30m") or whole minutes ("90").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if mins, err := strconv.Atoi(s); err == nil {
		return time.Duration(mins) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q, expected minutes or a duration like 1h30m", s)
	}
	return d, nil
}

func windowQuery(req models.IntervalQuery) (search.WindowQuery, error) {
	q := search.WindowQuery{
		EarliestStartDayOffset: req.EarliestStartPost,
		LatestEndDayOffset:     req.LatestEndPost,
	}
	if req.EarliestStart != "" {
		t, err := search.ParseTimeOfDay(req.EarliestStart)
		if err != nil {
			return q, fmt.Errorf("earliest_start: %w", err)
		}
		q.EarliestStart = &t
	}
	if req.LatestEnd != "" {
		t, err := search.ParseTimeOfDay(req.LatestEnd)
		if err != nil {
			return q, fmt.Errorf("latest_end: %w", err)
		}
		q.LatestEnd = &t
	}
	return q, nil
}
