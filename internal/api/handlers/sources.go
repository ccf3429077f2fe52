package handlers

import (
	"errors"
	"net/http"

	"spotprice/internal/analysis"
	"spotprice/internal/api/models"
	"spotprice/internal/curve"
	"spotprice/internal/feed"
	"spotprice/internal/model"
	"spotprice/internal/source"

	"github.com/gin-gonic/gin"
)

// SourceHandler serves the configured sources and their prices
type SourceHandler struct {
	env *Env
}

func NewSourceHandler(env *Env) *SourceHandler {
	return &SourceHandler{env: env}
}

// ListSources handles GET /api/v1/sources
func (h *SourceHandler) ListSources(c *gin.Context) {
	feeds := h.env.Feeds.List()
	out := make([]models.SourceInfo, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, sourceInfo(f))
	}
	c.JSON(http.StatusOK, models.SourcesResponse{Sources: out, Providers: source.Providers()})
}

func sourceInfo(f *feed.Feed) models.SourceInfo {
	info := f.Info()
	si := models.SourceInfo{Info: info, Status: f.Status()}
	if l, err := model.LookupCurrency(info.Currency); err == nil {
		si.UOMPerKWh = l.UOMPerKWh
	}
	return si
}

// GetPrices handles GET /api/v1/sources/:id/prices
func (h *SourceHandler) GetPrices(c *gin.Context) {
	var req models.PricesQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
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

	segs := snap.Curve
	switch req.Day {
	case "", "all":
	case "today":
		segs = curve.Today(segs, at, h.env.loc())
	default:
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "day must be all or today", nil)
		return
	}

	info := f.Info()
	points := make([]models.PricePoint, len(segs))
	for i, s := range segs {
		points[i] = h.pricePoint(info, s)
	}
	c.JSON(http.StatusOK, models.PricesResponse{
		Source:    info.ID,
		Currency:  info.Currency,
		FetchedAt: snap.FetchedAt,
		Count:     len(points),
		Prices:    points,
	})
}

func (h *SourceHandler) pricePoint(info source.Info, s model.Segment) models.PricePoint {
	return models.PricePoint{
		Start:    s.Start,
		End:      s.End,
		Price:    s.Price,
		NetPrice: h.env.netPrice(info, s.Price),
	}
}

// GetCurrent handles GET /api/v1/sources/:id/current
func (h *SourceHandler) GetCurrent(c *gin.Context) {
	f, ok := h.env.feed(c)
	if !ok {
		return
	}
	at, ok := h.env.at(c, c.Query("at"))
	if !ok {
		return
	}
	info := f.Info()
	resp := models.CurrentResponse{Source: info.ID, At: at}

	snap := f.Snapshot()
	if snap == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	var current *model.Segment
	seg, err := curve.CurrentSegment(snap.Curve, at)
	switch {
	case err == nil:
		current = &seg
		p := h.pricePoint(info, seg)
		resp.Available = true
		resp.Current = &p
	case errors.Is(err, curve.ErrNoCurrentData):
	default:
		writeError(c, err)
		return
	}

	sorted := curve.TodaySorted(snap.Curve, at, h.env.loc())
	if len(sorted) > 0 {
		st := analysis.ComputeDayStats(sorted, current)
		st.Source = info.ID
		resp.Today = &st
	}
	c.JSON(http.StatusOK, resp)
}

// Fetch handles POST /api/v1/sources/:id/fetch
func (h *SourceHandler) Fetch(c *gin.Context) {
	f, ok := h.env.feed(c)
	if !ok {
		return
	}
	if err := f.Fetch(c.Request.Context()); err != nil {
		h.env.log(c).Warn("on-demand fetch failed", "error", err)
		if errors.Is(err, feed.ErrEmptyFetch) {
			errorJSON(c, http.StatusBadGateway, "EMPTY_RESPONSE", err.Error(), nil)
			return
		}
		var he *source.HTTPError
		if errors.As(err, &he) {
			writeError(c, err)
			return
		}
		errorJSON(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, sourceInfo(f))
}
