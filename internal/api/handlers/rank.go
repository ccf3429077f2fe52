package handlers

import (
	"net/http"

	"spotprice/internal/analysis"
	"spotprice/internal/api/models"
	"spotprice/internal/curve"
	"spotprice/internal/model"

	"github.com/gin-gonic/gin"
)

// RankHandler handles ranking-related requests
type RankHandler struct {
	env *Env
}

// NewRankHandler creates a new rank handler
func NewRankHandler(env *Env) *RankHandler {
	return &RankHandler{env: env}
}

// RankSources handles GET /api/v1/rank
func (h *RankHandler) RankSources(c *gin.Context) {
	var req models.RankQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	at, ok := h.env.at(c, req.At)
	if !ok {
		return
	}

	stats := map[string]analysis.DayStats{}
	currency := map[string]string{}
	for _, f := range h.env.Feeds.List() {
		id := f.Info().ID
		currency[id] = f.Info().Currency
		stats[id] = analysis.DayStats{}

		prices := f.Curve()
		if len(prices) == 0 {
			continue
		}
		sorted := curve.TodaySorted(prices, at, h.env.loc())
		if len(sorted) == 0 {
			continue
		}
		var current *model.Segment
		if seg, err := curve.CurrentSegment(prices, at); err == nil {
			current = &seg
		}
		stats[id] = analysis.ComputeDayStats(sorted, current)
	}

	ranked := analysis.RankByMean(stats)
	limit := req.Limit
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	rankings := make([]models.Ranking, 0, limit)
	for _, r := range ranked[:limit] {
		rankings = append(rankings, models.Ranking{
			Rank:         r.Position,
			Source:       r.Source,
			Currency:     currency[r.Source],
			Count:        r.Count,
			Mean:         r.Mean,
			MinPrice:     r.Min.Price,
			MaxPrice:     r.Max.Price,
			SpreadP95P05: r.SpreadP95P05,
			StorageValue: r.StorageValue,
		})
	}

	c.JSON(http.StatusOK, models.RankResponse{At: at, Rankings: rankings})
}
