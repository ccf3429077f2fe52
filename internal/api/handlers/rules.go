package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"spotprice/internal/api/models"
	"spotprice/internal/schedule"

	"github.com/gin-gonic/gin"
)

// RuleHandler lists rule presets and evaluates them against a source
type RuleHandler struct {
	env   *Env
	rules []schedule.Rule
}

// NewRuleHandler takes presets already loaded with schedule.LoadRules.
func NewRuleHandler(env *Env, rules []schedule.Rule) *RuleHandler {
	return &RuleHandler{env: env, rules: rules}
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	out := make([]models.RuleInfo, 0, len(h.rules))
	for _, r := range h.rules {
		out = append(out, models.RuleInfo{
			ID:              r.ID,
			Name:            r.Name,
			Description:     r.Description,
			EarliestStart:   r.EarliestStart.String(),
			LatestEnd:       r.LatestEnd.String(),
			DurationMinutes: r.Duration.Minutes(),
			IntervalMode:    string(r.IntervalMode),
			PriceMode:       string(r.PriceMode),
		})
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// GetPlan handles GET /api/v1/sources/:id/plan
func (h *RuleHandler) GetPlan(c *gin.Context) {
	var req models.PlanQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "MISSING_PARAM", "rule query parameter is required", nil)
		return
	}
	rule, err := schedule.Find(h.rules, req.Rule)
	if err != nil {
		if errors.Is(err, schedule.ErrUnknownRule) {
			errorJSON(c, http.StatusNotFound, "UNKNOWN_RULE", err.Error(), nil)
			return
		}
		writeError(c, err)
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

	plan, err := schedule.Evaluate(rule, snap.Curve, at, h.env.loc())
	if err != nil {
		writeError(c, err)
		return
	}

	switch req.Format {
	case "", "json":
		c.JSON(http.StatusOK, models.PlanResponse{Source: f.Info().ID, Plan: plan})
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Info().ID+"_"+rule.ID+".csv"))
		c.Status(http.StatusOK)
		if err := schedule.WritePlanCSV(c.Writer, plan, h.env.loc()); err != nil {
			h.env.log(c).Error("write plan csv", "error", err)
		}
	default:
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "format must be json or csv", nil)
	}
}
