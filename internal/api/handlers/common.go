package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"spotprice/internal/api/models"
	"spotprice/internal/feed"
	"spotprice/internal/logger"
	"spotprice/internal/pricing"
	"spotprice/internal/search"
	"spotprice/internal/source"

	"github.com/gin-gonic/gin"
)

// Env carries what every handler reads: the feeds, per-source surcharges and
// the local timezone "today" is computed in.
type Env struct {
	Feeds      *feed.Set
	Surcharges map[string]pricing.Surcharge
	// Formulas overrides a source's own net price formula.
	Formulas map[string]pricing.Formula
	Location *time.Location
	Logger   *slog.Logger
	// Now is time.Now unless a test pins it.
	Now func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e *Env) log(c *gin.Context) *slog.Logger {
	return logger.FromContext(c.Request.Context(), e.Logger)
}

// at resolves the optional "at" query override of now.
func (e *Env) at(c *gin.Context, raw string) (time.Time, bool) {
	if raw == "" {
		return e.now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_TIME", "at must be an RFC3339 timestamp", nil)
		return time.Time{}, false
	}
	return t, true
}

// feed looks up the :id path parameter and tags the request log with it.
func (e *Env) feed(c *gin.Context) (*feed.Feed, bool) {
	id := c.Param("id")
	f, ok := e.Feeds.Get(id)
	if !ok {
		errorJSON(c, http.StatusNotFound, "UNKNOWN_SOURCE", "unknown source "+id, nil)
		return nil, false
	}
	c.Request = c.Request.WithContext(logger.WithSourceID(c.Request.Context(), id))
	return f, true
}

// snapshot returns f's current curve, or answers 503 before the first fetch.
func (e *Env) snapshot(c *gin.Context, f *feed.Feed) (*feed.Snapshot, bool) {
	s := f.Snapshot()
	if s == nil || len(s.Curve) == 0 {
		writeError(c, search.ErrNoData)
		return nil, false
	}
	return s, true
}

func (e *Env) netPrice(info source.Info, price float64) float64 {
	s, ok := e.Surcharges[info.ID]
	if !ok {
		s = pricing.DefaultSurcharge()
	}
	f := info.Formula
	if o, ok := e.Formulas[info.ID]; ok {
		f = o
	}
	return s.Net(price, f)
}

func errorJSON(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var he *source.HTTPError
	switch {
	case errors.As(err, &he):
		statusCode := http.StatusBadGateway
		if he.StatusCode == http.StatusForbidden || he.StatusCode == http.StatusUnauthorized {
			statusCode = http.StatusUnauthorized
		} else if he.StatusCode == http.StatusTooManyRequests {
			statusCode = http.StatusTooManyRequests
		}
		errorJSON(c, statusCode, he.Code, he.Message, map[string]interface{}{
			"provider":    he.Provider,
			"status_code": he.StatusCode,
			"retry_after": he.RetryAfter,
		})
	case errors.Is(err, search.ErrNoData):
		errorJSON(c, http.StatusServiceUnavailable, "NO_DATA", "no prices fetched yet for this source", nil)
	case errors.Is(err, search.ErrInvalidWindow):
		errorJSON(c, http.StatusBadRequest, "INVALID_WINDOW", err.Error(), nil)
	case errors.Is(err, search.ErrInvalidDuration):
		errorJSON(c, http.StatusBadRequest, "INVALID_DURATION", err.Error(), nil)
	case errors.Is(err, search.ErrNoResult):
		errorJSON(c, http.StatusNotFound, "NO_RESULT", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		errorJSON(c, http.StatusGatewayTimeout, "TIMEOUT", err.Error(), nil)
	default:
		errorJSON(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}
