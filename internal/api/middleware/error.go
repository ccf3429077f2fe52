package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"spotprice/internal/api/models"
	"spotprice/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler middleware recovers panics into a 500 error envelope
func ErrorHandler(l *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.FromContext(c.Request.Context(), l).Error("panic recovered",
			"path", c.Request.URL.Path, "panic", fmt.Sprint(recovered))

		message := "An unexpected error occurred"
		if err, ok := recovered.(string); ok {
			message = err
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INTERNAL_ERROR",
				Message: message,
			},
		})
	})
}
