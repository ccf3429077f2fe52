// Package api wires the HTTP routes of the price service.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"spotprice/internal/api/handlers"
	"spotprice/internal/api/middleware"
	"spotprice/internal/schedule"

	"github.com/gin-gonic/gin"
)

type Options struct {
	AllowedOrigins []string
	// StaticDir holds a built web UI; skipped when missing.
	StaticDir string
	Logger    *slog.Logger
}

func NewRouter(env *handlers.Env, rules []schedule.Rule, opts Options) *gin.Engine {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.Logger(l))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.ErrorHandler(l))

	sourceHandler := handlers.NewSourceHandler(env)
	intervalHandler := handlers.NewIntervalHandler(env)
	ruleHandler := handlers.NewRuleHandler(env, rules)
	rankHandler := handlers.NewRankHandler(env)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.GET("/sources", sourceHandler.ListSources)
		api.GET("/sources/:id/prices", sourceHandler.GetPrices)
		api.GET("/sources/:id/current", sourceHandler.GetCurrent)
		api.POST("/sources/:id/fetch", sourceHandler.Fetch)
		api.GET("/sources/:id/interval", intervalHandler.FindInterval)
		api.GET("/sources/:id/plan", ruleHandler.GetPlan)

		api.GET("/rules", ruleHandler.ListRules)
		api.GET("/rank", rankHandler.RankSources)
	}

	serveStatic(router, opts.StaticDir, l)
	return router
}

// serveStatic serves a single page app from dir for every non-API route.
func serveStatic(router *gin.Engine, dir string, l *slog.Logger) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		l.Info("static directory not found, skipping static file serving", "dir", dir)
		return
	}

	router.Static("/assets", dir+"/assets")
	router.StaticFile("/favicon.ico", dir+"/favicon.ico")
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(dir + "/index.html")
	})
	l.Info("serving static files", "dir", dir)
}
