package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelops/intel-gateway/internal/features"
)

// startHTTP brings up the introspection API: health, feature availability,
// error analytics, breaker status and Prometheus metrics.
func (g *Gateway) startHTTP() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	g.httpServer = &http.Server{
		Addr:         addr,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.Server.ReadTimeout,
		WriteTimeout: g.config.Server.WriteTimeout,
	}

	g.logger.Info("Starting HTTP introspection server", "addr", addr)
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("HTTP server error", "error", err.Error())
		}
	}()

	return nil
}

func (g *Gateway) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", g.handleHealth)
	router.GET("/metrics", g.metrics.GinHandler())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/features", g.handleFeatures)
		v1.GET("/tools", g.handleTools)
		v1.GET("/errors", g.handleErrorSummary)
		v1.GET("/errors/trends", g.handleErrorTrends)
		v1.POST("/errors/reset", g.handleErrorReset)
		v1.GET("/breakers", g.handleBreakers)
		v1.GET("/breakers/:service", g.handleBreaker)
	}

	return router
}

func (g *Gateway) handleHealth(c *gin.Context) {
	snapshot := g.monitor.Last()
	summary := g.resolver.GetSummary()

	status := http.StatusOK
	if summary.Status == features.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":       summary.Status,
		"dependencies": snapshot,
		"timestamp":    time.Now().UTC(),
	})
}

func (g *Gateway) handleFeatures(c *gin.Context) {
	details := make(map[string]features.Availability)
	for _, def := range g.resolver.Definitions() {
		if avail, ok := g.resolver.Get(def.Name); ok {
			details[def.Name] = avail
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":  g.resolver.GetSummary(),
		"features": details,
	})
}

func (g *Gateway) handleTools(c *gin.Context) {
	available := g.resolver.AvailableSet()

	type toolInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}

	var listed []toolInfo
	for _, def := range g.catalog.Available(available) {
		listed = append(listed, toolInfo{
			Name:        def.Tool.Name,
			Description: def.Tool.Description,
			Category:    def.Category,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"available_tools": listed,
		"total_tools":     len(g.catalog.All()),
	})
}

func (g *Gateway) handleErrorSummary(c *gin.Context) {
	windowSeconds, err := strconv.Atoi(c.DefaultQuery("window_seconds", "300"))
	if err != nil || windowSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window_seconds must be a positive integer"})
		return
	}

	c.JSON(http.StatusOK, g.aggregator.Summary(time.Duration(windowSeconds)*time.Second))
}

func (g *Gateway) handleErrorTrends(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	c.JSON(http.StatusOK, g.aggregator.Trends(hours))
}

func (g *Gateway) handleErrorReset(c *gin.Context) {
	g.aggregator.Reset()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (g *Gateway) handleBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, g.orchestrator.AllBreakerStatuses())
}

func (g *Gateway) handleBreaker(c *gin.Context) {
	service := c.Param("service")
	status, ok := g.orchestrator.BreakerStatus(service)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no circuit breaker for service %s", service)})
		return
	}
	c.JSON(http.StatusOK, status)
}
