package cmd

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"guestpass/security"
	"guestpass/services"
	"guestpass/utils"
)

// startOpsServer serves the operational surface (metrics scrape, liveness) on
// its own port, behind the same sliding-window limiter as the app endpoints so
// a misconfigured scraper cannot hammer Redis through the health probe.
func startOpsServer(port string, redisClient *redis.Client, limiter *services.RateLimiter) {
	e := echo.New()

	guard := security.NewRateLimitMiddleware(limiter, 60, time.Minute)

	metricsHandler := promhttp.Handler()
	e.GET("/metrics", func(c echo.Context) error {
		metricsHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	}, guard.Limit("ops-metrics"))

	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	}, guard.Limit("ops-health"))

	go func() {
		server := &http.Server{Addr: ":" + port, Handler: e}
		log.Printf("Ops server listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server stopped", "error", err)
		}
	}()
}
