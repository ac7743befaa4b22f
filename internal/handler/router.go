package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the HTTP API. metrics may be nil to skip the /metrics endpoint.
func NewRouter(h *CurrencyHandler, metrics http.Handler, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8080", "http://127.0.0.1:8080"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: false,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1")
	v1.POST("/convert_multiple_currency", h.ConvertMultipleCurrency)
	v1.POST("/multiple_currency_timeseries", h.MultipleCurrencyTimeseries)
	v1.GET("/currency_list", h.CurrencyList)

	return r
}

// DefaultMetricsHandler serves the default prometheus registry.
func DefaultMetricsHandler() http.Handler {
	return promhttp.Handler()
}
