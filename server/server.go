// Package server exposes the gateway over HTTP with gin: a health
// probe, a models-listing proxy and the payment-gated chat-completion
// endpoint.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	paygate "github.com/x402lab/paygate"
)

// NewRouter builds the gin engine with all routes and middleware. CORS
// is open to all origins, matching the browser clients this gateway
// serves.
func NewRouter(gw *paygate.Gateway) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(gw))
	r.Use(cors.Default())

	h := newHandler(gw)

	r.GET("/health", h.Health)
	r.GET("/v1/models", h.Models)
	r.POST("/v1/chat/completions", h.ChatCompletions)

	if gw.Config().EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(gw *paygate.Gateway) gin.HandlerFunc {
	log := gw.Logger()
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		log.Info("request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(started).String(),
		})
	}
}
