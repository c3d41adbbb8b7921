package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/waitroom-api/internal/handler"
	"github.com/jwalitptl/waitroom-api/internal/middleware"
	"github.com/jwalitptl/waitroom-api/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	doctorH Handler
	policyH Handler
	eventsH Handler
	wsH     Handler
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	// ProviderRateLimit throttles the conferencing provider callbacks only;
	// browser traffic is not rate limited.
	ProviderRateLimit rate.Limit
	ProviderRateBurst int
	CORSConfig        middleware.CORSConfig
	RequestTimeout    time.Duration
	MetricsPrefix     string
}

func NewRouter(doctorH, policyH, eventsH, wsH Handler, logger zerolog.Logger, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:  engine,
		doctorH: doctorH,
		policyH: policyH,
		eventsH: eventsH,
		wsH:     wsH,
		metrics: initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logger),
		r.metricsMiddleware(),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	r.setup(config)
	return r
}

func (r *Router) setup(config Config) {
	r.engine.GET("/health", handler.HealthCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	timeout := middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout})

	api := r.engine.Group("/api/v1", timeout)
	r.doctorH.RegisterRoutes(api)

	providerLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.ProviderRateLimit,
		Burst: config.ProviderRateBurst,
	})

	// The provider retries on any failure status, so overload and deadline
	// replies on its routes carry the outcome in the body under a 200:
	// policy lookups get a reject, event deliveries get a plain ack.
	policyBusy := func(c *gin.Context) {
		c.JSON(http.StatusOK, &model.PolicyResponse{
			Status: "success",
			Action: model.ActionReject,
			Result: &model.PolicyResult{
				Disconnect: true,
				Message:    "service busy",
			},
		})
	}
	eventsAck := func(c *gin.Context) {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
	}

	policyTimeout := middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout, Respond: policyBusy})
	policy := r.engine.Group("/policy/v1", policyTimeout, providerLimiter.RateLimitWith(policyBusy))
	r.policyH.RegisterRoutes(policy)

	eventsTimeout := middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout, Respond: eventsAck})
	events := r.engine.Group("/events/v1", eventsTimeout, providerLimiter.RateLimitWith(eventsAck))
	r.eventsH.RegisterRoutes(events)

	// Websocket connections outlive any request deadline, so this group stays
	// outside the timeout middleware.
	ws := r.engine.Group("/ws")
	r.wsH.RegisterRoutes(ws)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
