// Package api serves the read-only query surface and admin controls:
// positions/orders/backtest-trades/risk-state history, DLQ inspection,
// Prometheus metrics, liveness, and two JWT-gated admin endpoints (kill
// switch, runtime flags). There is exactly one deployment and one
// operator, so auth is a single admin credential rather than per-user
// accounts.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
)

// Config is the API service's tunable behavior, sourced from pkg/config.
type Config struct {
	JWTSecret         string
	AdminPasswordHash string
}

// Server wires HTTP endpoints around the shared store/broker.
type Server struct {
	Router   *gin.Engine
	store    *store.Store
	broker   *broker.Client
	registry *prometheus.Registry
	log      zerolog.Logger
	cfg      Config
}

// NewServer builds a Server and registers every route.
func NewServer(st *store.Store, br *broker.Client, registry *prometheus.Registry, log zerolog.Logger, cfg Config) *Server {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:   r,
		store:    st,
		broker:   br,
		registry: registry,
		log:      log,
		cfg:      cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/healthz", s.healthz)
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.Router.Group("/api/v1")
	{
		v1.POST("/auth/login", s.loginAdmin)

		v1.GET("/positions", s.getPositions)
		v1.GET("/positions/open", s.getOpenPositions)
		v1.GET("/orders", s.getOrders)
		v1.GET("/backtest-trades", s.getBacktestTrades)
		v1.GET("/risk", s.getRiskStates)
		v1.GET("/dlq", s.getDLQ)

		admin := v1.Group("/admin")
		admin.Use(AuthMiddleware(s.cfg.JWTSecret))
		{
			admin.POST("/kill-switch", s.setKillSwitch)
			admin.POST("/flags/:name", s.setFlag)
		}
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the HTTP server, blocking until it exits or errors.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
