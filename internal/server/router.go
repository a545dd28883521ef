package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/renewd/internal/metrics"
)

// StatusProvider exposes a read-only snapshot of the scheduler.
type StatusProvider interface {
	Snapshot() any
}

// Router provides the embeddable HTTP status surface.
// Endpoints:
//
//	GET /healthz   liveness probe
//	GET /status    scheduler snapshot JSON
//	GET /metrics   Prometheus metrics
type Router struct {
	status StatusProvider
}

// NewRouter constructs a Router over the given status provider.
func NewRouter(status StatusProvider) *Router {
	return &Router{status: status}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, status StatusProvider) *http.Server {
	r := NewRouter(status)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.status.Snapshot())
}
