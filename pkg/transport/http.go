package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/portal-node/pkg/jsonrpc"
	"github.com/morezero/portal-node/pkg/metrics"
	"github.com/morezero/portal-node/pkg/middleware"
)

const httpLogPrefix = "transport:http"

const maxBodyBytes = 1 << 20

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

// HealthChecker reports the node's health. A status other than "healthy"
// answers 503.
type HealthChecker func(ctx context.Context) *HealthStatus

// NewHTTPHandler builds the gin engine serving JSON-RPC on POST /, the
// health and readiness probes and Prometheus metrics. corsOrigins lists the
// browser origins allowed to call the API; "*" allows any and empty disables
// CORS.
func NewHTTPHandler(h middleware.HandlerFunc, health HealthChecker, healthTimeout time.Duration, corsOrigins []string) *gin.Engine {
	metrics.RegisterMetrics()

	g := gin.New()
	g.Use(gin.RecoveryWithWriter(slogWriter{}))
	g.Use(requestLogger())
	if len(corsOrigins) > 0 {
		g.Use(cors.New(corsConfig(corsOrigins)))
	}

	g.POST("/", func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
		if err != nil {
			rpcErr := jsonrpc.NewError(jsonrpc.CodeParseError, "parse error")
			rpcErr.Data = err.Error()
			c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, rpcErr))
			return
		}
		c.JSON(http.StatusOK, HandleRaw(c.Request.Context(), body, h))
	})

	g.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		status := &HealthStatus{Status: "healthy", Checks: map[string]bool{}, Timestamp: time.Now().UTC().Format(time.RFC3339)}
		if health != nil {
			status = health(ctx)
		}
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	g.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return g
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// HTTPServer wraps the engine with graceful shutdown.
type HTTPServer struct {
	Engine      *gin.Engine
	httpServer  *http.Server
	addr        string
	shutdownDur time.Duration
}

// Option configures HTTPServer.
type Option func(*HTTPServer)

func WithAddress(addr string) Option             { return func(s *HTTPServer) { s.addr = addr } }
func WithShutdownTimeout(d time.Duration) Option { return func(s *HTTPServer) { s.shutdownDur = d } }

// NewHTTPServer creates a server for engine.
func NewHTTPServer(engine *gin.Engine, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		Engine:      engine,
		addr:        ":8080",
		shutdownDur: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Engine}
	return s
}

// Addr returns the listen address.
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start runs the server asynchronously.
func (s *HTTPServer) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", httpLogPrefix, err))
		}
	}()
	slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", httpLogPrefix, s.addr))
}

// Shutdown gracefully stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownDur)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// slogWriter routes gin's internal output to slog.
type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		slog.Error(fmt.Sprintf("%s - %s", httpLogPrefix, msg))
	}
	return len(p), nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug(fmt.Sprintf("%s - %s %s status=%d latency=%s",
			httpLogPrefix, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start)))
	}
}
