// Package httpapi is the JSON/HTTP control plane in front of the
// supervisor: authentication, request routing, and the DTOs wrapping
// every operation in the spec's HTTP surface.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/supervisor"
)

// Options configures the HTTP facade.
type Options struct {
	Host    string
	Port    int
	APIKey  string
	Version string
	DevCORS bool // enable permissive CORS for local frontend development
}

// Server wraps the gin engine and the stdlib http.Server backing it.
type Server struct {
	log    *zap.Logger
	http   *http.Server
	engine *gin.Engine
}

var endpointList = []string{
	"POST /add", "POST /restart/:id", "POST /stop/:id", "POST /remove/:id",
	"POST /restart-all", "POST /stop-all", "POST /input/:id", "POST /clear-log/:id",
	"GET /list", "GET /info", "GET /logs/:id", "POST /shutdown",
}

// Endpoints returns the control plane's route list, for the startup banner.
func Endpoints() []string {
	return endpointList
}

// New builds the Server, wiring every operation in §4.11 onto sup.
// onShutdown is invoked (after the /shutdown response flushes) to tear the
// supervisor down and exit the process.
func New(log *zap.Logger, sup *supervisor.Supervisor, opts Options, onShutdown shutdownFunc) *Server {
	binding.EnableDecoderDisallowUnknownFields = true
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())

	if opts.DevCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST"},
			AllowHeaders:     []string{"Content-Type", apiKeyHeader},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(RequestID())
	r.Use(ZapLogger(log))

	h := newHandler(log, sup, infoResponse{
		Name:      "exeio",
		Version:   opts.Version,
		BindURL:   fmt.Sprintf("http://%s:%d", opts.Host, opts.Port),
		Endpoints: endpointList,
	})

	r.GET("/info", h.handleInfo)

	authed := r.Group("/", APIKeyAuth(opts.APIKey))
	authed.POST("add", h.handleAdd)
	authed.POST("restart/:id", h.handleRestart)
	authed.POST("stop/:id", h.handleStop)
	authed.POST("remove/:id", h.handleRemove)
	authed.POST("restart-all", h.handleRestartAll)
	authed.POST("stop-all", h.handleStopAll)
	authed.POST("input/:id", h.handleInput)
	authed.POST("clear-log/:id", h.handleClearLog)
	authed.GET("list", h.handleList)
	authed.GET("logs/:id", h.handleLogs)
	authed.POST("shutdown", h.handleShutdown(onShutdown))

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	return &Server{
		log:    log.Named("httpapi"),
		engine: r,
		http: &http.Server{
			Addr:           addr,
			Handler:        r,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 15,
			ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
		},
	}
}

// ListenAndServe blocks serving the control plane until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("running HTTP server", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests with a bounded timeout.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", zap.Error(err))
	}
}

// ExitAfterFlush gives the /shutdown response a brief moment to reach the
// client before the process exits, per §4.11 ("exit with status 0 after a
// brief delay so the HTTP response flushes").
func ExitAfterFlush(code int) {
	time.Sleep(200 * time.Millisecond)
	os.Exit(code)
}
