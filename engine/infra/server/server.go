// Package server assembles the gin.Engine, the http.Server wrapping it, and
// the graceful-shutdown lifecycle that owns both — following the teacher's
// engine/infra/server package shape (Server struct + Run/Shutdown), though
// the wiring of dependencies into an appstate.State happens in
// cmd/hookflow rather than in a setupDependencies method here, since this
// core has no DI container to mirror.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/hookflow/hookflow/engine/infra/server/appstate"
	"github.com/hookflow/hookflow/engine/infra/server/routes"
	"github.com/hookflow/hookflow/pkg/logger"
)

// Server owns the HTTP listener and its graceful-shutdown lifecycle.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	state  *appstate.State
	router *gin.Engine

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	cleanupMu     sync.Mutex
	extraCleanups []func()
}

// New builds a Server. ctx should carry the process config via
// config.ContextWithConfig and a logger via logger.ContextWithLogger.
func New(ctx context.Context, state *appstate.State) *Server {
	runCtx, cancel := context.WithCancel(ctx)
	return &Server{
		ctx:          runCtx,
		cancel:       cancel,
		state:        state,
		shutdownChan: make(chan struct{}, 1),
	}
}

// buildRouter constructs the gin.Engine and registers every route.
func (s *Server) buildRouter() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.ctx))
	routes.Register(engine, s.state)
	s.router = engine
}

// requestLogger logs one line per request at Info, mirroring the teacher's
// structured-logging middleware convention (charmbracelet/log via
// pkg/logger rather than gin's default text logger).
func requestLogger(ctx context.Context) gin.HandlerFunc {
	log := logger.FromContext(ctx)
	return func(c *gin.Context) {
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
