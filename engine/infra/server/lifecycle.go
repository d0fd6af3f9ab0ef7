package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hookflow/hookflow/pkg/config"
	"github.com/hookflow/hookflow/pkg/logger"
)

// Run builds the router and blocks until a shutdown signal (OS signal,
// Shutdown(), or a fatal listener error) is handled.
func (s *Server) Run() error {
	s.buildRouter()
	return s.startAndRunServer()
}

func (s *Server) startAndRunServer() error {
	srv := s.createHTTPServer()
	s.httpServer = srv
	errChan := make(chan error, 1)
	go s.startServer(srv, errChan)
	select {
	case err := <-errChan:
		if err != nil {
			s.cleanup()
			return err
		}
	case <-time.After(config.FromContext(s.ctx).Server.Timeouts.StartProbeDelay):
		logger.FromContext(s.ctx).Info("HTTP server up", "address", srv.Addr)
	}
	return s.handleGracefulShutdown(srv, errChan)
}

func (s *Server) createHTTPServer() *http.Server {
	cfg := config.FromContext(s.ctx)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.FromContext(s.ctx).Info("Starting HTTP server", "address", "http://"+addr)
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
		ReadTimeout:  cfg.Server.Timeouts.HTTPRead,
		WriteTimeout: cfg.Server.Timeouts.HTTPWrite,
		IdleTimeout:  cfg.Server.Timeouts.HTTPIdle,
	}
}

func (s *Server) startServer(srv *http.Server, errChan chan<- error) {
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.FromContext(s.ctx).Error("HTTP server failed", "error", err)
		errChan <- fmt.Errorf("http server failed: %w", err)
	}
}

func (s *Server) handleGracefulShutdown(srv *http.Server, errChan <-chan error) error {
	log := logger.FromContext(s.ctx)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case <-quit:
		log.Debug("Received shutdown signal, initiating graceful shutdown")
	case <-s.shutdownChan:
		log.Debug("Received programmatic shutdown signal, initiating graceful shutdown")
	case err := <-errChan:
		if err != nil {
			log.Error("Server reported failure, shutting down", "error", err)
			s.cleanup()
			s.cancel()
			return err
		}
		log.Debug("HTTP server closed, proceeding with shutdown")
	}
	s.cleanup()
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(
		context.WithoutCancel(s.ctx),
		config.FromContext(s.ctx).Server.Timeouts.ServerShutdown,
	)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// Shutdown requests a graceful shutdown from outside the signal handler
// (used by tests and by cmd/hookflow's migrate-then-serve flow).
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		select {
		case s.shutdownChan <- struct{}{}:
		default:
		}
	})
}

// RegisterCleanup queues fn to run once, during shutdown, before the HTTP
// listener is closed (scheduler.Stop, postgres pool Close, and so on).
func (s *Server) RegisterCleanup(fn func()) {
	if fn == nil {
		return
	}
	s.cleanupMu.Lock()
	s.extraCleanups = append(s.extraCleanups, fn)
	s.cleanupMu.Unlock()
}

func (s *Server) cleanup() {
	s.cleanupMu.Lock()
	fns := s.extraCleanups
	s.extraCleanups = nil
	s.cleanupMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
