// Package server is a reference implementation of the rankings API. It serves the
// processor rankings collection from a domain.ProcessorRepository and issues session
// tokens for the admin account.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rankdesk/rankdesk/domain"
	"github.com/rankdesk/rankdesk/listener"
	"go.uber.org/zap"
)

// CollectionPath is where the rankings collection is mounted.
const CollectionPath = "/api/phone/processor_rankings"

// shutdownTimeout bounds graceful shutdown once the serve context is done.
const shutdownTimeout = 5 * time.Second

type Server struct {
	repo   domain.ProcessorRepository
	logger *zap.Logger
	auth   *Auth
	engine *gin.Engine
}

// New builds the API server around repo.
func New(repo domain.ProcessorRepository, options ...func(*Server) error) (*Server, error) {
	if repo == nil {
		return nil, errors.New("processor repository is nil")
	}

	srv := &Server{
		repo:   repo,
		logger: zap.NewNop(),
	}
	for _, option := range options {
		if err := option(srv); err != nil {
			return nil, fmt.Errorf("applying option on server : %w", err)
		}
	}

	srv.engine = srv.routes()
	return srv, nil
}

// WithLogger sets the logger used for request and error logs.
func WithLogger(logger *zap.Logger) func(*Server) error {
	return func(srv *Server) error {
		if logger != nil {
			srv.logger = logger
		}
		return nil
	}
}

// WithAuth enables the login endpoint and requires a bearer token on mutating routes.
func WithAuth(auth *Auth) func(*Server) error {
	return func(srv *Server) error {
		if auth == nil {
			return errors.New("auth is nil")
		}
		srv.auth = auth
		return nil
	}
}

func (srv *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(srv.logger))

	api := engine.Group("/api")
	{
		api.POST("/auth/login", srv.login)

		rankings := api.Group("/phone/processor_rankings")
		rankings.GET("", srv.listProcessors)

		mutating := rankings.Group("")
		if srv.auth != nil {
			mutating.Use(srv.auth.Middleware())
		}
		mutating.POST("", srv.createProcessors)
		mutating.PUT("/:id", srv.updateProcessor)
		mutating.DELETE("/:id", srv.deleteProcessor)
	}
	return engine
}

// Handler returns the HTTP handler serving the API.
func (srv *Server) Handler() http.Handler {
	return srv.engine
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
// When tlsConfig is set, plain and TLS clients are both served on ln.
func (srv *Server) Serve(ctx context.Context, ln net.Listener, tlsConfig *tls.Config) error {
	resilient := listener.NewResilientListener(listener.NewDualListener(ln, tlsConfig), srv.logger)

	httpServer := &http.Server{
		Handler:           srv.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(srv.logger),
	}

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.Serve(resilient)
	}()
	srv.logger.Info("serving rankings api", zap.String("address", ln.Addr().String()), zap.Bool("tls", tlsConfig != nil))

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving api : %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api : %w", err)
	}
	if rejected := resilient.Rejected(); rejected > 0 {
		srv.logger.Info("api stopped", zap.Int64("rejected_connections", rejected))
	}
	return nil
}

// ListenAndServe listens on address and calls Serve.
func (srv *Server) ListenAndServe(ctx context.Context, address string, tlsConfig *tls.Config) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s : %w", address, err)
	}
	return srv.Serve(ctx, ln, tlsConfig)
}
