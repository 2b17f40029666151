package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftsync/pkg/db"
)

// Waker nudges the worker pool after a submission so fresh requests are
// picked up without waiting for the next poll tick.
type Waker interface {
	Wake()
}

// Pinger reports database liveness for the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API for submitting and inspecting shift requests
type Server struct {
	database     db.Database
	logger       *zap.Logger
	minBatchSize int
	waker        Waker
	pinger       Pinger

	engine *gin.Engine
	http   *http.Server
}

// New builds the API server with all routes registered
func New(database db.Database, logger *zap.Logger, minBatchSize int, waker Waker, pinger Pinger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		database:     database,
		logger:       logger,
		minBatchSize: minBatchSize,
		waker:        waker,
		pinger:       pinger,
		engine:       engine,
	}

	engine.GET("/healthz", s.handleHealthz)
	engine.POST("/book-shifts", s.handleBookShifts)
	engine.POST("/test-book", s.handleTestBook)
	engine.GET("/requests", s.handleListRequests)
	engine.GET("/requests/:id", s.handleGetRequest)
	engine.GET("/requests/:id/shifts", s.handleGetRequestShifts)

	return s
}

// Handler exposes the routing engine, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins serving on addr and blocks until the server stops.
// Returns nil after a clean Shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("HTTP API listening", zap.String("addr", addr))

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
