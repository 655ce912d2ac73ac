// Package dashboard serves the Stopyard JSON API and change stream.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/zulandar/stopyard/internal/planner"
	"github.com/zulandar/stopyard/internal/sap"
	"gorm.io/gorm"
)

const (
	heartbeatInterval = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB           *gorm.DB
	Host         string
	Port         int
	Board        *planner.Board   // created and refreshed when nil
	SAP          *sap.Client      // nil disables the SAP routes
	Location     *time.Location   // year boundary for generation; defaults to UTC
	PollInterval time.Duration    // change-feed poll interval for SSE
	Logger       *log.Logger      // defaults to log.Default()
	Now          func() time.Time // defaults to time.Now
	Out          io.Writer
}

// Server holds the dependencies shared by the handlers.
type Server struct {
	db        *gorm.DB
	board     *planner.Board
	sap       *sap.Client
	loc       *time.Location
	poll      time.Duration
	heartbeat time.Duration
	logger    *log.Logger
	now       func() time.Time
}

// New validates opts and builds a Server. A missing board is created and
// loaded from the database.
func New(ctx context.Context, opts StartOpts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("dashboard: db is required")
	}
	s := &Server{
		db:        opts.DB,
		board:     opts.Board,
		sap:       opts.SAP,
		loc:       opts.Location,
		poll:      opts.PollInterval,
		heartbeat: heartbeatInterval,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.board == nil {
		s.board = planner.NewBoard(planner.Options{Location: s.loc, Now: s.now})
		if err := s.board.Refresh(ctx, s.db); err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}
	return s, nil
}

// Handler returns the gin router with every route registered.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))
	s.registerRoutes(router)
	return router
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	gin.SetMode(gin.ReleaseMode)
	s, err := New(ctx, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", "addr", addr)
	if opts.Out != nil {
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		fmt.Fprintf(opts.Out, "Dashboard running at http://%s:%d\n", host, opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// requestLogger logs each request at debug level.
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
