// Package deskapi serves intake form sessions over HTTP for a front end.
package deskapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/benchdesk/internal/backend"
	"go.uber.org/zap"
)

// TechnicianSource lists technicians for the assignment dropdown.
// Technicians loads the list if needed; Get and Updated read what was loaded.
type TechnicianSource interface {
	Technicians(ctx context.Context) ([]backend.Technician, error)
	Get(id backend.ID) (backend.Technician, bool)
	Updated() time.Time
}

// StartOpts holds configuration for the intake API server.
type StartOpts struct {
	Registry    *Registry
	Technicians TechnicianSource
	Port        int
	Out         io.Writer
	Logger      *zap.Logger
}

// Start launches the intake API server. It blocks until ctx is cancelled,
// then shuts down gracefully and closes all sessions.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Registry == nil {
		return fmt.Errorf("deskapi: registry is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Intake API running at http://localhost:%d\n", opts.Port)
	}

	err := srv.ListenAndServe()
	opts.Registry.CloseAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("deskapi: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router for the intake API.
func NewRouter(opts StartOpts) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &handlers{reg: opts.Registry, techs: opts.Technicians, log: log}
	registerRoutes(router, h)
	return router
}

// requestLogger logs each request at debug level.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
