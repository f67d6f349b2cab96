// Package server exposes the paragraph corpus and the generated questions
// over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/pipeline"
	"github.com/fleecekm/fleeceqa/internal/store"
)

// Server serves the read API and on-demand generation.
type Server struct {
	store     *store.Store
	generator pipeline.Generator
	mode      pipeline.Mode
	logger    *zap.Logger

	// generation runs one paragraph at a time.
	genMu sync.Mutex
}

// New creates a Server. A nil generator disables the generation
// endpoint.
func New(s *store.Store, g pipeline.Generator, mode pipeline.Mode, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: s, generator: g, mode: mode, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		ok(c, gin.H{"message": "Welcome to the WikiText API!"})
	})

	raw := r.Group("/raw")
	raw.GET("/count", s.countParagraphs)
	raw.GET("/random", s.randomParagraphs)
	raw.GET("/rand-sample", s.randomParagraphs)
	raw.GET("/paragraphs/:id", s.getParagraph)
	raw.GET("/page", s.getPage)

	qa := r.Group("/qa")
	qa.GET("/questions", s.listQuestions)
	qa.GET("/questions/:id", s.getQuestion)
	qa.GET("/rejected", s.listRejected)
	qa.POST("/paragraphs/:id/questions", s.generateQuestions)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
