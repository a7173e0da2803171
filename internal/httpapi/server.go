package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/memoryengine/memoryengine/internal/app"
	"github.com/memoryengine/memoryengine/internal/logging"
)

// Server is the thin HTTP contract adapter over one *app.App.
type Server struct {
	router     *gin.Engine
	app        *app.App
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer builds the gin router and registers every route.
func NewServer(a *app.App) *Server {
	log := logging.GetLogger("httpapi")

	if a.Config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if a.Config.RestAPI.CORS {
		router.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:   []string{"Content-Length", "Retry-After"},
			MaxAge:          12 * time.Hour,
		}))
	}

	router.Use(RateLimitMiddleware(a.RateLimit))
	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	s := &Server{router: router, app: a, log: log}
	s.setupRoutes()
	return s
}

// setupRoutes registers the memory-engine-facing surface named in
// SPEC_FULL.md §6: bank/memory/recall/consolidate/async-operation routes.
// Chat and agent transports are out of scope (§4.12).
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.health)

		v1.POST("/banks", s.createBank)
		v1.GET("/banks", s.listBanks)
		v1.DELETE("/banks/:name", s.deleteBank)

		v1.POST("/banks/:bank/memories", s.remember)
		v1.GET("/banks/:bank/memories", s.listMemories)
		v1.GET("/memories/:id", s.getMemory)
		v1.DELETE("/memories/:id", s.forget)

		v1.POST("/banks/:bank/recall", s.recall)

		v1.POST("/banks/:bank/consolidate", s.consolidate)

		v1.GET("/operations/:id", s.operationStatus)
		v1.POST("/operations/:id/cancel", s.operationCancel)
		v1.GET("/banks/:bank/operations", s.operationList)

		v1.POST("/banks/:bank/models", s.createModel)
		v1.POST("/models/:id/refresh", s.refreshModel)
		v1.GET("/banks/:bank/models", s.listModels)
	}
}

func (s *Server) health(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"status": "ok"})
}

// Start runs the server until it errors.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.app.Config.RestAPI.Host, s.app.Config.RestAPI.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	s.log.Info("starting http contract adapter", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext runs the server until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf("%s:%d", s.app.Config.RestAPI.Host, s.app.Config.RestAPI.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting http contract adapter", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http contract adapter: %w", err)
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("stopping http contract adapter")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
