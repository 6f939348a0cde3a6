package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fincoach/internal/config"
	"fincoach/internal/middleware"
	connectionhandler "fincoach/internal/module/connection/handler"
	goalhandler "fincoach/internal/module/goal/handler"
	streakhandler "fincoach/internal/module/streak/handler"
	transactionhandler "fincoach/internal/module/transaction/handler"
	userrepo "fincoach/internal/module/user/repository"
)

// NewRouter assembles the gin engine with all module routes behind auth.
func NewRouter(
	cfg *config.Config,
	users userrepo.UserRepository,
	connections *connectionhandler.ConnectionHandler,
	goals *goalhandler.GoalHandler,
	transactions *transactionhandler.TransactionHandler,
	streaks *streakhandler.StreakHandler,
	logger *zap.Logger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg, users))
	connections.Register(api)
	goals.Register(api)
	transactions.Register(api)
	streaks.Register(api)

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// Server wraps the http.Server lifecycle.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func New(cfg *config.Config, router *gin.Engine, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: router,
		},
		logger: logger,
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
