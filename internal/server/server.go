// Package server wires the HTTP surface: auth, affirmation and quiz
// endpoints, alignment document management, health and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dumb-meh/Sui-Amor/config"
	"github.com/dumb-meh/Sui-Amor/internal/alignment"
	"github.com/dumb-meh/Sui-Amor/internal/cache"
	"github.com/dumb-meh/Sui-Amor/internal/logging"
	"github.com/dumb-meh/Sui-Amor/internal/orchestrator"
	"github.com/dumb-meh/Sui-Amor/internal/telemetry"
	"github.com/dumb-meh/Sui-Amor/provider"
)

// Run assembles all dependencies and serves HTTP until the listener fails.
func Run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	secret := []byte(cfg.Server.JWTSecret)

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	store, err := alignment.NewWithDSN(ctx, cfg.Storage.Postgres.DSN(), llm)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer sessions.Close()

	orch := orchestrator.New(sessions, llm, store, logger, orchestrator.Config{
		CacheTTL:        cfg.Cache.TTL(),
		RetrievalK:      cfg.Generation.RetrievalK,
		MaxRetries:      cfg.LLM.MaxRetries,
		BaseBackoff:     cfg.LLM.BaseBackoff,
		ProviderTimeout: cfg.LLM.Timeout,
		WaiterTimeout:   cfg.Generation.WaiterTimeout,
		HistorySize:     cfg.Generation.HistorySize,
	})

	e := newEcho(logger)

	if cfg.Telemetry.Enabled {
		telemetry.Register()
		e.GET("/metrics", echo.WrapHandler(telemetry.Handler()))
	}

	api := e.Group("/api")

	auth := &AuthHandler{Users: &UserStore{DB: store.DB}, Secret: secret}
	auth.Register(api.Group("/auth"))

	affirmations := &AffirmationsHandler{Generator: orch}
	affirmations.Register(api.Group("/affirmations"), secret)

	quiz := &QuizHandler{Generator: orch}
	quiz.Register(api.Group("/quiz"), secret)

	alignments := &AlignmentsHandler{Store: store}
	alignments.Register(api.Group("/alignments"), secret)

	logger.Info("server listening", zap.String("addr", cfg.Server.Address))
	return e.Start(cfg.Server.Address)
}

// newEcho builds the echo instance with recovery, CORS, a JSON error handler
// and the health endpoint. Split out so handler tests share the exact
// production middleware stack.
func newEcho(logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Warn("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err))
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
	}))
	// Make the service logger reachable from handler contexts.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), logger)))
			return next(c)
		}
	})
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"service": "sui-amor"})
	})
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}
