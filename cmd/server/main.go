package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"museflow/internal/config"
	"museflow/internal/db"
	"museflow/internal/feedback"
	"museflow/internal/handlers"
	mw "museflow/internal/middleware"
	"museflow/internal/services"
	"museflow/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.RunMigrations(conn); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	var sealer services.Sealer = services.Plaintext{}
	if cfg.Crypto.Enabled() {
		enc, idx, err := cfg.Crypto.Keys()
		if err != nil {
			return err
		}
		if sealer, err = services.NewEncryptionService(enc, idx); err != nil {
			return err
		}
	} else {
		logger.Warn("encryption at rest disabled; set ENCRYPTION_KEY and BLIND_INDEX_KEY")
	}
	st := store.New(conn, sealer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway, closeGateway, err := newGateway(ctx, cfg.Model)
	if err != nil {
		return err
	}
	defer closeGateway()
	if gateway == nil {
		logger.Warn("no model configured; feedback uses local templates", zap.String("provider", cfg.Model.Provider))
	}
	pipeline := feedback.NewPipeline(gateway,
		feedback.WithTimeout(cfg.Feedback.Timeout),
		feedback.WithLogger(logger.Named("feedback")),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(mw.RequestLogger(logger.Named("http")))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	secret := []byte(cfg.Auth.JWTSecret)
	authMW := mw.NewAuthMiddleware(secret, st, logger.Named("auth"))
	api := handlers.API{
		Auth:       handlers.NewAuthHandler(st, secret, cfg.Auth.TokenTTL, logger),
		Topics:     handlers.NewTopicHandler(st, logger),
		Sessions:   handlers.NewSessionHandler(st, st, logger),
		Feedback:   handlers.NewFeedbackHandler(st, pipeline, logger),
		Statistics: handlers.NewStatisticsHandler(st, loc, logger),
		Health:     handlers.NewHealthHandler(conn, pipeline.Configured(), cfg.Crypto.Enabled()),
	}
	api.Mount(r, authMW.RequireAuth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newGateway picks the model backend. It returns a nil gateway when the
// provider has no credentials.
func newGateway(ctx context.Context, c config.ModelConfig) (feedback.Gateway, func(), error) {
	noop := func() {}
	if !c.Configured() {
		return nil, noop, nil
	}
	switch c.Provider {
	case "gemini":
		g, err := feedback.NewGeminiClient(ctx, c.GeminiKey, c.GeminiModel, c.Temperature, c.MaxTokens)
		if err != nil {
			return nil, noop, fmt.Errorf("gemini: %w", err)
		}
		return g, func() { g.Close() }, nil
	default:
		return feedback.NewChatClient(feedback.ChatConfig{
			BaseURL:     c.BaseURL,
			APIKey:      c.APIKey,
			Model:       c.Model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			JSONMode:    c.JSONMode,
			MaxRetries:  c.MaxRetries,
		}), noop, nil
	}
}
