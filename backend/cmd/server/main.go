package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpgengine/arbiter/backend/internal/auth"
	"github.com/rpgengine/arbiter/backend/internal/config"
	"github.com/rpgengine/arbiter/backend/internal/httpapi"
	"github.com/rpgengine/arbiter/backend/internal/pipeline"
	"github.com/rpgengine/arbiter/backend/pkg/logger"
)

// EngineSchemaVersion is the schemaVersion this build of the engine
// accepts without a major-mismatch rejection (spec §6.2).
const EngineSchemaVersion = "1.0.0"

func main() {
	log := initializeLogger()

	cfg := loadConfiguration(log)
	logConfiguration(log, cfg)
	warnDevelopmentMode(log, cfg)

	jwtManager := initializeAuthManager(cfg, log)
	pipe := initializePipeline(cfg, log)

	srv := &httpapi.Server{
		Pipeline:     pipe,
		AuthMW:       auth.NewMiddleware(jwtManager),
		StatePath:    cfg.Server.StatePath,
		EngineSchema: EngineSchemaVersion,
		Log:          log,
	}
	log.Info().Msg("HTTP handlers initialized")

	handler := srv.NewRouter()
	runServer(cfg, handler, log)

	log.Info().Msg("server shutdown complete")
}

// initializeLogger creates and configures the logger.
func initializeLogger() *logger.Logger {
	logConfig := logger.Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: getEnvOrDefault("LOG_PRETTY", "false") == "true",
	}

	log := logger.New(logConfig)
	log.Info().Msg("starting arbiter turn-pipeline server")
	return log
}

// loadConfiguration loads and validates the configuration, aborting
// startup with a structured report if required variables are missing
// (spec §6.6).
func loadConfiguration(log *logger.Logger) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		if report, ok := err.(*config.MissingVarReport); ok {
			log.Fatal().Strs("missing", report.Missing).Msg("missing required environment variables")
		}
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	return cfg
}

// logConfiguration logs the configuration details.
func logConfiguration(log *logger.Logger, cfg *config.Config) {
	log.Info().
		Str("server_port", cfg.Server.Port).
		Str("adapter_provider", cfg.Adapter.Provider).
		Str("bundle_dir", cfg.Server.BundleDir).
		Msg("configuration loaded")
}

// warnDevelopmentMode warns if running in development mode.
func warnDevelopmentMode(log *logger.Logger, cfg *config.Config) {
	if cfg.Server.Environment == "development" {
		log.Warn().Msg("running in development mode; set NODE_ENV=production for production use")
	}
}

// initializeAuthManager creates the JWT manager backing the role matrix.
func initializeAuthManager(cfg *config.Config, log *logger.Logger) *auth.JWTManager {
	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenDuration,
		cfg.Auth.RefreshTokenDuration,
	)
	log.Info().Msg("JWT manager initialized")
	return jwtManager
}

// initializePipeline wires the configured adapter and bundle directory
// into a turn pipeline.
func initializePipeline(cfg *config.Config, log *logger.Logger) *pipeline.Pipeline {
	adapter := pipeline.NewAdapter(pipeline.AdapterConfig{
		Provider: cfg.Adapter.Provider,
		APIKey:   cfg.Adapter.APIKey,
		Model:    cfg.Adapter.Model,
	})
	log.Info().Str("provider", cfg.Adapter.Provider).Msg("adapter initialized")
	return pipeline.New(adapter, cfg.Server.BundleDir, log)
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(cfg *config.Config, handler http.Handler, log *logger.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", srv.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
