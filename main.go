package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ark-trading-engine/config"
	"ark-trading-engine/internal/api"
	"ark-trading-engine/internal/auth"
	"ark-trading-engine/internal/cache"
	"ark-trading-engine/internal/database"
	"ark-trading-engine/internal/events"
	"ark-trading-engine/internal/execution"
	"ark-trading-engine/internal/logging"
	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/pipeline"
	"ark-trading-engine/internal/planner"
	"ark-trading-engine/internal/policy"
	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/scoring"
	"ark-trading-engine/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{Level: "error"}, nil)
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
	}, nil)
	logger.Info().Msg("A.R.K. trading engine starting")

	ctx := context.Background()

	// Vault for secrets, local fallback when disabled
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create vault client")
	}
	if vaultClient.IsEnabled() {
		if err := vaultClient.Health(ctx); err != nil {
			logger.Warn().Err(err).Msg("Vault health check failed; falling back to config secrets")
		}
	}

	eventBus := events.NewEventBus()

	// Pattern library
	library, err := patterns.LoadLibrary(cfg.EngineConfig.PatternDir, logging.WithComponent(logger, "patterns"))
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.EngineConfig.PatternDir).Msg("Failed to load pattern library")
	}
	logger.Info().Int("patterns", library.Len()).Msg("Pattern library loaded")

	// Rule evaluator shared by the pattern engine and the policy gate
	evaluator := rules.NewEvaluator()
	evaluator.UnknownOperators = rules.ParsePolicy(cfg.EngineConfig.UnknownOperatorPolicy)

	// Policy gate, fail-open when no ruleset is configured
	var ruleset *policy.RuleSet
	if cfg.EngineConfig.PolicyPath != "" {
		ruleset, err = policy.LoadRuleSet(cfg.EngineConfig.PolicyPath, logging.WithComponent(logger, "policy"))
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.EngineConfig.PolicyPath).Msg("Failed to load policy ruleset")
		}
	}
	validator := policy.NewValidator(ruleset, evaluator, logging.WithComponent(logger, "policy"))

	builder := planner.NewBuilder(planner.Config{
		AccountSize:        cfg.AccountConfig.Size,
		MaxRiskPerTrade:    cfg.AccountConfig.MaxRiskPerTrade,
		DefaultPositionMax: cfg.AccountConfig.MaxPositionSize,
	}, logging.WithComponent(logger, "planner"))

	executor := execution.NewDryRunExecutor(logging.WithComponent(logger, "execution"))

	pipe := pipeline.New(
		pipeline.Config{MinConfidence: cfg.EngineConfig.MinConfidence},
		patterns.NewEngine(library, evaluator),
		scoring.NewTradeScorer(),
		validator,
		builder,
		executor,
		eventBus,
		logging.WithComponent(logger, "pipeline"),
	)

	// Optional persistence
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		dbCfg := database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: vaultClient.GetSecretOrDefault(ctx, vault.KeyDBPassword, cfg.DatabaseConfig.Password),
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}
		db, err = database.NewDB(dbCfg, logging.WithComponent(logger, "database"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Database migrations failed")
		}
	}

	// Optional Redis cache
	var signalCache *cache.SignalCache
	if cfg.RedisConfig.Enabled {
		signalCache, err = cache.NewSignalCache(cfg.RedisConfig, logging.WithComponent(logger, "cache"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create signal cache")
		}
		defer signalCache.Close()
	}

	// Optional API auth
	var jwtManager *auth.JWTManager
	var credentials api.Credentials
	if cfg.AuthConfig.Enabled {
		secret := vaultClient.GetSecretOrDefault(ctx, vault.KeyJWTSecret, cfg.AuthConfig.JWTSecret)
		if secret == "" {
			logger.Fatal().Msg("Auth enabled but no JWT secret available")
		}
		jwtManager = auth.NewJWTManager(secret, cfg.AuthConfig.AccessTokenDuration)

		passwords := auth.NewPasswordManager(auth.DefaultBcryptCost, cfg.AuthConfig.MinPasswordLength)
		password := os.Getenv("ARK_OPERATOR_PASSWORD")
		if password == "" {
			logger.Fatal().Msg("Auth enabled but ARK_OPERATOR_PASSWORD is not set")
		}
		hash, err := passwords.HashPassword(password)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to hash operator password")
		}
		credentials = api.Credentials{
			Username:     getEnvOrDefault("ARK_OPERATOR_USERNAME", "operator"),
			PasswordHash: hash,
		}
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ReadTimeout:    cfg.ServerConfig.ReadTimeout,
		WriteTimeout:   cfg.ServerConfig.WriteTimeout,
		ProductionMode: true,
	}, pipe, library, db, signalCache, eventBus, jwtManager, credentials,
		logging.WithComponent(logger, "api"))

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	eventBus.Publish(events.Event{
		Type: events.EventEngineStarted,
		Data: map[string]interface{}{
			"patterns": library.Len(),
			"dry_run":  cfg.EngineConfig.DryRun,
		},
	})

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")

	eventBus.Publish(events.Event{
		Type: events.EventEngineStopped,
		Data: map[string]interface{}{},
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	logger.Info().Msg("Shutdown complete")
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
