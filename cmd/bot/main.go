// Package main is the entry point for the cricket prediction bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cricket-prediction-bot/internal/bot"
	"cricket-prediction-bot/internal/config"
	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/pkg/db"
	"cricket-prediction-bot/internal/pkg/lock"
	"cricket-prediction-bot/internal/repository"
	"cricket-prediction-bot/internal/server"
	"cricket-prediction-bot/internal/service"
	"cricket-prediction-bot/internal/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	log.Info().Msg("Database schema is up to date")

	st := repository.NewStore(dbPool.Pool)

	generator, err := cricket.NewGenerator(nil, cfg.Game.OutcomeWeights)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create outcome generator")
	}

	// Initialize services
	sessions := session.NewRegistry(cfg.Game.DefaultStake)
	userLock := lock.NewUserLock()
	settler := service.NewSettler(st, sessions, generator, userLock, cfg.Game.SettleRetries)

	accountService := service.NewAccountService(st, cfg.Game.InitialCoins)
	gameService := service.NewGameService(st, sessions, settler)
	matchService := service.NewMatchService(st, sessions, cfg.Game.DefaultOvers)
	leaderboardService := service.NewLeaderboardService(st)

	if live, err := matchService.Live(ctx); err == nil {
		log.Info().
			Int64("match_id", live.ID).
			Str("name", live.Name).
			Str("ball", live.BallLabel()).
			Msg("Resuming live match")
	}

	// Start ops server
	var opsServer *server.Server
	if cfg.Metrics.Enabled {
		opsServer = server.New(cfg.Metrics.Addr, dbPool)
		opsServer.Start()
	}

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:             cfg,
		AccountService:     accountService,
		GameService:        gameService,
		MatchService:       matchService,
		LeaderboardService: leaderboardService,
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start(ctx)
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	cancel()

	if opsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop ops server")
		}
	}

	log.Info().Msg("Bot stopped gracefully")
}
