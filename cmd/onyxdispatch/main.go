package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/onyxservices/dispatch/internal/api"
	"github.com/onyxservices/dispatch/internal/bot"
	"github.com/onyxservices/dispatch/internal/config"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/logger"
	"github.com/onyxservices/dispatch/internal/notify"
	"github.com/onyxservices/dispatch/internal/roles"
	"github.com/onyxservices/dispatch/internal/rolesync"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	fallback, ok := roles.ParseSystemRole(cfg.DefaultRole)
	if !ok {
		log.Fatal().Str("role", cfg.DefaultRole).Msg("DEFAULT_ROLE is not a system role")
	}

	// Connect to database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	notifier, err := notify.New(cfg.DiscordWebhookURL, cfg.SiteURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DISCORD_WEBHOOK_URL")
	}
	defer notifier.Wait()

	discordClient, err := discord.New(cfg.DiscordToken, cfg.DiscordGuildID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord client")
	}

	contractSvc := contracts.NewService(database, notifier, log)
	roleSync := rolesync.NewService(database, discordClient, notifier, log, rolesync.WithFallback(fallback))

	// Initialize Discord bot
	discordBot, err := bot.New(cfg.DiscordToken, cfg.DiscordGuildID, roleSync, contractSvc, database, cfg.RoleSyncInterval, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create discord bot")
	}
	if err := discordBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start discord bot")
	}
	defer discordBot.Stop()

	apiServer := api.New(cfg, database, contractSvc, roleSync, log)
	if err := apiServer.Start(ctx); err != nil {
		log.Error().Err(err).Msg("API server error")
	}

	log.Info().Msg("shutting down")
}
