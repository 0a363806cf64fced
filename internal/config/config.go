package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Discord Bot
	DiscordToken   string `env:"DISCORD_TOKEN, required"`
	DiscordGuildID string `env:"DISCORD_GUILD_ID, required"`

	// Discord OAuth2
	DiscordClientID     string `env:"DISCORD_CLIENT_ID, required"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET, required"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI, default=http://localhost:3000/api/auth/callback"`

	// Notifications; empty disables them
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`

	// Database
	DatabaseURL string `env:"DATABASE_URL, required"`

	// Web Server
	WebBind string `env:"WEB_BIND, default=0.0.0.0:3000"`
	// SiteURL is linked from notifications. Derived from the redirect URI when unset.
	SiteURL string `env:"SITE_URL"`

	// Session
	JWTSecret string `env:"JWT_SECRET, default=dev-only-change-me"`

	// Roles
	DefaultRole      string        `env:"DEFAULT_ROLE, default=staff"`
	RoleSyncInterval time.Duration `env:"ROLE_SYNC_INTERVAL, default=30m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
}

func Load(ctx context.Context) (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.SiteURL == "" {
		cfg.SiteURL = extractBaseURL(cfg.DiscordRedirectURI)
	}
	if cfg.RoleSyncInterval < 0 {
		return nil, fmt.Errorf("ROLE_SYNC_INTERVAL must not be negative")
	}
	return &cfg, nil
}

// extractBaseURL turns "http://localhost:3000/api/auth/callback" into "http://localhost:3000".
func extractBaseURL(redirectURI string) string {
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
