package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"DISCORD_TOKEN":         "bot-token",
		"DISCORD_GUILD_ID":      "1234",
		"DISCORD_CLIENT_ID":     "client",
		"DISCORD_CLIENT_SECRET": "secret",
		"DATABASE_URL":          "postgres://localhost/onyx",
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(requiredEnv()))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.WebBind)
	assert.Equal(t, "http://localhost:3000", cfg.SiteURL)
	assert.Equal(t, "staff", cfg.DefaultRole)
	assert.Equal(t, 30*time.Minute, cfg.RoleSyncInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.DiscordWebhookURL)
}

func TestLoad_Overrides(t *testing.T) {
	env := requiredEnv()
	env["DISCORD_REDIRECT_URI"] = "https://dispatch.example.com/api/auth/callback"
	env["ROLE_SYNC_INTERVAL"] = "0s"
	env["LOG_PRETTY"] = "true"

	cfg, err := load(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)
	assert.Equal(t, "https://dispatch.example.com", cfg.SiteURL)
	assert.Zero(t, cfg.RoleSyncInterval)
	assert.True(t, cfg.LogPretty)

	env["SITE_URL"] = "https://onyx.example.com"
	cfg, err = load(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)
	assert.Equal(t, "https://onyx.example.com", cfg.SiteURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	for key := range requiredEnv() {
		t.Run(key, func(t *testing.T) {
			env := requiredEnv()
			delete(env, key)
			_, err := load(context.Background(), envconfig.MapLookuper(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestExtractBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", extractBaseURL("not a url"))
	assert.Equal(t, "https://a.example:8443", extractBaseURL("https://a.example:8443/cb?x=1"))
}
