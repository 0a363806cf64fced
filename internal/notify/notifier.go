// Package notify posts best-effort Discord webhook notifications.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/metrics"
	"github.com/rs/zerolog"
)

const defaultTimeout = 10 * time.Second

type webhookSession interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier delivers events to one webhook. A nil or unconfigured Notifier
// silently drops events.
type Notifier struct {
	session   webhookSession
	webhookID string
	token     string
	siteURL   string
	log       zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
	wg        sync.WaitGroup
}

// New builds a Notifier for webhookURL. An empty URL gives a Notifier that drops everything.
func New(webhookURL, siteURL string, log zerolog.Logger) (*Notifier, error) {
	n := &Notifier{
		siteURL: strings.TrimRight(siteURL, "/"),
		log:     log.With().Str("component", "notify").Logger(),
		timeout: defaultTimeout,
		now:     time.Now,
	}
	if webhookURL == "" {
		return n, nil
	}
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	n.session, n.webhookID, n.token = session, id, token
	return n, nil
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url: expected .../webhooks/{id}/{token}")
}

func (n *Notifier) enabled() bool {
	return n != nil && n.session != nil
}

// Send posts ev and waits for Discord's answer.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	if !n.enabled() {
		return nil
	}
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{ev.Embed(n.siteURL, n.now())},
	}
	if _, err := n.session.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		metrics.Notifications.WithLabelValues(ev.Kind(), "failed").Inc()
		return fmt.Errorf("discord webhook failed: %w", err)
	}
	metrics.Notifications.WithLabelValues(ev.Kind(), "sent").Inc()
	return nil
}

// Notify sends ev in the background. Failures are logged and never reach the caller.
func (n *Notifier) Notify(ev Event) {
	if !n.enabled() {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.Send(ctx, ev); err != nil {
			n.log.Warn().Err(err).Str("kind", ev.Kind()).Msg("failed to send Discord notification")
		}
	}()
}

// Wait blocks until in-flight notifications are done.
func (n *Notifier) Wait() {
	if n != nil {
		n.wg.Wait()
	}
}
