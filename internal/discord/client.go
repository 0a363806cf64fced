// Package discord reads guild membership through the Discord REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ErrNotGuildMember means the user is not in the configured guild.
var ErrNotGuildMember = errors.New("user is not a member of the required Discord server")

// memberPageSize is the largest page the members endpoint returns.
const memberPageSize = 1000

type Member struct {
	UserID   string
	Username string
	Nick     string
	Roles    []string
}

// DisplayName prefers the guild nickname.
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.Username
}

// restSession is the part of *discordgo.Session the client needs.
type restSession interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

type Client struct {
	session restSession
	guildID string
}

// New returns a client authenticated with a bot token. No gateway connection is opened.
func New(token, guildID string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewWithSession(session, guildID), nil
}

// NewWithSession reuses an existing session, e.g. the bot's.
func NewWithSession(session restSession, guildID string) *Client {
	return &Client{session: session, guildID: guildID}
}

// Member fetches one guild member.
func (c *Client) Member(ctx context.Context, userID string) (*Member, error) {
	m, err := c.session.GuildMember(c.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, ErrNotGuildMember
		}
		return nil, fmt.Errorf("failed to fetch guild member info: %w", err)
	}
	return convert(m), nil
}

// Members pages through every member of the guild.
func (c *Client) Members(ctx context.Context) ([]*Member, error) {
	var out []*Member
	after := ""
	for {
		page, err := c.session.GuildMembers(c.guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			if isStatus(err, http.StatusForbidden) {
				return nil, fmt.Errorf("discord returned 403 listing guild members; the bot needs the Server Members intent and must be in the guild: %w", err)
			}
			return nil, fmt.Errorf("failed to fetch guild members: %w", err)
		}
		for _, m := range page {
			out = append(out, convert(m))
		}
		if len(page) < memberPageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func convert(m *discordgo.Member) *Member {
	out := &Member{Nick: m.Nick, Roles: m.Roles}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
	}
	return out
}

// FromMember converts a gateway member payload.
func FromMember(m *discordgo.Member) *Member {
	return convert(m)
}

func isStatus(err error, status int) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == status
}
