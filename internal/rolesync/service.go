// Package rolesync keeps users' system roles in line with their Discord roles.
package rolesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/metrics"
	"github.com/onyxservices/dispatch/internal/notify"
	"github.com/onyxservices/dispatch/internal/roles"
	"github.com/rs/zerolog"
)

// ErrNoMappings means no Discord role mappings are configured, so nothing is changed.
var ErrNoMappings = errors.New("no role mappings configured")

type Store interface {
	RoleMappings(ctx context.Context) ([]roles.Mapping, error)
	GetUserByDiscordID(ctx context.Context, discordID string) (*db.User, error)
	CreateUser(ctx context.Context, discordID, username string, role roles.SystemRole, verified bool) (*db.User, error)
	UpdateUserRole(ctx context.Context, discordID, username string, role roles.SystemRole, verified bool) error
	TouchLogin(ctx context.Context, discordID string) error
}

type Members interface {
	Member(ctx context.Context, userID string) (*discord.Member, error)
	Members(ctx context.Context) ([]*discord.Member, error)
}

type Notifier interface {
	Notify(ev notify.Event)
}

type Service struct {
	store    Store
	members  Members
	notifier Notifier
	priority roles.Priority
	fallback roles.SystemRole
	log      zerolog.Logger
}

type Option func(*Service)

// WithPriority replaces roles.DefaultPriority.
func WithPriority(p roles.Priority) Option {
	return func(s *Service) { s.priority = p }
}

// WithFallback sets the role given to members without any mapped Discord role.
func WithFallback(r roles.SystemRole) Option {
	return func(s *Service) { s.fallback = r }
}

func NewService(store Store, members Members, notifier Notifier, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		members:  members,
		notifier: notifier,
		priority: roles.DefaultPriority,
		fallback: roles.Staff,
		log:      log.With().Str("component", "rolesync").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Result struct {
	DiscordID    string           `json:"discord_id"`
	AssignedRole roles.SystemRole `json:"assigned_role"`
	Verified     bool             `json:"verified"`
	DiscordRole  string           `json:"discord_role,omitempty"`
	MatchedRoles []string         `json:"matched_roles"`
	Created      bool             `json:"created"`
	Changed      bool             `json:"changed"`
}

// VerifyMember re-resolves one member's role from their current Discord roles.
func (s *Service) VerifyMember(ctx context.Context, discordID string) (*Result, error) {
	member, err := s.members.Member(ctx, discordID)
	if err != nil {
		return nil, err
	}
	mappings, err := s.store.RoleMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil, ErrNoMappings
	}

	res, err := s.apply(ctx, member, mappings, "verify", true)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// VerifyLogin checks guild membership for a user signing in and makes sure
// they have a user row with an up to date role.
func (s *Service) VerifyLogin(ctx context.Context, discordID, username string) (*db.User, error) {
	member, err := s.members.Member(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if member.Username == "" {
		member.Username = username
	}
	mappings, err := s.store.RoleMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role mappings: %w", err)
	}
	if _, err := s.apply(ctx, member, mappings, "login", true); err != nil {
		return nil, err
	}
	if err := s.store.TouchLogin(ctx, discordID); err != nil {
		s.log.Warn().Err(err).Str("discord_id", discordID).Msg("failed to record login")
	}
	return s.store.GetUserByDiscordID(ctx, discordID)
}

// ApplyMember re-resolves a member from a gateway update. Members without a
// user row are ignored.
func (s *Service) ApplyMember(ctx context.Context, member *discord.Member) (*Result, error) {
	mappings, err := s.store.RoleMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role mappings: %w", err)
	}
	if len(mappings) == 0 {
		return nil, ErrNoMappings
	}
	return s.apply(ctx, member, mappings, "member_update", false)
}

func (s *Service) resolve(member *discord.Member, mappings []roles.Mapping) (roles.Resolved, []roles.Mapping) {
	matched := roles.Match(mappings, member.Roles)
	return s.priority.ResolveOrDefault(matched, s.fallback), matched
}

func (s *Service) apply(ctx context.Context, member *discord.Member, mappings []roles.Mapping, source string, createMissing bool) (*Result, error) {
	resolved, matched := s.resolve(member, mappings)
	metrics.RoleResolutions.WithLabelValues(source, string(resolved.SystemRole)).Inc()

	res := &Result{
		DiscordID:    member.UserID,
		AssignedRole: resolved.SystemRole,
		Verified:     resolved.Verified,
		DiscordRole:  resolved.DiscordRoleName,
		MatchedRoles: roles.Names(matched),
	}

	existing, err := s.store.GetUserByDiscordID(ctx, member.UserID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		if !createMissing {
			return nil, nil
		}
		if _, err := s.store.CreateUser(ctx, member.UserID, member.DisplayName(), resolved.SystemRole, resolved.Verified); err != nil {
			return nil, fmt.Errorf("create user %s: %w", member.UserID, err)
		}
		res.Created, res.Changed = true, true
	case err != nil:
		return nil, fmt.Errorf("load user %s: %w", member.UserID, err)
	default:
		if existing.Role == resolved.SystemRole && existing.Verified == resolved.Verified {
			return res, nil
		}
		if err := s.store.UpdateUserRole(ctx, member.UserID, "", resolved.SystemRole, resolved.Verified); err != nil {
			return nil, fmt.Errorf("update user %s: %w", member.UserID, err)
		}
		res.Changed = true
	}

	s.log.Info().
		Str("discord_id", member.UserID).
		Str("role", string(resolved.SystemRole)).
		Bool("verified", resolved.Verified).
		Str("source", source).
		Msg("role assigned")
	s.notifier.Notify(notify.RoleAssigned{
		Username:    member.DisplayName(),
		Role:        string(resolved.SystemRole),
		Verified:    resolved.Verified,
		DiscordRole: resolved.DiscordRoleName,
	})
	return res, nil
}
