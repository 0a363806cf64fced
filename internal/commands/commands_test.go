package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/roles"
	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	responses []*discordgo.InteractionResponse
	edits     []string
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, *edit.Content)
	return &discordgo.Message{}, nil
}

func (f *fakeSession) lastContent(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1].Data.Content
}

func interaction(name, userID string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "guild",
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
		Data:    discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

type verifierFunc func(ctx context.Context, discordID string) (*rolesync.Result, error)

func (f verifierFunc) VerifyMember(ctx context.Context, discordID string) (*rolesync.Result, error) {
	return f(ctx, discordID)
}

func TestGetCommands(t *testing.T) {
	names := map[string]*discordgo.ApplicationCommand{}
	for _, c := range GetCommands() {
		names[c.Name] = c
	}
	require.Contains(t, names, "verify")
	require.Contains(t, names, "shares")
	require.Contains(t, names, "sync")
	assert.True(t, names["shares"].Options[0].Required)
	assert.Equal(t, int64(discordgo.PermissionManageRoles), *names["sync"].DefaultMemberPermissions)
}

func TestHandleVerify(t *testing.T) {
	var got string
	v := verifierFunc(func(_ context.Context, id string) (*rolesync.Result, error) {
		got = id
		return &rolesync.Result{AssignedRole: roles.Dispatcher, Verified: true, DiscordRole: "Dispatch", Changed: true}, nil
	})
	s := &fakeSession{}

	HandleVerify(context.Background(), s, interaction("verify", "42"), v, zerolog.Nop())
	assert.Equal(t, "42", got)
	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, s.responses[0].Data.Flags)
	assert.Equal(t, "Your dispatch role is **DISPATCHER** (from Dispatch).\nStatus: verified", s.lastContent(t))
}

func TestHandleVerify_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{discord.ErrNotGuildMember, "not a member"},
		{rolesync.ErrNoMappings, "No role mappings"},
		{errors.New("boom"), "verification failed"},
	}
	for _, tt := range tests {
		s := &fakeSession{}
		v := verifierFunc(func(context.Context, string) (*rolesync.Result, error) { return nil, tt.err })
		HandleVerify(context.Background(), s, interaction("verify", "42"), v, zerolog.Nop())
		assert.Contains(t, s.lastContent(t), tt.want)
	}
}

func TestFormatVerifyResult_Fallback(t *testing.T) {
	got := FormatVerifyResult(&rolesync.Result{AssignedRole: roles.Staff})
	assert.Equal(t, "Your dispatch role is **STAFF**.\nStatus: awaiting verification\nNothing changed.", got)
}

type summaries map[string]*contracts.Summary

func (m summaries) Summary(_ context.Context, id string) (*contracts.Summary, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("contract %s: %w", id, db.ErrNotFound)
}

func testSummary() *contracts.Summary {
	return &contracts.Summary{
		Contract: db.Contract{ID: "c1", Title: "Quantanium run", Status: "active", TargetPayout: 1_000_000},
		Participants: []contracts.ParticipantShare{
			{Participant: db.Participant{Username: "nova", SharePercentage: 50, ManualOverride: true}, Payout: 500000},
			{Participant: db.Participant{Username: "rook", SharePercentage: 50.0 / 3}, Payout: 166666.67},
		},
		TotalShare: 50 + 50.0/3,
		Balanced:   false,
	}
}

func TestFormatShares(t *testing.T) {
	got := FormatShares(testSummary())

	assert.True(t, strings.HasPrefix(got, "**Quantanium run** (active) - target 1,000,000 UEC\n```\n"))
	assert.Contains(t, got, "nova          50.00%*  500,000 UEC")
	assert.Contains(t, got, "rook           16.67%  166,666.67 UEC")
	assert.Contains(t, got, "Warning: shares add up to 66.67%")
	assert.Contains(t, got, "* manually set")

	empty := FormatShares(&contracts.Summary{Contract: db.Contract{Title: "Empty", Status: "active"}, Balanced: true})
	assert.Equal(t, "**Empty** (active) - target 0 UEC\nNo participants yet.", empty)
}

func TestHandleShares(t *testing.T) {
	r := summaries{"c1": testSummary()}
	opt := func(v string) *discordgo.ApplicationCommandInteractionDataOption {
		return &discordgo.ApplicationCommandInteractionDataOption{Name: "contract", Type: discordgo.ApplicationCommandOptionString, Value: v}
	}

	s := &fakeSession{}
	HandleShares(context.Background(), s, interaction("shares", "1", opt("c1")), r, zerolog.Nop())
	assert.Contains(t, s.lastContent(t), "Quantanium run")
	assert.Zero(t, s.responses[0].Data.Flags)

	s = &fakeSession{}
	HandleShares(context.Background(), s, interaction("shares", "1", opt("nope")), r, zerolog.Nop())
	assert.Equal(t, "Contract `nope` was not found.", s.lastContent(t))
}

type syncerFunc func(ctx context.Context) (*rolesync.Report, error)

func (f syncerFunc) SyncGuild(ctx context.Context) (*rolesync.Report, error) { return f(ctx) }

type userLookupFunc func(ctx context.Context, discordID string) (*db.User, error)

func (f userLookupFunc) GetUserByDiscordID(ctx context.Context, discordID string) (*db.User, error) {
	return f(ctx, discordID)
}

func usersWithRole(role roles.SystemRole) userLookupFunc {
	return func(_ context.Context, id string) (*db.User, error) {
		return &db.User{ID: "u-" + id, DiscordID: id, Role: role, IsActive: true}, nil
	}
}

func TestHandleSync(t *testing.T) {
	s := &fakeSession{}
	syncer := syncerFunc(func(context.Context) (*rolesync.Report, error) {
		return &rolesync.Report{Total: 3, Synced: 3, Updated: 2, Created: 1}, nil
	})

	HandleSync(context.Background(), s, interaction("sync", "1"), usersWithRole(roles.Dispatcher), syncer, zerolog.Nop())
	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, s.responses[0].Type)
	assert.Equal(t, []string{"Synced 3 of 3 members: 2 updated, 1 created."}, s.edits)
}

func TestHandleSync_RequiresStoredManagerRole(t *testing.T) {
	tests := []struct {
		name  string
		users userLookupFunc
		reply string
	}{
		{name: "staff", users: usersWithRole(roles.Staff), reply: syncForbidden},
		{name: "unknown user", users: func(context.Context, string) (*db.User, error) {
			return nil, db.ErrNotFound
		}, reply: syncForbidden},
		{name: "disabled ceo", users: func(_ context.Context, id string) (*db.User, error) {
			return &db.User{DiscordID: id, Role: roles.CEO, IsActive: false}, nil
		}, reply: syncForbidden},
		{name: "lookup error", users: func(context.Context, string) (*db.User, error) {
			return nil, errors.New("db down")
		}, reply: "Could not check your role, try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{}
			synced := false
			syncer := syncerFunc(func(context.Context) (*rolesync.Report, error) {
				synced = true
				return &rolesync.Report{}, nil
			})

			HandleSync(context.Background(), s, interaction("sync", "42"), tt.users, syncer, zerolog.Nop())
			assert.False(t, synced)
			assert.Empty(t, s.edits)
			assert.Equal(t, tt.reply, s.lastContent(t))
			assert.Equal(t, discordgo.MessageFlagsEphemeral, s.responses[0].Data.Flags)
		})
	}
}

func TestFormatReport_TruncatesErrors(t *testing.T) {
	r := &rolesync.Report{Total: 15, Synced: 15}
	for i := 0; i < 12; i++ {
		r.Errors = append(r.Errors, fmt.Sprintf("err %d", i))
	}
	got := FormatReport(r)
	assert.Contains(t, got, "12 errors:")
	assert.Contains(t, got, "- err 9")
	assert.NotContains(t, got, "- err 10")
	assert.True(t, strings.HasSuffix(got, "...and 2 more"))
}
