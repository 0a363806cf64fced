package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/rs/zerolog"
)

type GuildSyncer interface {
	SyncGuild(ctx context.Context) (*rolesync.Report, error)
}

// UserLookup finds the stored account behind a Discord user.
type UserLookup interface {
	GetUserByDiscordID(ctx context.Context, discordID string) (*db.User, error)
}

const syncForbidden = "Only a ceo, administrator or dispatcher can run a member sync."

// maxReportErrors keeps the reply under Discord's message limit.
const maxReportErrors = 10

// HandleSync runs a full member sync for managers. Discord permissions on the
// command are guild-editable, so the stored role is checked as well. The reply
// is deferred since a sync can outlast the three second interaction deadline.
func HandleSync(ctx context.Context, s Session, i *discordgo.InteractionCreate, users UserLookup, syncer GuildSyncer, log zerolog.Logger) {
	u, err := users.GetUserByDiscordID(ctx, invokerID(i))
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondEphemeral(s, i, log, syncForbidden)
		return
	case err != nil:
		log.Error().Err(err).Str("discord_id", invokerID(i)).Msg("failed to look up sync invoker")
		respondEphemeral(s, i, log, "Could not check your role, try again later.")
		return
	case !u.IsActive || !u.Role.CanManage():
		log.Warn().Str("discord_id", u.DiscordID).Str("role", string(u.Role)).Msg("sync refused")
		respondEphemeral(s, i, log, syncForbidden)
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to defer sync response")
		return
	}

	var content string
	report, err := syncer.SyncGuild(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sync command failed")
		content = "Sync failed: " + err.Error()
	} else {
		content = FormatReport(report)
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		log.Error().Err(err).Msg("failed to edit sync response")
	}
}

func FormatReport(r *rolesync.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synced %d of %d members: %d updated, %d created.", r.Synced, r.Total, r.Updated, r.Created)
	if len(r.Errors) == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "\n%d errors:", len(r.Errors))
	for i, e := range r.Errors {
		if i == maxReportErrors {
			fmt.Fprintf(&b, "\n...and %d more", len(r.Errors)-maxReportErrors)
			break
		}
		b.WriteString("\n- " + e)
	}
	return b.String()
}
