package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/rs/zerolog"
)

type Verifier interface {
	VerifyMember(ctx context.Context, discordID string) (*rolesync.Result, error)
}

func HandleVerify(ctx context.Context, s Session, i *discordgo.InteractionCreate, v Verifier, log zerolog.Logger) {
	userID := invokerID(i)
	res, err := v.VerifyMember(ctx, userID)
	switch {
	case errors.Is(err, discord.ErrNotGuildMember):
		respondEphemeral(s, i, log, "You are not a member of the Onyx Services server.")
	case errors.Is(err, rolesync.ErrNoMappings):
		respondEphemeral(s, i, log, "No role mappings are configured yet. Ask an administrator to set them up.")
	case err != nil:
		log.Error().Err(err).Str("discord_id", userID).Msg("verify command failed")
		respondEphemeral(s, i, log, "Role verification failed. Please try again later.")
	default:
		respondEphemeral(s, i, log, FormatVerifyResult(res))
	}
}

func FormatVerifyResult(res *rolesync.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your dispatch role is **%s**", strings.ToUpper(string(res.AssignedRole)))
	if res.DiscordRole != "" {
		fmt.Fprintf(&b, " (from %s)", res.DiscordRole)
	}
	b.WriteString(".\n")
	if res.Verified {
		b.WriteString("Status: verified")
	} else {
		b.WriteString("Status: awaiting verification")
	}
	if !res.Changed {
		b.WriteString("\nNothing changed.")
	}
	return b.String()
}
