package bot

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/commands"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/rolesync"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info().Str("user", event.User.Username).Msg("connected to Discord")

	if err := b.registerGuildCommands(s, b.guildID); err != nil {
		b.log.Error().Err(err).Str("guild_id", b.guildID).Msg("failed to register commands")
	}
}

func (b *Bot) registerGuildCommands(s *discordgo.Session, guildID string) error {
	cmds := commands.GetCommands()
	// Replaces whatever was registered before
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, cmds)
	if err != nil {
		return err
	}

	b.log.Info().Str("guild_id", guildID).Int("count", len(cmds)).Msg("registered application commands")
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	b.handleApplicationCommand(s, i)
}

func (b *Bot) handleApplicationCommand(s commands.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if i.GuildID != b.guildID {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "verify":
		commands.HandleVerify(ctx, s, i, b.roleSync, b.log)
	case "shares":
		commands.HandleShares(ctx, s, i, b.contracts, b.log)
	case "sync":
		commands.HandleSync(ctx, s, i, b.users, b.roleSync, b.log)
	}
}

// onGuildMemberUpdate re-resolves a member whose roles changed in Discord.
func (b *Bot) onGuildMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	b.applyMemberUpdate(m)
}

func (b *Bot) applyMemberUpdate(m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.GuildID != b.guildID || m.User == nil || m.User.Bot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	res, err := b.roleSync.ApplyMember(ctx, discord.FromMember(m.Member))
	switch {
	case errors.Is(err, rolesync.ErrNoMappings):
		return
	case err != nil:
		b.log.Error().Err(err).Str("discord_id", m.User.ID).Msg("failed to apply member update")
	case res != nil && res.Changed:
		b.log.Debug().Str("discord_id", m.User.ID).Str("role", string(res.AssignedRole)).Msg("member role updated from gateway")
	}
}
