package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/commands"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/discord"
	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/rs/zerolog"
)

// RoleSync is what the bot needs from the role sync service.
type RoleSync interface {
	VerifyMember(ctx context.Context, discordID string) (*rolesync.Result, error)
	ApplyMember(ctx context.Context, member *discord.Member) (*rolesync.Result, error)
	SyncGuild(ctx context.Context) (*rolesync.Report, error)
}

type Contracts interface {
	Summary(ctx context.Context, contractID string) (*contracts.Summary, error)
}

// handlerTimeout bounds the work done for a single gateway event.
const handlerTimeout = 30 * time.Second

type Bot struct {
	session   *discordgo.Session
	guildID   string
	roleSync  RoleSync
	contracts Contracts
	users     commands.UserLookup
	sync      *syncWorker
	log       zerolog.Logger
}

func New(token, guildID string, roleSync RoleSync, contractSvc Contracts, users commands.UserLookup, syncInterval time.Duration, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		guildID:   guildID,
		roleSync:  roleSync,
		contracts: contractSvc,
		users:     users,
		log:       log.With().Str("component", "bot").Logger(),
	}
	if syncInterval > 0 {
		bot.sync = newSyncWorker(roleSync, syncInterval, bot.log)
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onInteractionCreate)
	session.AddHandler(bot.onGuildMemberUpdate)

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.sync.start()
	b.log.Info().Msg("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.sync.stop()
	return b.session.Close()
}
