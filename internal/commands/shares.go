package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/notify"
	"github.com/rs/zerolog"
)

type SummaryReader interface {
	Summary(ctx context.Context, contractID string) (*contracts.Summary, error)
}

func HandleShares(ctx context.Context, s Session, i *discordgo.InteractionCreate, r SummaryReader, log zerolog.Logger) {
	id := strings.TrimSpace(optionString(i.ApplicationCommandData(), "contract"))
	if id == "" {
		respondEphemeral(s, i, log, "Please give a contract ID.")
		return
	}

	sum, err := r.Summary(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		respondEphemeral(s, i, log, fmt.Sprintf("Contract `%s` was not found.", id))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("contract_id", id).Msg("shares command failed")
		respondEphemeral(s, i, log, "Could not load the contract. Please try again later.")
		return
	}

	respond(s, i, log, &discordgo.InteractionResponseData{Content: FormatShares(sum)})
}

// FormatShares renders a contract's split as a fixed-width table.
func FormatShares(sum *contracts.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s) - target %s UEC\n", sum.Contract.Title, sum.Contract.Status, notify.FormatUEC(sum.Contract.TargetPayout))
	if len(sum.Participants) == 0 {
		b.WriteString("No participants yet.")
		return b.String()
	}

	width := len("Participant")
	for _, p := range sum.Participants {
		if n := len([]rune(p.Username)); n > width {
			width = n
		}
	}

	b.WriteString("```\n")
	fmt.Fprintf(&b, "%-*s  %8s  %s\n", width, "Participant", "Share", "Payout")
	for _, p := range sum.Participants {
		share := fmt.Sprintf("%.2f%%", p.SharePercentage)
		if p.ManualOverride {
			share += "*"
		}
		fmt.Fprintf(&b, "%-*s  %8s  %s UEC\n", width, p.Username, share, notify.FormatUEC(p.Payout))
	}
	b.WriteString("```")
	if !sum.Balanced {
		fmt.Fprintf(&b, "\nWarning: shares add up to %.2f%%, not 100%%.", sum.TotalShare)
	}
	for _, p := range sum.Participants {
		if p.ManualOverride {
			b.WriteString("\n* manually set")
			break
		}
	}
	return b.String()
}
