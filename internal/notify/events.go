package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	colorCyan  = 0x06b6d4
	colorBlue  = 0x3b82f6
	colorGreen = 0x10b981
	colorRed   = 0xef4444
	colorAmber = 0xf59e0b

	footerContracts = "Onyx Services Contract Manager"
	footerDispatch  = "Onyx Services Dispatch"

	// Discord rejects embed field values longer than this.
	maxFieldValue = 1024
)

// Event is something worth posting to the Discord webhook.
type Event interface {
	Kind() string
	Embed(siteURL string, now time.Time) *discordgo.MessageEmbed
}

type ContractCreated struct {
	Title        string
	Type         string
	CreatedBy    string
	Location     string
	TargetPayout float64
	Description  string
}

func (ContractCreated) Kind() string { return "contract_created" }

func (e ContractCreated) Embed(siteURL string, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "📜 New Contract Posted",
		Color:       colorBlue,
		Description: fmt.Sprintf("[View Contracts](%s/contracts)", siteURL),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Contract Title", Value: e.Title},
			{Name: "Type", Value: strings.ToUpper(strings.ReplaceAll(e.Type, "_", " ")), Inline: true},
			{Name: "Target Payout", Value: FormatUEC(e.TargetPayout) + " UEC", Inline: true},
			{Name: "Posted By", Value: e.CreatedBy},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerContracts},
	}
	if e.Location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Location", Value: e.Location})
	}
	if e.Description != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Description", Value: truncate(e.Description, maxFieldValue)})
	}
	return embed
}

type ParticipantAction string

const (
	ParticipantJoined ParticipantAction = "joined"
	ParticipantAdded  ParticipantAction = "added"
)

type ParticipantUpdate struct {
	ContractTitle   string
	ParticipantName string
	ParticipantRole string
	Action          ParticipantAction
	AddedBy         string
}

func (ParticipantUpdate) Kind() string { return "participant_update" }

func (e ParticipantUpdate) Embed(siteURL string, now time.Time) *discordgo.MessageEmbed {
	action := "was added to"
	if e.Action == ParticipantJoined {
		action = "joined"
	}
	by := ""
	if e.AddedBy != "" {
		by = " by " + e.AddedBy
	}
	return &discordgo.MessageEmbed{
		Title:       "👤 Contract Participant Update",
		Color:       colorGreen,
		Description: fmt.Sprintf("[View Contracts](%s/contracts)", siteURL),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Contract", Value: e.ContractTitle},
			{Name: "Update", Value: fmt.Sprintf("**%s** %s the contract as **%s**%s", e.ParticipantName, action, e.ParticipantRole, by)},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerContracts},
	}
}

type StatusChanged struct {
	ContractTitle string
	OldStatus     string
	NewStatus     string
	ChangedBy     string
}

func (StatusChanged) Kind() string { return "status_changed" }

func (e StatusChanged) Embed(siteURL string, now time.Time) *discordgo.MessageEmbed {
	emoji, color := "❌", colorRed
	switch e.NewStatus {
	case "active":
		emoji, color = "▶️", colorCyan
	case "completed":
		emoji, color = "✅", colorGreen
	}
	return &discordgo.MessageEmbed{
		Title:       emoji + " Contract Status Changed",
		Color:       color,
		Description: fmt.Sprintf("[View Contracts](%s/contracts)", siteURL),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Contract", Value: e.ContractTitle},
			{Name: "Status Change", Value: fmt.Sprintf("**%s** → **%s**", strings.ToUpper(e.OldStatus), strings.ToUpper(e.NewStatus)), Inline: true},
			{Name: "Changed By", Value: e.ChangedBy, Inline: true},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerContracts},
	}
}

// ShareLine is one participant row of a SharesRecalculated embed.
type ShareLine struct {
	Name            string
	SharePercentage float64
	Payout          float64
	Manual          bool
}

type SharesRecalculated struct {
	ContractTitle string
	Shares        []ShareLine
}

func (SharesRecalculated) Kind() string { return "shares_recalculated" }

func (e SharesRecalculated) Embed(siteURL string, now time.Time) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, s := range e.Shares {
		mark := ""
		if s.Manual {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s: %.1f%%%s (%s UEC)\n", s.Name, s.SharePercentage, mark, FormatUEC(s.Payout))
	}
	return &discordgo.MessageEmbed{
		Title:       "📊 Contract Shares Updated",
		Color:       colorAmber,
		Description: fmt.Sprintf("[View Contracts](%s/contracts)", siteURL),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Contract", Value: e.ContractTitle},
			{Name: "Shares", Value: truncate(strings.TrimSpace(b.String()), maxFieldValue)},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: footerContracts},
	}
}

type RoleAssigned struct {
	Username    string
	Role        string
	Verified    bool
	DiscordRole string
}

func (RoleAssigned) Kind() string { return "role_assigned" }

func (e RoleAssigned) Embed(siteURL string, now time.Time) *discordgo.MessageEmbed {
	verified := "No"
	if e.Verified {
		verified = "Yes"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: e.Username},
		{Name: "System Role", Value: strings.ToUpper(e.Role), Inline: true},
		{Name: "Verified", Value: verified, Inline: true},
	}
	if e.DiscordRole != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Discord Role", Value: e.DiscordRole, Inline: true})
	}
	return &discordgo.MessageEmbed{
		Title:       "🛡️ Role Updated",
		Color:       colorCyan,
		Description: fmt.Sprintf("[View Directory](%s/users)", siteURL),
		Fields:      fields,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: footerDispatch},
	}
}

var printer = message.NewPrinter(language.English)

// FormatUEC groups thousands and shows cents only when there are any.
func FormatUEC(amount float64) string {
	if amount == math.Trunc(amount) {
		return printer.Sprintf("%d", int64(amount))
	}
	return printer.Sprintf("%.2f", amount)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
