package commands

import "github.com/bwmarrin/discordgo"

// manageRoles gates /sync behind Discord's Manage Roles permission.
var manageRoles int64 = discordgo.PermissionManageRoles

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         "verify",
			Description:  "Re-check your Discord roles and update your dispatch role",
			DMPermission: boolPtr(false),
		},
		{
			Name:         "shares",
			Description:  "Show the payout split of a contract",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "contract",
					Description: "Contract ID",
					Required:    true,
				},
			},
		},
		{
			Name:                     "sync",
			Description:              "Sync every member's dispatch role from their Discord roles",
			DMPermission:             boolPtr(false),
			DefaultMemberPermissions: &manageRoles,
		},
	}
}
