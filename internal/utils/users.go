package utils

import (
	"github.com/bwmarrin/discordgo"
)

// UserTag formats a user the way Discord shows them: name#discriminator for
// legacy accounts, the bare username for accounts migrated to unique names.
func UserTag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// InvokingUser returns whoever triggered the interaction.
// Guild interactions carry the user on Member, DMs carry it on User.
func InvokingUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i == nil || i.Interaction == nil {
		return nil
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
