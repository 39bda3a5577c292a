package rename

import (
	"errors"
	"fmt"

	"renamebot/internal/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	optionUser = "user"
	optionName = "name"
)

// ErrMissingInput is returned when the invocation lacks a resolvable target user or a nickname
var ErrMissingInput = errors.New("missing either name or user")

// RenameRequest is one nickname change, alive for a single interaction
type RenameRequest struct {
	Requester *discordgo.User
	Target    *discordgo.User
	NickName  string
}

// Summary is the human readable line used for public replies and notifications
func (r *RenameRequest) Summary() string {
	return fmt.Sprintf(`%s changed %s's nickname to "%s"`, utils.UserTag(r.Requester), utils.UserTag(r.Target), r.NickName)
}

// AuditReason is attached to the member edit so the guild audit log shows who asked
func (r *RenameRequest) AuditReason() string {
	return "name change requested by " + utils.UserTag(r.Requester)
}

// parseRequest reads the command options by name and resolves the target user
func parseRequest(requester *discordgo.User, data discordgo.ApplicationCommandInteractionData) (*RenameRequest, error) {
	if requester == nil {
		return nil, fmt.Errorf("%w: no invoking user", ErrMissingInput)
	}

	var targetID, nick string
	for _, opt := range data.Options {
		switch opt.Name {
		case optionUser:
			targetID, _ = opt.Value.(string)
		case optionName:
			nick, _ = opt.Value.(string)
		}
	}

	if targetID == "" || nick == "" {
		return nil, ErrMissingInput
	}

	if data.Resolved == nil || data.Resolved.Users[targetID] == nil {
		return nil, fmt.Errorf("%w: user %s not resolved", ErrMissingInput, targetID)
	}

	return &RenameRequest{
		Requester: requester,
		Target:    data.Resolved.Users[targetID],
		NickName:  nick,
	}, nil
}
