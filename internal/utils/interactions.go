package utils

import (
	"github.com/bwmarrin/discordgo"
)

// NewMessageResponse builds a plain channel-message response, hidden from everyone but the invoker when ephemeral is set
func NewMessageResponse(content string, ephemeral bool) *discordgo.InteractionResponse {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
	if ephemeral {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	return resp
}
