package rename

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"renamebot/internal/commands/types"
	"renamebot/internal/config"
	"renamebot/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier posts a summary of a completed rename somewhere people can see it.
// Implementations never fail the caller; problems are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, guildID string, req *RenameRequest)
}

type notifierOpts struct {
	ListChannels func(ctx context.Context, s *discordgo.Session, guildID string) ([]*discordgo.Channel, error)
	SendMessage  func(ctx context.Context, s *discordgo.Session, channelID, content string) error
}

func defaultNotifierOpts() notifierOpts {
	return notifierOpts{
		ListChannels: listGuildChannels,
		SendMessage:  sendMessage,
	}
}

var errNoSession = errors.New("discord session not initialized")

// listGuildChannels prefers the gateway cache and falls back to REST
func listGuildChannels(ctx context.Context, s *discordgo.Session, guildID string) ([]*discordgo.Channel, error) {
	if s == nil {
		return nil, errNoSession
	}
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			s.State.RLock()
			channels := make([]*discordgo.Channel, len(g.Channels))
			copy(channels, g.Channels)
			s.State.RUnlock()
			if len(channels) > 0 {
				return channels, nil
			}
		}
	}
	return s.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func sendMessage(ctx context.Context, s *discordgo.Session, channelID, content string) error {
	if s == nil {
		return errNoSession
	}
	_, err := s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// ChannelNotifier posts to the guild text channel whose name matches the configured one
type ChannelNotifier struct {
	types.BaseService
	channelName string
	logger      *log.Logger
	tracer      trace.Tracer
	opts        notifierOpts
}

// NewChannelNotifier creates a notifier for the configured notification channel.
// The session is hydrated once the bot connects.
func NewChannelNotifier(cfg *config.Config, tracer trace.Tracer) *ChannelNotifier {
	return &ChannelNotifier{
		channelName: cfg.GetNotificationChannel(),
		logger:      cfg.Logger,
		tracer:      tracer,
		opts:        defaultNotifierOpts(),
	}
}

func (n *ChannelNotifier) Notify(ctx context.Context, guildID string, req *RenameRequest) {
	if n.channelName == "" {
		n.logger.Debug("no notification channel set")
		return
	}

	ctx, span := tracing.StartSpan(ctx, n.tracer, "postNotification",
		attribute.String("channel", n.channelName))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic posting notification: %v", r)
			n.logger.Error("Received error trying to post name change notification", "err", err)
			tracing.RecordError(span, err)
		}
	}()

	channels, err := n.opts.ListChannels(ctx, n.Session, guildID)
	if err != nil {
		n.logger.Error("Received error trying to post name change notification", "err", err, "guild", guildID)
		tracing.RecordError(span, err)
		return
	}

	channel := findTextChannel(channels, n.channelName)
	if channel == nil {
		n.logger.Warn("channel not found", "channel", n.channelName, "guild", guildID)
		return
	}

	message := req.Summary()
	span.SetAttributes(attribute.String("message", message))

	if err := n.opts.SendMessage(ctx, n.Session, channel.ID, message); err != nil {
		n.logger.Error("Received error trying to post name change notification", "err", err, "channel", n.channelName)
		tracing.RecordError(span, err)
		return
	}

	n.logger.Debug("notification posted", "channel", n.channelName)
}

// findTextChannel returns the first message-capable channel named name, ignoring case
func findTextChannel(channels []*discordgo.Channel, name string) *discordgo.Channel {
	for _, c := range channels {
		if c == nil || !isTextChannel(c) {
			continue
		}
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func isTextChannel(c *discordgo.Channel) bool {
	switch c.Type {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}
