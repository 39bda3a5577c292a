package rename

import (
	"context"
	"errors"
	"fmt"

	"renamebot/internal/commands/types"
	"renamebot/internal/config"
	"renamebot/internal/tracing"
	"renamebot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	notInGuildMessage   = "not in guild context or something"
	missingInputMessage = "missing either name or user"
	ownerRefusalMessage = "can't change the server owner's username, sorry :("
	renameFailedMessage = "couldn't change that nickname, sorry :("
	renamedMessage      = "username changed!"
)

type renameOpts struct {
	Respond      func(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	GuildOwnerID func(ctx context.Context, s *discordgo.Session, guildID string) (string, error)
	EditNickname func(ctx context.Context, s *discordgo.Session, guildID, userID, nick, reason string) error
}

func defaultRenameOpts() renameOpts {
	return renameOpts{
		Respond:      respond,
		GuildOwnerID: guildOwnerID,
		EditNickname: editNickname,
	}
}

func respond(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return s.InteractionRespond(i, resp, discordgo.WithContext(ctx))
}

// guildOwnerID reads the owner from the gateway cache, falling back to REST
func guildOwnerID(ctx context.Context, s *discordgo.Session, guildID string) (string, error) {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil && g.OwnerID != "" {
			return g.OwnerID, nil
		}
	}
	g, err := s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}
	return g.OwnerID, nil
}

func editNickname(ctx context.Context, s *discordgo.Session, guildID, userID, nick, reason string) error {
	_, err := s.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Nick: nick}, discordgo.WithAuditLogReason(reason), discordgo.WithContext(ctx))
	return err
}

// RenameModule implements the CommandModule interface for the rename command
type RenameModule struct {
	config    *config.Config
	tracer    trace.Tracer
	ephemeral bool
	channel   *ChannelNotifier
	notifier  Notifier
	opts      renameOpts
}

// New creates a new rename module
func New(deps *types.Dependencies) *RenameModule {
	channel := NewChannelNotifier(deps.Config, deps.Tracer)
	return &RenameModule{
		config:    deps.Config,
		tracer:    deps.Tracer,
		ephemeral: deps.Config.GetEphemeralReplies(),
		channel:   channel,
		notifier:  channel,
		opts:      defaultRenameOpts(),
	}
}

// Register adds the rename command to the command map
func (m *RenameModule) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	cmds["rename"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "rename",
			Description: "Renames the user",
			Contexts:    &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild},
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        optionUser,
					Description: "the user to rename",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionName,
					Description: "The new user name",
					Required:    true,
				},
			},
		},
		HandlerFunc: m.handleRename,
	}
}

// Service returns the notifier, which needs the Discord session once connected
func (m *RenameModule) Service() types.ModuleService {
	return m.channel
}

// handleRename runs a single /rename invocation. Every path answers the interaction exactly once.
func (m *RenameModule) handleRename(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	span := trace.SpanFromContext(ctx)
	r := &replier{module: m, session: s, interaction: i.Interaction}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic handling rename: %v", rec)
			m.config.Logger.Error("rename failed unexpectedly", "err", err)
			tracing.RecordError(span, err)
			r.reply(ctx, renameFailedMessage, true)
		}
	}()

	requester := utils.InvokingUser(i)

	if i.GuildID == "" {
		m.config.Logger.Warn("no guild assigned somehow", "user", utils.UserTag(requester))
		r.reply(ctx, notInGuildMessage, true)
		return
	}

	req, err := parseRequest(requester, i.ApplicationCommandData())
	if err != nil {
		m.config.Logger.Warn("missing target or nickname", "user", utils.UserTag(requester), "err", err)
		r.reply(ctx, missingInputMessage, true)
		return
	}

	span.SetAttributes(
		attribute.String("targetUser", utils.UserTag(req.Target)),
		attribute.String("existingName", req.Target.Username),
		attribute.String("newName", req.NickName),
	)

	ownerID, err := m.opts.GuildOwnerID(ctx, s, i.GuildID)
	if err != nil {
		m.config.Logger.Error("could not look up guild owner", "guild", i.GuildID, "err", err)
		tracing.RecordError(span, err)
		r.reply(ctx, renameFailedMessage, true)
		return
	}

	if ownerID == req.Target.ID {
		m.config.Logger.Info("user attempted to change owner's nickname", "user", utils.UserTag(req.Requester))
		r.reply(ctx, ownerRefusalMessage, true)
		return
	}

	if err := m.updateNickname(ctx, s, i.GuildID, req); err != nil {
		r.reply(ctx, renameFailedMessage, true)
		return
	}

	if m.ephemeral {
		r.reply(ctx, renamedMessage, true)
	} else {
		r.reply(ctx, req.Summary(), false)
	}
	m.config.Logger.Debug("sent confirmation response")

	m.notifier.Notify(ctx, i.GuildID, req)
}

func (m *RenameModule) updateNickname(ctx context.Context, s *discordgo.Session, guildID string, req *RenameRequest) error {
	ctx, span := tracing.StartSpan(ctx, m.tracer, "updateNickname")
	defer span.End()

	m.config.Logger.Debug("updating target name")
	if err := m.opts.EditNickname(ctx, s, guildID, req.Target.ID, req.NickName, req.AuditReason()); err != nil {
		err = fmt.Errorf("failed to edit member %s: %w", req.Target.ID, err)
		m.config.Logger.Error("received error updating guild member", "err", err)
		tracing.RecordError(span, err)
		return err
	}

	m.config.Logger.Infof("updated target %s nickname to %s", utils.UserTag(req.Target), req.NickName)
	return nil
}

var errAlreadyReplied = errors.New("interaction already answered")

// replier answers one interaction and refuses to answer it twice
type replier struct {
	module      *RenameModule
	session     *discordgo.Session
	interaction *discordgo.Interaction
	replied     bool
}

func (r *replier) reply(ctx context.Context, content string, ephemeral bool) {
	if r.replied {
		r.module.config.Logger.Warn("dropping reply", "content", content, "err", errAlreadyReplied)
		return
	}
	r.replied = true

	ctx, span := tracing.StartSpan(ctx, r.module.tracer, "interactionReply",
		attribute.String("content", content),
		attribute.Bool("ephemeral", ephemeral),
	)
	defer span.End()

	if err := r.module.opts.Respond(ctx, r.session, r.interaction, utils.NewMessageResponse(content, ephemeral)); err != nil {
		r.module.config.Logger.Error("failed to respond to interaction", "err", err)
		tracing.RecordError(span, err)
	}
}
