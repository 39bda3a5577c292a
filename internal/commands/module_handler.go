package commands

import (
	"context"
	"fmt"
	"sort"

	"renamebot/internal/commands/modules/rename"
	"renamebot/internal/commands/types"
	internalConfig "renamebot/internal/config"
	"renamebot/internal/tracing"
	"renamebot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ModuleHandler manages command modules and routes interactions.
//
// Each application command interaction gets its own root span; the command's
// handler receives a context carrying it and adds child spans per step.
type ModuleHandler struct {
	commands map[string]*types.Command
	modules  map[string]types.CommandModule
	config   *internalConfig.Config
	tracer   trace.Tracer
	deps     *types.Dependencies
}

// NewModuleHandler creates a new module-based command handler
func NewModuleHandler(cfg *internalConfig.Config, tracer trace.Tracer) *ModuleHandler {
	h := &ModuleHandler{
		commands: make(map[string]*types.Command),
		modules:  make(map[string]types.CommandModule),
		config:   cfg,
		tracer:   tracer,
		deps: &types.Dependencies{
			Config:  cfg,
			Tracer:  tracer,
			Session: nil, // Set later
		},
	}

	h.registerModules()

	return h
}

// registerModules registers all command modules
func (h *ModuleHandler) registerModules() {
	modules := []struct {
		name   string
		module types.CommandModule
	}{
		{"rename", rename.New(h.deps)},
	}

	for _, m := range modules {
		m.module.Register(h.commands, h.deps)
		h.modules[m.name] = m.module
	}
}

// GetModule returns a module by name
func (h *ModuleHandler) GetModule(name string) types.CommandModule {
	return h.modules[name]
}

// ApplicationCommands returns the definitions of every command, sorted by name
func (h *ModuleHandler) ApplicationCommands() []*discordgo.ApplicationCommand {
	names := make([]string, 0, len(h.commands))
	for name := range h.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*discordgo.ApplicationCommand, 0, len(names))
	for _, name := range names {
		defs = append(defs, h.commands[name].ApplicationCommand)
	}
	return defs
}

// RegisterCommands creates or updates every command for appID.
// An empty guildID registers the commands globally.
func (h *ModuleHandler) RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	existingCommands, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("error fetching existing commands: %w", err)
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, ec := range existingCommands {
		existingByName[ec.Name] = ec
	}

	for _, def := range h.ApplicationCommands() {
		if existing := existingByName[def.Name]; existing != nil {
			cmd, err := s.ApplicationCommandEdit(appID, guildID, existing.ID, def)
			if err != nil {
				return fmt.Errorf("error updating command %s: %w", def.Name, err)
			}
			def.ID = cmd.ID
			h.config.Logger.Infof("Updated command: %s", cmd.Name)
		} else {
			cmd, err := s.ApplicationCommandCreate(appID, guildID, def)
			if err != nil {
				return fmt.Errorf("error creating command %s: %w", def.Name, err)
			}
			def.ID = cmd.ID
			h.config.Logger.Infof("Registered command: %s", cmd.Name)
		}
	}

	return nil
}

// UnregisterCommands removes every command this bot defines
func (h *ModuleHandler) UnregisterCommands(s *discordgo.Session, appID, guildID string) error {
	existingCommands, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("error fetching existing commands: %w", err)
	}

	for _, existingCmd := range existingCommands {
		if _, exists := h.commands[existingCmd.Name]; !exists {
			continue
		}
		if err := s.ApplicationCommandDelete(appID, guildID, existingCmd.ID); err != nil {
			h.config.Logger.Warnf("Error deleting command %s: %v", existingCmd.Name, err)
			continue
		}
		h.config.Logger.Infof("Unregistered command: %s", existingCmd.Name)
	}

	return nil
}

// HandleInteraction routes slash command interactions to the matching command.
// Anything that isn't an application command, and unknown command names, are ignored.
func (h *ModuleHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name

	ctx, span := tracing.StartSpan(context.Background(), h.tracer, "interactionCreate",
		attribute.String("user", utils.UserTag(utils.InvokingUser(i))),
		attribute.String("guild", i.GuildID),
		attribute.String("notificationChannel", h.config.GetNotificationChannel()),
		attribute.String("commandName", commandName),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s handler: %v", commandName, r)
			h.config.Logger.Error("interaction handler panicked", "err", err)
			tracing.RecordError(span, err)
		}
	}()

	cmd, exists := h.commands[commandName]
	if !exists {
		h.config.Logger.Debug("ignoring unknown command", "command", commandName)
		return
	}

	cmd.HandlerFunc(ctx, s, i)
}

// InitializeModuleServices hydrates services with the Discord session.
// Called after the Discord session is established.
func (h *ModuleHandler) InitializeModuleServices(s *discordgo.Session) error {
	h.deps.Session = s

	for _, module := range h.modules {
		if service := module.Service(); service != nil {
			if err := service.HydrateServiceDiscordSession(s); err != nil {
				return fmt.Errorf("failed to hydrate service with Discord session: %w", err)
			}
		}
	}

	return nil
}
