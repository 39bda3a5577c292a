package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"renamebot/internal/commands"
	"renamebot/internal/config"
	"renamebot/internal/tracing"
)

var errGuildIDMissing = errors.New("guild ID missing (set DISCORD_GUILD_ID or pass --global)")

func main() {
	if err := newRegisterCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRegisterCmd() *cobra.Command {
	var global, unregister bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish the bot's slash commands to Discord",
		Long: heredoc.Doc(`
			Publishes the /rename command definition to Discord.

			By default the command is registered for the guild in DISCORD_GUILD_ID,
			which makes it available immediately. With --global (or DISCORD_GLOBAL set)
			it is registered for every guild the bot is in, which Discord can take a
			while to roll out.
		`),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			defer func() { _ = cfg.Close() }()

			if !cmd.Flags().Changed("global") {
				global = cfg.GetGlobalCommands()
			}

			guildID, err := commandScope(global, cfg.GetGuildID())
			if err != nil {
				cfg.Logger.Error("Refusing to register commands", "err", err)
				return err
			}

			return run(cfg, guildID, unregister)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "register commands globally instead of for a single guild")
	cmd.Flags().BoolVar(&unregister, "unregister", false, "remove the bot's commands instead of publishing them")

	return cmd
}

// commandScope returns the guild to register against, empty meaning global
func commandScope(global bool, guildID string) (string, error) {
	if global {
		return "", nil
	}
	if guildID == "" {
		return "", errGuildIDMissing
	}
	return guildID, nil
}

func run(cfg *config.Config, guildID string, unregister bool) error {
	tp, err := tracing.Init(context.Background(), cfg)
	if err != nil {
		cfg.Logger.Error("Error initializing tracing", "err", err)
		tp = tracing.Disabled()
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			cfg.Logger.Error("Error terminating tracing", "err", err)
		}
	}()

	s, err := newSession(cfg.GetBotToken(), tp)
	if err != nil {
		return err
	}

	appID := cfg.GetApplicationID()
	if appID == "" {
		// A bot user shares its ID with the application it belongs to.
		me, err := s.User("@me")
		if err != nil {
			return fmt.Errorf("error resolving application ID: %w", err)
		}
		appID = me.ID
	}

	handler := commands.NewModuleHandler(cfg, tp.Tracer())
	scope := cfg.Logger.With("application", appID, "guild", guildID)

	if unregister {
		scope.Info("Started removing application (/) commands.")
		if err := handler.UnregisterCommands(s, appID, guildID); err != nil {
			cfg.Logger.Error("Failed to remove commands", "err", err)
			return err
		}
		scope.Info("Successfully removed application (/) commands.")
		return nil
	}

	scope.Info("Started refreshing application (/) commands.")
	if err := handler.RegisterCommands(s, appID, guildID); err != nil {
		cfg.Logger.Error("Failed to refresh commands", "err", err)
		return err
	}
	scope.Info("Successfully reloaded application (/) commands.")
	return nil
}

// newSession builds a REST-only session whose requests are traced when tp is enabled
func newSession(token string, tp *tracing.Provider) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	tp.InstrumentClient(s.Client)
	return s, nil
}
