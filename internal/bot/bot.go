package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"renamebot/internal/commands"
	"renamebot/internal/config"
	"renamebot/internal/scheduler"
	"renamebot/internal/tracing"
	"renamebot/internal/utils"
)

const (
	shutdownTimeout = 10 * time.Second

	startingUpMessage   = "⏳ Bot is starting up, try again in a few seconds."
	shuttingDownMessage = "Bot is shutting down, try again in a moment."
)

// Bot represents the Discord bot
type Bot struct {
	session              *discordgo.Session
	config               *config.Config
	tracing              *tracing.Provider
	commandModuleHandler *commands.ModuleHandler
	scheduler            *scheduler.Scheduler
	ready                atomic.Bool // guards interaction handling until startup completes
	stopping             atomic.Bool
	inflight             sync.WaitGroup
	respond              func(s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
}

// New creates a new Bot instance
func New(cfg *config.Config, tp *tracing.Provider) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.GetBotToken())
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	bot := &Bot{
		session:              session,
		config:               cfg,
		tracing:              tp,
		commandModuleHandler: commands.NewModuleHandler(cfg, tp.Tracer()),
		scheduler:            scheduler.NewScheduler(cfg),
		respond: func(s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
			return s.InteractionRespond(i, resp)
		},
	}

	// Every REST call to Discord gets a client span under the step that made it
	tp.InstrumentClient(session.Client)

	// Guild events are enough: interactions arrive regardless of intents
	session.Identify.Intents = discordgo.IntentsGuilds

	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onInteractionCreate)

	return bot, nil
}

// Start connects to Discord and blocks until the process is asked to stop
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}

	if err := b.commandModuleHandler.InitializeModuleServices(b.session); err != nil {
		_ = b.session.Close()
		return fmt.Errorf("error initializing module services: %w", err)
	}

	if err := b.scheduler.RegisterFunc("@hourly", "log-rotation", b.config.RotateLogs); err != nil {
		b.config.Logger.Errorf("Failed to register log rotation: %v", err)
	}
	b.scheduler.Start()

	b.ready.Store(true)
	b.config.Logger.Info("Initialization complete; interactions enabled")
	b.config.Logger.Info("Rename bot is now running. Press CTRL+C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	sig := <-sc
	b.config.Logger.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.shutdown(ctx)

	return nil
}

// shutdown stops taking interactions, lets running ones finish, then flushes traces
func (b *Bot) shutdown(ctx context.Context) {
	b.stopping.Store(true)
	b.ready.Store(false)

	if err := b.session.Close(); err != nil {
		b.config.Logger.Warn("error closing Discord session", "err", err)
	}
	b.scheduler.Stop()

	if err := b.waitForInflight(ctx); err != nil {
		b.config.Logger.Warn("interactions still running at shutdown", "err", err)
	}

	if err := b.tracing.Shutdown(ctx); err != nil {
		b.config.Logger.Errorf("Error terminating tracing: %v", err)
	} else if b.tracing.Enabled() {
		b.config.Logger.Info("Tracing terminated")
	}
}

func (b *Bot) waitForInflight(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onReady handles the ready event
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.config.Logger.Info("Ready!",
		"user", utils.UserTag(r.User),
		"ephemeralMessages", b.config.GetEphemeralReplies(),
		"nameChannel", b.config.GetNotificationChannel(),
	)
}

// onInteractionCreate handles slash command interactions
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	// Reject commands until startup has completed, and again once shutdown begins.
	if !b.ready.Load() {
		if i.Type == discordgo.InteractionApplicationCommand {
			msg := startingUpMessage
			if b.stopping.Load() {
				msg = shuttingDownMessage
			}
			if err := b.respond(s, i.Interaction, utils.NewMessageResponse(msg, true)); err != nil {
				b.config.Logger.Warn("failed to answer interaction while unavailable", "err", err)
			}
		}
		return
	}

	b.inflight.Add(1)
	defer b.inflight.Done()
	b.commandModuleHandler.HandleInteraction(s, i)
}
