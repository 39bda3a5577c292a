package rename

import (
	"context"
	"testing"

	"renamebot/internal/config"
	"renamebot/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type sentMessage struct {
	channelID string
	content   string
}

func newNotifier(t *testing.T, channelName string, channels []*discordgo.Channel, sent *[]sentMessage) (*ChannelNotifier, *tracetest.SpanRecorder) {
	t.Helper()
	cfg := config.NewMockConfig(map[string]interface{}{
		"notification_channel": channelName,
	})
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	n := NewChannelNotifier(cfg, tracing.NewProvider(tp).Tracer())
	n.opts = notifierOpts{
		ListChannels: func(_ context.Context, _ *discordgo.Session, _ string) ([]*discordgo.Channel, error) {
			return channels, nil
		},
		SendMessage: func(_ context.Context, _ *discordgo.Session, channelID, content string) error {
			*sent = append(*sent, sentMessage{channelID: channelID, content: content})
			return nil
		},
	}
	return n, recorder
}

func guildChannels() []*discordgo.Channel {
	return []*discordgo.Channel{
		{ID: "voice", Name: "audit-log", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "general", Name: "general", Type: discordgo.ChannelTypeGuildText},
		{ID: "audit", Name: "Audit-Log", Type: discordgo.ChannelTypeGuildText},
	}
}

func testRequest() *RenameRequest {
	return &RenameRequest{Requester: alice(), Target: bob(), NickName: "Bobby"}
}

func TestNotifyPostsToMatchingChannel(t *testing.T) {
	var sent []sentMessage
	n, recorder := newNotifier(t, "audit-log", guildChannels(), &sent)

	n.Notify(context.Background(), guildID, testRequest())

	require.Len(t, sent, 1, "exactly one notification")
	assert.Equal(t, "audit", sent[0].channelID, "voice channels are skipped and names match case-insensitively")
	assert.Equal(t, `alice#1 changed bob#2's nickname to "Bobby"`, sent[0].content)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "postNotification", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("message", sent[0].content))
}

func TestNotifyChannelNotFound(t *testing.T) {
	var sent []sentMessage
	n, _ := newNotifier(t, "mod-log", guildChannels(), &sent)

	require.NotPanics(t, func() {
		n.Notify(context.Background(), guildID, testRequest())
	})
	assert.Empty(t, sent)
}

func TestNotifyDisabledWithoutChannelName(t *testing.T) {
	var sent []sentMessage
	n, recorder := newNotifier(t, "", guildChannels(), &sent)
	n.opts.ListChannels = func(_ context.Context, _ *discordgo.Session, _ string) ([]*discordgo.Channel, error) {
		t.Fatal("channels must not be listed when notifications are off")
		return nil, nil
	}

	n.Notify(context.Background(), guildID, testRequest())

	assert.Empty(t, sent)
	assert.Empty(t, recorder.Ended())
}

func TestNotifySwallowsErrors(t *testing.T) {
	t.Run("list fails", func(t *testing.T) {
		var sent []sentMessage
		n, _ := newNotifier(t, "audit-log", nil, &sent)
		n.opts.ListChannels = func(_ context.Context, _ *discordgo.Session, _ string) ([]*discordgo.Channel, error) {
			return nil, assert.AnError
		}

		require.NotPanics(t, func() { n.Notify(context.Background(), guildID, testRequest()) })
		assert.Empty(t, sent)
	})

	t.Run("send fails", func(t *testing.T) {
		var sent []sentMessage
		n, _ := newNotifier(t, "audit-log", guildChannels(), &sent)
		calls := 0
		n.opts.SendMessage = func(_ context.Context, _ *discordgo.Session, _, _ string) error {
			calls++
			return assert.AnError
		}

		require.NotPanics(t, func() { n.Notify(context.Background(), guildID, testRequest()) })
		assert.Equal(t, 1, calls, "failed notifications are not retried")
	})

	t.Run("panic", func(t *testing.T) {
		var sent []sentMessage
		n, _ := newNotifier(t, "audit-log", guildChannels(), &sent)
		n.opts.SendMessage = func(_ context.Context, _ *discordgo.Session, _, _ string) error {
			panic("gateway exploded")
		}

		require.NotPanics(t, func() { n.Notify(context.Background(), guildID, testRequest()) })
	})
}

func TestDefaultNotifierOptsWithoutSession(t *testing.T) {
	opts := defaultNotifierOpts()

	_, err := opts.ListChannels(context.Background(), nil, guildID)
	require.ErrorIs(t, err, errNoSession)
	require.ErrorIs(t, opts.SendMessage(context.Background(), nil, "audit", "hi"), errNoSession)
}

func TestListGuildChannelsFromState(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID:       guildID,
		Channels: guildChannels(),
	}))

	channels, err := listGuildChannels(context.Background(), s, guildID)
	require.NoError(t, err)
	assert.Len(t, channels, 3)
}

func TestFindTextChannel(t *testing.T) {
	channels := []*discordgo.Channel{
		nil,
		{ID: "news", Name: "Announcements", Type: discordgo.ChannelTypeGuildNews},
		{ID: "cat", Name: "renames", Type: discordgo.ChannelTypeGuildCategory},
	}

	got := findTextChannel(channels, "announcements")
	require.NotNil(t, got)
	assert.Equal(t, "news", got.ID)
	assert.Nil(t, findTextChannel(channels, "renames"), "categories can't hold messages")
	assert.Nil(t, findTextChannel(nil, "anything"))
}
