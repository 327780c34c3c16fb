// Package bot connects inbound channel messages to the router. Each message
// is one invocation with its own correlation id; nothing that goes wrong in
// one invocation reaches another or the process.
package bot

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// Replier hands out the reply path for a channel. *channels.Manager
// implements it.
type Replier interface {
	Responder(channelName string) channels.Responder
}

// Bot handles inbound messages.
type Bot struct {
	router  *router.Router
	store   guild.Store
	replies Replier
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithMetrics records rejected messages and recovered panics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Bot) { b.metrics = c }
}

// New creates a bot. store resolves the bot's display name in each guild,
// and is only consulted for messages that could be mentions.
func New(r *router.Router, store guild.Store, replies Replier, logger *slog.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		router:  r,
		store:   store,
		replies: replies,
		logger:  logger.With("component", "bot"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run handles messages until the stream closes or ctx is done. Messages are
// handled concurrently.
func (b *Bot) Run(ctx context.Context, messages <-chan *channels.IncomingMessage) {
	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			go b.Handle(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// Handle processes one message. Direct messages, webhook messages and
// messages from bots are dropped before any reply.
func (b *Bot) Handle(ctx context.Context, msg *channels.IncomingMessage) (out router.Outcome) {
	if reason := rejectReason(msg); reason != "" {
		b.logger.Debug("message ignored", "reason", reason)
		b.metrics.Invocation("", "", metrics.OutcomeIgnored)
		return router.Outcome{State: router.StateUnaddressed}
	}

	logger := b.logger.With(
		"invocation", uuid.New().String()[:8],
		"guild", msg.GuildID,
		"channel_id", msg.ChannelID,
	)

	defer func() {
		if r := recover(); r != nil {
			b.metrics.Panic()
			logger.Error("invocation panicked", "panic", r, "stack", string(debug.Stack()))
			out = router.Outcome{State: router.StateUnaddressed}
		}
	}()

	var botName string
	if b.router.NeedsBotName(msg.Content) {
		self, err := b.store.Self(ctx, msg.GuildID)
		if err != nil {
			logger.Warn("resolving bot member failed", "error", err)
			return router.Outcome{State: router.StateUnaddressed}
		}
		botName = self.DisplayName
	}

	ev := router.Event{
		GuildID:    msg.GuildID,
		ChannelID:  msg.ChannelID,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Text:       msg.Content,
		BotName:    botName,
	}
	return b.router.Route(ctx, ev, b.replies.Responder(msg.Channel), logger)
}

func rejectReason(msg *channels.IncomingMessage) string {
	switch {
	case msg == nil:
		return "nil message"
	case msg.GuildID == "":
		return "not in a guild"
	case msg.FromWebhook:
		return "webhook"
	case msg.FromBot:
		return "bot author"
	default:
		return ""
	}
}
