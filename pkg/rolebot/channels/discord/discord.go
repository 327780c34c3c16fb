// Package discord implements the Discord transport using discordgo. The
// same session backs both the message channel and the guild.Store, so one
// gateway connection serves reads, mutations and replies.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
)

// ChannelName is the name the Discord channel registers under.
const ChannelName = "discord"

// Intents the bot needs: guild metadata, guild messages with their content,
// and the member list for membersWith.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentGuildMembers |
	discordgo.IntentMessageContent

// SelfName in Config.Status is replaced by the bot's own name once the
// gateway reports it.
const SelfName = "{self}"

// Config configures the Discord channel.
type Config struct {
	// Token is the bot token without the "Bot " scheme.
	Token string

	// Status is shown as the bot's presence once connected, e.g. "!rolebot help"
	// or "@{self} help".
	Status string

	// Buffer is the capacity of the inbound message stream.
	Buffer int
}

// Discord is the Discord message channel.
type Discord struct {
	cfg     Config
	session *discordgo.Session
	logger  *slog.Logger

	messages  chan *channels.IncomingMessage
	connected atomic.Bool

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	remove []func()

	// post delivers one chunk. Replies queue per channel id so they arrive
	// in the order they were sent.
	post   func(channelID, content string) error
	sendMu sync.Mutex
	queues map[string][][]string
}

// New creates the channel and its session. Nothing connects until Connect.
func New(cfg Config, logger *slog.Logger) (*Discord, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: empty bot token")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = Intents
	session.StateEnabled = true

	return &Discord{
		cfg:      cfg,
		session:  session,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, cfg.Buffer),
		queues:   make(map[string][][]string),
		post: func(channelID, content string) error {
			_, err := session.ChannelMessageSend(channelID, content)
			return err
		},
	}, nil
}

// Session exposes the underlying session so a Store can share it.
func (d *Discord) Session() *discordgo.Session { return d.session }

// SetStatus sets the presence text shown once connected. Call before Connect.
func (d *Discord) SetStatus(status string) { d.cfg.Status = status }

// Name implements channels.Channel.
func (d *Discord) Name() string { return ChannelName }

// Connect opens the gateway connection.
func (d *Discord) Connect(_ context.Context) error {
	d.remove = append(d.remove,
		d.session.AddHandler(d.onReady),
		d.session.AddHandler(d.onDisconnect),
		d.session.AddHandler(d.onResumed),
		d.session.AddHandler(d.onMessageCreate),
	)
	if err := d.session.Open(); err != nil {
		d.removeHandlers()
		return fmt.Errorf("discord: opening gateway: %w", err)
	}
	d.connected.Store(true)
	return nil
}

// Disconnect closes the gateway and the Receive stream.
func (d *Discord) Disconnect() error {
	d.connected.Store(false)
	d.removeHandlers()
	err := d.session.Close()

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.mu.Unlock()
		d.wg.Wait()
		close(d.messages)
	} else {
		d.mu.Unlock()
	}

	if err != nil {
		return fmt.Errorf("discord: closing gateway: %w", err)
	}
	return nil
}

// Receive implements channels.Channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage { return d.messages }

// IsConnected implements channels.Channel.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Send posts text to a text channel, split to the platform limit. It returns
// immediately and failures are only logged. Texts sent to one channel are
// delivered in call order.
func (d *Discord) Send(channelID, text string) {
	if channelID == "" || text == "" {
		return
	}
	chunks := channels.SplitMessage(text, channels.MaxMessageDiscord)

	d.sendMu.Lock()
	queue, draining := d.queues[channelID]
	d.queues[channelID] = append(queue, chunks)
	d.sendMu.Unlock()

	if !draining {
		go d.drain(channelID)
	}
}

// drain posts queued texts for channelID until the queue is empty.
func (d *Discord) drain(channelID string) {
	for {
		d.sendMu.Lock()
		queue := d.queues[channelID]
		if len(queue) == 0 {
			delete(d.queues, channelID)
			d.sendMu.Unlock()
			return
		}
		chunks := queue[0]
		d.queues[channelID] = queue[1:]
		d.sendMu.Unlock()

		for _, chunk := range chunks {
			if err := d.post(channelID, chunk); err != nil {
				d.logger.Warn("sending reply failed", "channel_id", channelID, "error", err)
				break
			}
		}
	}
}

func (d *Discord) removeHandlers() {
	for _, fn := range d.remove {
		fn()
	}
	d.remove = nil
}

// emit hands msg to the Receive stream unless the channel is closing.
func (d *Discord) emit(msg *channels.IncomingMessage) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	select {
	case d.messages <- msg:
	default:
		d.logger.Warn("inbound buffer full, message dropped", "message_id", msg.ID)
	}
}
