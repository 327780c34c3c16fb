// Package channels defines the transport contracts of the bot. Each channel
// (Discord, the local console) delivers inbound guild messages and accepts
// replies for a channel id.
package channels

import (
	"context"
	"errors"
	"time"
)

// Channel is a messaging transport.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord", "console").
	Name() string

	// Connect establishes the connection. Must be called before Receive.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and the Receive stream.
	Disconnect() error

	// Receive returns the stream of inbound messages.
	Receive() <-chan *IncomingMessage

	// IsConnected reports whether the channel is usable.
	IsConnected() bool

	Responder
}

// Responder queues a reply for a channel id. Delivery is fire-and-forget:
// the caller never learns whether the message arrived, and an empty or
// stale channel id is dropped silently.
type Responder interface {
	Send(channelID, text string)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(channelID, text string)

// Send implements Responder.
func (f ResponderFunc) Send(channelID, text string) { f(channelID, text) }

// IncomingMessage is one inbound message event.
type IncomingMessage struct {
	// ID is the message id on the source platform.
	ID string

	// Channel names the transport the message arrived on.
	Channel string

	// GuildID is empty for direct messages.
	GuildID string

	// ChannelID identifies where replies go.
	ChannelID string

	// AuthorID and AuthorName identify the sender.
	AuthorID   string
	AuthorName string

	// Content is the message text with user mentions rendered as
	// "@<display name>".
	Content string

	// FromBot is set for messages written by bot accounts, including this one.
	FromBot bool

	// FromWebhook is set for webhook-originated messages.
	FromWebhook bool

	Timestamp time.Time
}

// ErrChannelDisconnected is returned when a channel is used before Connect.
var ErrChannelDisconnected = errors.New("channel is not connected")
