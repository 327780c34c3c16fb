// manager.go runs several channels at once, merging their inbound messages
// into one stream and routing replies back to the channel they came from.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager aggregates registered channels.
type Manager struct {
	channels map[string]Channel
	messages chan *IncomingMessage

	logger *slog.Logger

	mu     sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		channels: make(map[string]Channel),
		messages: make(chan *IncomingMessage, 256),
		logger:   logger.With("component", "channels"),
	}
}

// Register adds a channel. Must be called before Start.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ch.Name()
	if _, exists := m.channels[name]; exists {
		return fmt.Errorf("channel %q already registered", name)
	}

	m.channels[name] = ch
	m.logger.Info("channel registered", "channel", name)
	return nil
}

// Start connects every registered channel and begins forwarding messages.
// Channels that fail to connect are logged and skipped; Start fails only if
// none connected.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var connected int
	for name, ch := range m.channels {
		if err := ch.Connect(m.ctx); err != nil {
			m.logger.Error("failed to connect channel",
				"channel", name,
				"error", err,
			)
			continue
		}

		connected++
		m.logger.Info("channel connected", "channel", name)

		m.wg.Add(1)
		go m.listenChannel(ch)
	}

	if connected == 0 {
		return fmt.Errorf("no channel connected")
	}
	return nil
}

// Stop disconnects every channel and closes the merged stream.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.RLock()
	for name, ch := range m.channels {
		if err := ch.Disconnect(); err != nil {
			m.logger.Error("failed to disconnect channel",
				"channel", name,
				"error", err,
			)
		}
	}
	m.mu.RUnlock()

	m.wg.Wait()
	close(m.messages)
	m.logger.Info("channels stopped")
}

// Messages returns the merged inbound stream. It is closed by Stop.
func (m *Manager) Messages() <-chan *IncomingMessage {
	return m.messages
}

// Responder returns a Responder that replies through the named channel.
// Replies to unknown or disconnected channels are dropped.
func (m *Manager) Responder(channelName string) Responder {
	return ResponderFunc(func(channelID, text string) {
		m.mu.RLock()
		ch, ok := m.channels[channelName]
		m.mu.RUnlock()

		if !ok || !ch.IsConnected() {
			m.logger.Debug("reply dropped", "channel", channelName, "reason", "unavailable")
			return
		}
		ch.Send(channelID, text)
	})
}

func (m *Manager) listenChannel(ch Channel) {
	defer m.wg.Done()
	for {
		select {
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			select {
			case m.messages <- msg:
			case <-m.ctx.Done():
				return
			}
		case <-m.ctx.Done():
			return
		}
	}
}
