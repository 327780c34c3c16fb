package channels

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name       string
	connectErr error

	mu        sync.Mutex
	connected bool
	in        chan *IncomingMessage
	sent      []string
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, in: make(chan *IncomingMessage, 8)}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		f.connected = false
		close(f.in)
	}
	return nil
}

func (f *fakeChannel) Receive() <-chan *IncomingMessage { return f.in }

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Send(channelID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID+":"+text)
}

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestManager_RegisterDuplicate(t *testing.T) {
	t.Parallel()

	m := NewManager(nil)
	require.NoError(t, m.Register(newFakeChannel("discord")))
	assert.Error(t, m.Register(newFakeChannel("discord")))
}

func TestManager_ForwardsMessages(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel("console")
	m := NewManager(nil)
	require.NoError(t, m.Register(ch))
	require.NoError(t, m.Start(context.Background()))

	ch.in <- &IncomingMessage{ID: "1", Channel: "console", Content: "hi"}

	select {
	case msg := <-m.Messages():
		assert.Equal(t, "hi", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("message not forwarded")
	}

	m.Stop()
	_, open := <-m.Messages()
	assert.False(t, open)
}

func TestManager_StartFailsWithoutConnections(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel("discord")
	ch.connectErr = errors.New("bad token")

	m := NewManager(nil)
	require.NoError(t, m.Register(ch))
	assert.Error(t, m.Start(context.Background()))
}

func TestManager_Responder(t *testing.T) {
	t.Parallel()

	ch := newFakeChannel("console")
	m := NewManager(nil)
	require.NoError(t, m.Register(ch))

	m.Responder("console").Send("c1", "before connect")
	assert.Empty(t, ch.Sent())

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	m.Responder("console").Send("c1", "hello")
	m.Responder("missing").Send("c1", "nowhere")
	assert.Equal(t, []string{"c1:hello"}, ch.Sent())
}
