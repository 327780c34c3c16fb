// Package console is a terminal channel for `rolebot chat`. Every line typed
// becomes a guild message from one fixed member in one fixed guild, and
// replies are printed back to the terminal.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
)

// ChannelName is the name the console channel registers under.
const ChannelName = "console"

// Config configures the console.
type Config struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string

	// Prompt is shown before each input line.
	Prompt string

	// HistoryFile keeps readline history across sessions. Empty disables it.
	HistoryFile string

	// Completions are offered on Tab.
	Completions []string

	// Stdin and Stdout default to the process terminal.
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Console is the terminal channel.
type Console struct {
	cfg    Config
	logger *slog.Logger

	rl        *readline.Instance
	out       io.Writer
	outMu     sync.Mutex
	messages  chan *channels.IncomingMessage
	done      chan struct{}
	connected atomic.Bool
	seq       atomic.Int64

	closeOnce sync.Once
	doneOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a console channel.
func New(cfg Config, logger *slog.Logger) *Console {
	if cfg.ChannelID == "" {
		cfg.ChannelID = "terminal"
	}
	if cfg.Prompt == "" {
		cfg.Prompt = cfg.AuthorName + "> "
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		cfg:      cfg,
		logger:   logger.With("component", "console"),
		out:      cfg.Stdout,
		messages: make(chan *channels.IncomingMessage, 16),
		done:     make(chan struct{}),
	}
}

// Name implements channels.Channel.
func (c *Console) Name() string { return ChannelName }

// Connect starts reading lines from the terminal.
func (c *Console) Connect(ctx context.Context) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(c.cfg.Completions)+1)
	items = append(items, readline.PcItem("/quit"))
	for _, s := range c.cfg.Completions {
		items = append(items, readline.PcItem(s))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            c.cfg.Prompt,
		HistoryFile:       c.cfg.HistoryFile,
		HistoryLimit:      1000,
		AutoComplete:      readline.NewPrefixCompleter(items...),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             c.cfg.Stdin,
		Stdout:            c.cfg.Stdout,
	})
	if err != nil {
		return fmt.Errorf("console: starting readline: %w", err)
	}
	c.rl = rl
	if c.out == nil {
		c.out = rl.Stdout()
	}
	c.connected.Store(true)

	c.wg.Add(1)
	go c.readLoop(ctx)
	return nil
}

// Disconnect stops reading and closes the Receive stream.
func (c *Console) Disconnect() error {
	c.connected.Store(false)
	var err error
	if c.rl != nil {
		err = c.rl.Close()
	}
	c.wg.Wait()
	c.closeOnce.Do(func() { close(c.messages) })
	c.quit()
	return err
}

// Done is closed when the user leaves the session with /quit or Ctrl+D.
func (c *Console) Done() <-chan struct{} { return c.done }

// Receive implements channels.Channel.
func (c *Console) Receive() <-chan *channels.IncomingMessage { return c.messages }

// IsConnected implements channels.Channel.
func (c *Console) IsConnected() bool { return c.connected.Load() }

// Send prints a reply. Replies for other channel ids are dropped.
func (c *Console) Send(channelID, text string) {
	if channelID != c.cfg.ChannelID || text == "" || c.out == nil {
		return
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintln(c.out, indent(text))
	fmt.Fprintln(c.out)
}

func (c *Console) readLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		line, err := c.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case err != nil:
			if !errors.Is(err, io.EOF) && c.connected.Load() {
				c.logger.Warn("console: read failed", "error", err)
			}
			c.quit()
			return
		}

		msg, quit := c.handleLine(line)
		if quit {
			c.quit()
			return
		}
		if msg == nil {
			continue
		}
		select {
		case c.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handleLine turns an input line into a message. It reports quit for the
// session commands.
func (c *Console) handleLine(line string) (*channels.IncomingMessage, bool) {
	text := strings.TrimSpace(line)
	switch strings.ToLower(text) {
	case "":
		return nil, false
	case "/quit", "/exit", "/q":
		return nil, true
	}
	return &channels.IncomingMessage{
		ID:         strconv.FormatInt(c.seq.Add(1), 10),
		Channel:    ChannelName,
		GuildID:    c.cfg.GuildID,
		ChannelID:  c.cfg.ChannelID,
		AuthorID:   c.cfg.AuthorID,
		AuthorName: c.cfg.AuthorName,
		Content:    text,
		Timestamp:  time.Now(),
	}, false
}

func (c *Console) quit() {
	c.doneOnce.Do(func() { close(c.done) })
}

func indent(text string) string {
	return "  " + strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\n  ")
}
