// Package router turns addressed chat messages into module commands.
//
// A message moves through AwaitingPrefix, AwaitingModule, AwaitingCommand
// and Dispatched. Unaddressed messages end silently; an unknown module gets a
// usage reply pointing at the "list" identifier; an absent or unknown command
// falls back to the module's help.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/cases"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
)

// ListIdentifier is the module users are pointed at to discover identifiers.
const ListIdentifier = "list"

// InvalidCommand precedes the module help in single-module mode when the
// command is missing or unknown.
const InvalidCommand = "invalid command invoked"

// State is where routing of one message stopped.
type State int

const (
	// StateUnaddressed: the message did not address the bot. Nothing is sent.
	StateUnaddressed State = iota

	// StateUsage: no module identifier, or an unknown one. A usage reply is sent.
	StateUsage

	// StateHelp: the command was absent or unknown and the module's help was sent.
	StateHelp

	// StateDispatched: the module executed a command.
	StateDispatched
)

func (s State) String() string {
	switch s {
	case StateUnaddressed:
		return "unaddressed"
	case StateUsage:
		return "usage"
	case StateHelp:
		return "help"
	case StateDispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an inbound guild message as seen by the router.
type Event struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Text       string

	// BotName is the bot's effective display name in GuildID.
	BotName string
}

// Request is one routed command handed to a module.
type Request struct {
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string

	// Invoker is the addressing form used, e.g. "@RoleBot" or "!rolebot".
	Invoker string

	// Module is the identifier the request was routed through.
	Module string

	// Address is what users type before a command of this module, e.g.
	// "@RoleBot role", or just the invoker in single-module mode.
	Address string

	// Args are the tokens after the command, in original order.
	Args []string

	Logger *slog.Logger

	out channels.Responder
}

// NewRequest builds a request replying through out. Used by tests and
// callers that drive modules directly.
func NewRequest(ev Event, invoker string, out channels.Responder) *Request {
	return &Request{
		GuildID:    ev.GuildID,
		ChannelID:  ev.ChannelID,
		AuthorID:   ev.AuthorID,
		AuthorName: ev.AuthorName,
		Invoker:    invoker,
		Address:    invoker,
		Logger:     slog.Default(),
		out:        out,
	}
}

// Reply sends text to the originating channel. Delivery is fire-and-forget.
func (r *Request) Reply(text string) {
	if r.out == nil || text == "" {
		return
	}
	r.out.Send(r.ChannelID, text)
}

// Outcome reports how a message was routed.
type Outcome struct {
	State   State
	Module  string
	Command string
}

// Router dispatches addressed messages to registered modules.
type Router struct {
	registry      *Registry
	matcher       *Matcher
	defaultModule string
	logger        *slog.Logger
	metrics       *metrics.Collector
}

// Option configures a Router.
type Option func(*Router)

// WithDefaultModule routes every addressed message straight to the module
// bound to id, skipping the identifier token.
func WithDefaultModule(id string) Option {
	return func(r *Router) { r.defaultModule = id }
}

// WithMetrics records routing outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Router) { r.metrics = c }
}

// New creates a router over registry.
func New(registry *Registry, matcher *Matcher, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = NewMatcher(ModeMention, "")
	}
	r := &Router{
		registry: registry,
		matcher:  matcher,
		logger:   logger.With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate checks that a configured default module is registered.
func (r *Router) Validate() error {
	if r.defaultModule == "" {
		return nil
	}
	if _, ok := r.registry.Lookup(r.defaultModule); !ok {
		return fmt.Errorf("default module %q is not registered", r.defaultModule)
	}
	return nil
}

// NeedsBotName reports whether ev.BotName must be filled in to route text.
func (r *Router) NeedsBotName(text string) bool { return r.matcher.NeedsBotName(text) }

// Route handles one message, sending replies to out. logger carries the
// invocation's attributes; nil uses the router's own.
func (r *Router) Route(ctx context.Context, ev Event, out channels.Responder, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = r.logger
	}

	// AwaitingPrefix
	inv, ok := r.matcher.Match(ev.Text, ev.BotName)
	if !ok {
		return Outcome{State: StateUnaddressed}
	}

	req := NewRequest(ev, inv.Invoker, out)
	req.Logger = logger
	tokens := inv.Tokens

	// AwaitingModule
	id := r.defaultModule
	if id == "" {
		if len(tokens) == 0 {
			req.Reply(fmt.Sprintf("Invoke with `%s identifier [command [arguments...]]`\nSee `%s %s` for a list of valid identifiers",
				inv.Invoker, inv.Invoker, ListIdentifier))
			return r.finish(logger, Outcome{State: StateUsage})
		}
		id, tokens = tokens[0], tokens[1:]
	}
	mod, ok := r.registry.Lookup(id)
	if !ok {
		if r.defaultModule != "" {
			logger.Error("default module not registered", "module", id)
			return r.finish(logger, Outcome{State: StateUsage, Module: id})
		}
		req.Reply(fmt.Sprintf("No identifier %s exists. See `%s %s` for a list of valid identifiers",
			id, inv.Invoker, ListIdentifier))
		return r.finish(logger, Outcome{State: StateUsage})
	}
	req.Module = id
	if r.defaultModule == "" {
		req.Address = inv.Invoker + " " + id
	}

	// AwaitingCommand
	var command string
	if len(tokens) > 0 {
		command, ok = matchCommand(mod.Commands(), tokens[0])
	}
	if len(tokens) == 0 || !ok {
		if r.defaultModule != "" {
			req.Reply(InvalidCommand)
		}
		req.Reply(mod.Help(req))
		return r.finish(logger, Outcome{State: StateHelp, Module: id})
	}

	// Dispatched
	req.Args = tokens[1:]
	logger.Info("command dispatched",
		"module", id,
		"command", command,
		"args", len(req.Args),
		"author", ev.AuthorName,
	)
	mod.Execute(ctx, req, command)
	return r.finish(logger, Outcome{State: StateDispatched, Module: id, Command: command})
}

func (r *Router) finish(logger *slog.Logger, out Outcome) Outcome {
	var outcome string
	switch out.State {
	case StateDispatched:
		outcome = metrics.OutcomeDispatch
	default:
		outcome = metrics.OutcomeUsage
	}
	r.metrics.Invocation(out.Module, out.Command, outcome)
	if out.State != StateDispatched {
		logger.Debug("routed to usage", "state", out.State.String(), "module", out.Module)
	}
	return out
}

// matchCommand returns the canonical command matching token, ignoring case.
func matchCommand(commands []string, token string) (string, bool) {
	folder := cases.Fold()
	want := folder.String(token)
	for _, c := range commands {
		if folder.String(c) == want {
			return c, true
		}
	}
	return "", false
}
