package router

import (
	"fmt"
	"strings"
)

// Mode selects how a message addresses the bot.
type Mode string

const (
	// ModeMention expects "@<bot display name>" as the leading token(s). The
	// display name is resolved per guild.
	ModeMention Mode = "mention"

	// ModePrefix expects a fixed textual prefix such as "!rolebot".
	ModePrefix Mode = "prefix"
)

// DefaultPrefix is the fixed prefix used in ModePrefix when none is set.
const DefaultPrefix = "!rolebot"

// ParseMode validates a configured mode string. Empty means ModeMention.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMention:
		return ModeMention, nil
	case ModePrefix:
		return ModePrefix, nil
	default:
		return "", fmt.Errorf("unknown invocation mode %q (want mention or prefix)", s)
	}
}

// Invocation is one addressed message split into tokens.
type Invocation struct {
	// Invoker is the addressing form the message matched, e.g. "@RoleBot".
	Invoker string

	// Tokens follow the invoker, in original order.
	Tokens []string
}

// Matcher decides whether a message addresses the bot.
type Matcher struct {
	mode   Mode
	prefix string
}

// NewMatcher creates a matcher. prefix is only used in ModePrefix.
func NewMatcher(mode Mode, prefix string) *Matcher {
	if mode == "" {
		mode = ModeMention
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Matcher{mode: mode, prefix: prefix}
}

// Mode returns the configured addressing mode.
func (m *Matcher) Mode() Mode { return m.mode }

// NeedsBotName reports whether matching text depends on the bot's display
// name. Prefix mode never does; mention mode only for text starting with "@".
func (m *Matcher) NeedsBotName(text string) bool {
	return m.mode == ModeMention && strings.HasPrefix(strings.TrimSpace(text), "@")
}

// Invoker returns the addressing form for a bot whose effective display name
// in the current guild is botName.
func (m *Matcher) Invoker(botName string) string {
	if m.mode == ModePrefix {
		return m.prefix
	}
	return "@" + botName
}

// Match tokenizes text and reports whether it starts with the invoker.
// Tokens split on whitespace with no quoting. An invoker containing spaces
// (a display name like "Role Bot") spans several leading tokens.
func (m *Matcher) Match(text, botName string) (*Invocation, bool) {
	invoker := m.Invoker(botName)
	want := Tokenize(invoker)
	if len(want) == 0 {
		return nil, false
	}

	tokens := Tokenize(text)
	if len(tokens) < len(want) {
		return nil, false
	}
	for i, w := range want {
		if tokens[i] != w {
			return nil, false
		}
	}
	return &Invocation{Invoker: invoker, Tokens: tokens[len(want):]}, true
}

// Tokenize splits text on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(text)
}
