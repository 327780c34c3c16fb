package router

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu   sync.Mutex
	sent []string
}

func (s *sink) Send(_ string, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
}

func (s *sink) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type EchoModule struct {
	executed  []string
	args      [][]string
	addresses []string
}

func (m *EchoModule) Commands() []string { return []string{"help", "addRole"} }

func (m *EchoModule) Help(req *Request) string { return "echo help via " + req.Invoker }

func (m *EchoModule) Execute(_ context.Context, req *Request, command string) {
	m.executed = append(m.executed, command)
	m.args = append(m.args, req.Args)
	m.addresses = append(m.addresses, req.Address)
	req.Reply("ran " + command)
}

type OtherModule struct{}

func (OtherModule) Commands() []string                        { return nil }
func (OtherModule) Help(*Request) string                      { return "other help" }
func (OtherModule) Execute(context.Context, *Request, string) {}

func newTestRouter(t *testing.T, opts ...Option) (*Router, *EchoModule) {
	t.Helper()
	reg := NewRegistry(nil)
	echo := &EchoModule{}
	require.True(t, reg.Register("role", echo))
	require.True(t, reg.Register("other", OtherModule{}))
	return New(reg, NewMatcher(ModeMention, ""), nil, opts...), echo
}

func event(text string) Event {
	return Event{GuildID: "g1", ChannelID: "c1", AuthorID: "u1", AuthorName: "User", Text: text, BotName: "RoleBot"}
}

func TestRegistry_DuplicateKeepsFirst(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	first := &EchoModule{}
	assert.True(t, reg.Register("role", first))
	assert.False(t, reg.Register("role", OtherModule{}))

	got, ok := reg.Lookup("role")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Len(t, reg.List(), 1)
}

func TestRegistry_RejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	for _, id := range []string{"", "Role", "two words", "tab\tbed"} {
		assert.False(t, reg.Register(id, OtherModule{}), id)
	}
	assert.Empty(t, reg.List())
}

func TestRegistry_ListSortedWithTypes(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register("zeta", OtherModule{})
	reg.Register("alpha", &EchoModule{})

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "EchoModule", list[0].Type)
	assert.Equal(t, "zeta", list[1].ID)
	assert.Equal(t, "OtherModule", list[1].Type)
}

func TestRegistry_TableWidthsFollowEntries(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register("averyverylongidentifier", OtherModule{})
	reg.Register("e", &EchoModule{})

	lines := strings.Split(strings.TrimRight(reg.Table(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "module      | identifier             ", lines[0])
	assert.Equal(t, "------------+------------------------", lines[1])
	assert.Equal(t, "OtherModule | averyverylongidentifier", lines[2])
	assert.Equal(t, "EchoModule  | e                      ", lines[3])
}

func TestMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    Mode
		prefix  string
		botName string
		text    string
		ok      bool
		tokens  []string
	}{
		{"mention", ModeMention, "", "RoleBot", "@RoleBot role list", true, []string{"role", "list"}},
		{"mention only", ModeMention, "", "RoleBot", "  @RoleBot  ", true, []string{}},
		{"other name", ModeMention, "", "RoleBot", "@Someone role list", false, nil},
		{"not first", ModeMention, "", "RoleBot", "hey @RoleBot role", false, nil},
		{"case sensitive", ModeMention, "", "RoleBot", "@rolebot role", false, nil},
		{"spaced name", ModeMention, "", "Role Bot", "@Role Bot role help", true, []string{"role", "help"}},
		{"prefix", ModePrefix, "!rb", "RoleBot", "!rb list", true, []string{"list"}},
		{"prefix ignores mention", ModePrefix, "!rb", "RoleBot", "@RoleBot list", false, nil},
		{"default prefix", ModePrefix, "", "RoleBot", "!rolebot help", true, []string{"help"}},
		{"empty", ModeMention, "", "RoleBot", "", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inv, ok := NewMatcher(tt.mode, tt.prefix).Match(tt.text, tt.botName)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.tokens, inv.Tokens)
			}
		})
	}
}

func TestMatcher_NeedsBotName(t *testing.T) {
	t.Parallel()

	mention := NewMatcher(ModeMention, "")
	assert.True(t, mention.NeedsBotName("@RoleBot role list"))
	assert.True(t, mention.NeedsBotName("  @Someone"))
	assert.False(t, mention.NeedsBotName("hello @RoleBot"))
	assert.False(t, mention.NeedsBotName(""))

	prefix := NewMatcher(ModePrefix, "!rb")
	assert.False(t, prefix.NeedsBotName("!rb list"))
	assert.False(t, prefix.NeedsBotName("@RoleBot list"))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeMention, m)

	m, err = ParseMode(" Prefix ")
	require.NoError(t, err)
	assert.Equal(t, ModePrefix, m)

	_, err = ParseMode("slash")
	assert.Error(t, err)
}

func TestRoute_UnaddressedIsSilent(t *testing.T) {
	t.Parallel()

	r, echo := newTestRouter(t)
	for _, text := range []string{"", "hello there", "role addRole A", "@Other role addRole A"} {
		out := &sink{}
		got := r.Route(context.Background(), event(text), out, nil)
		assert.Equal(t, StateUnaddressed, got.State, text)
		assert.Empty(t, out.messages(), text)
	}
	assert.Empty(t, echo.executed)
}

func TestRoute_Usage(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t)

	out := &sink{}
	got := r.Route(context.Background(), event("@RoleBot"), out, nil)
	assert.Equal(t, StateUsage, got.State)
	require.Len(t, out.messages(), 1)
	assert.Equal(t, "Invoke with `@RoleBot identifier [command [arguments...]]`\nSee `@RoleBot list` for a list of valid identifiers", out.messages()[0])

	out = &sink{}
	got = r.Route(context.Background(), event("@RoleBot nope addRole"), out, nil)
	assert.Equal(t, StateUsage, got.State)
	assert.Equal(t, []string{"No identifier nope exists. See `@RoleBot list` for a list of valid identifiers"}, out.messages())
}

func TestRoute_HelpFallback(t *testing.T) {
	t.Parallel()

	r, echo := newTestRouter(t)
	for _, text := range []string{"@RoleBot role", "@RoleBot role bogus A"} {
		out := &sink{}
		got := r.Route(context.Background(), event(text), out, nil)
		assert.Equal(t, StateHelp, got.State, text)
		assert.Equal(t, []string{"echo help via @RoleBot"}, out.messages(), text)
	}
	assert.Empty(t, echo.executed)
}

func TestRoute_DispatchIgnoresCommandCase(t *testing.T) {
	t.Parallel()

	r, echo := newTestRouter(t)
	out := &sink{}
	got := r.Route(context.Background(), event("@RoleBot role ADDROLE Gamer extra"), out, nil)

	assert.Equal(t, Outcome{State: StateDispatched, Module: "role", Command: "addRole"}, got)
	assert.Equal(t, []string{"addRole"}, echo.executed)
	assert.Equal(t, [][]string{{"Gamer", "extra"}}, echo.args)
	assert.Equal(t, []string{"ran addRole"}, out.messages())
	assert.Equal(t, []string{"@RoleBot role"}, echo.addresses)
}

func TestRoute_DefaultModule(t *testing.T) {
	t.Parallel()

	r, echo := newTestRouter(t, WithDefaultModule("role"))
	require.NoError(t, r.Validate())

	out := &sink{}
	got := r.Route(context.Background(), event("@RoleBot addrole Gamer"), out, nil)
	assert.Equal(t, StateDispatched, got.State)
	assert.Equal(t, [][]string{{"Gamer"}}, echo.args)
	assert.Equal(t, []string{"@RoleBot"}, echo.addresses)

	out = &sink{}
	got = r.Route(context.Background(), event("@RoleBot"), out, nil)
	assert.Equal(t, StateHelp, got.State)
	assert.Equal(t, []string{InvalidCommand, "echo help via @RoleBot"}, out.messages())

	out = &sink{}
	got = r.Route(context.Background(), event("@RoleBot frobnicate Gamer"), out, nil)
	assert.Equal(t, StateHelp, got.State)
	assert.Equal(t, []string{InvalidCommand, "echo help via @RoleBot"}, out.messages())
	assert.Len(t, echo.executed, 1)
}

func TestRouter_ValidateUnknownDefault(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, WithDefaultModule("missing"))
	assert.Error(t, r.Validate())
}
