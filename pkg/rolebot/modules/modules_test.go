package modules

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/rolebot/pkg/rolebot/access"
	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
	"github.com/jholhewres/rolebot/pkg/rolebot/guild/memstore"
	"github.com/jholhewres/rolebot/pkg/rolebot/roles"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// replies collects replies that may arrive from completion goroutines.
type replies chan string

func (r replies) Send(_ string, text string) { r <- text }

func (r replies) next(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-r:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

func (r replies) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-r:
		t.Fatalf("unexpected reply %q", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

type harness struct {
	store  *memstore.Store
	router *router.Router
	out    replies
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := memstore.Seed(memstore.DefaultFixture())
	require.NoError(t, err)

	engine := roles.NewEngine(store, access.NewFilter(access.DefaultRules()), nil)
	reg := router.NewRegistry(nil)
	require.True(t, reg.Register("help", NewHelpModule("RoleBot")))
	require.True(t, reg.Register("list", NewListModule(reg)))
	require.True(t, reg.Register("role", NewRoleModule(engine, "RoleBot")))

	return &harness{
		store:  store,
		router: router.New(reg, router.NewMatcher(router.ModeMention, ""), nil),
		out:    make(replies, 16),
	}
}

func (h *harness) say(t *testing.T, text string) router.Outcome {
	t.Helper()
	return h.router.Route(context.Background(), router.Event{
		GuildID:    "sandbox",
		ChannelID:  "c1",
		AuthorID:   "you",
		AuthorName: "you",
		Text:       text,
		BotName:    "RoleBot",
	}, channels.Responder(h.out), nil)
}

func TestHelpModule(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot help")
	msg := h.out.next(t)
	assert.Contains(t, msg, "Help message for RoleBot")
	assert.Contains(t, msg, "`@RoleBot identifier [command [arguments...]]`")
	assert.Contains(t, msg, "`@RoleBot list`")
}

func TestListModule(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot list")
	msg := h.out.next(t)
	assert.Contains(t, msg, "module     | identifier")
	assert.Contains(t, msg, "HelpModule | help")
	assert.Contains(t, msg, "ListModule | list")
	assert.Contains(t, msg, "RoleModule | role")
	assert.Less(t, strings.Index(msg, "| help"), strings.Index(msg, "| role"))
}

func TestRoleModule_Help(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, text := range []string{"@RoleBot role", "@RoleBot role HELP", "@RoleBot role dance"} {
		h.say(t, text)
		msg := h.out.next(t)
		assert.Contains(t, msg, "Invoke the bot using `@RoleBot role`", text)
		assert.Contains(t, msg, "`membersWith ROLE`", text)
	}
}

func TestRoleModule_Lists(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot role list")
	assert.Equal(t, "List of current roles for you\nReader", h.out.next(t))

	h.say(t, "@RoleBot role listall")
	assert.Equal(t, "List of all available roles\nArtist, Gamer, Reader", h.out.next(t))

	h.say(t, "@RoleBot role membersWith gamer")
	assert.Equal(t, "Members with role gamer:\nalice", h.out.next(t))

	h.say(t, "@RoleBot role membersWith Nobody")
	assert.Equal(t, "No members with role Nobody", h.out.next(t))
}

func TestRoleModule_UsageWithoutArgument(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, cmd := range []string{"addRole", "removeRole", "createRole", "membersWith"} {
		h.say(t, "@RoleBot role "+cmd)
		assert.Equal(t, "Usage: `"+cmd+" role`", h.out.next(t))
	}
	assert.Zero(t, h.store.TotalMutations())
}

func TestRoleModule_AddAndRemove(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot role addRole Gamer")
	assert.Equal(t, "Added role Gamer to you", h.out.next(t))

	h.say(t, "@RoleBot role addRole Gamer")
	assert.Equal(t, "you already has role Gamer", h.out.next(t))

	h.say(t, "@RoleBot role addRoles Artist Typo")
	assert.Equal(t, "Added roles to you: Artist", h.out.next(t))

	h.say(t, "@RoleBot role removeRole Reader")
	assert.Equal(t, "Removed role Reader from you", h.out.next(t))

	h.say(t, "@RoleBot role removeAllRoles")
	assert.Equal(t, "Roles removed from you: Artist, Gamer", h.out.next(t))

	h.say(t, "@RoleBot role list")
	assert.Equal(t, "you has no roles", h.out.next(t))
}

func TestRoleModule_ProtectedRoleCannotBeManaged(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot role addRole Moderator")
	assert.Equal(t, "Role Moderator cannot be managed by the bot", h.out.next(t))
	assert.Zero(t, h.store.TotalMutations())
}

func TestRoleModule_Create(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, "@RoleBot role createRole Gamer")
	assert.Equal(t, "Role Gamer already exists", h.out.next(t))
	assert.Zero(t, h.store.Calls(memstore.OpCreateRole))

	h.say(t, "@RoleBot role createRole Painter")
	assert.Equal(t, "Created role Painter", h.out.next(t))

	h.say(t, "@RoleBot role createRoles Painter Chess Go")
	assert.Equal(t, "Created roles: Chess, Go", h.out.next(t))
	h.out.none(t)
}
