package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
	"github.com/jholhewres/rolebot/pkg/rolebot/roles"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// Role module commands, in canonical case.
const (
	CmdHelp           = "help"
	CmdList           = "list"
	CmdListAll        = "listAll"
	CmdAddRole        = "addRole"
	CmdAddRoles       = "addRoles"
	CmdRemoveRole     = "removeRole"
	CmdRemoveRoles    = "removeRoles"
	CmdRemoveAllRoles = "removeAllRoles"
	CmdCreateRole     = "createRole"
	CmdCreateRoles    = "createRoles"
	CmdMembersWith    = "membersWith"
)

var roleCommands = []string{
	CmdHelp,
	CmdList,
	CmdListAll,
	CmdAddRole,
	CmdAddRoles,
	CmdRemoveRole,
	CmdRemoveRoles,
	CmdRemoveAllRoles,
	CmdCreateRole,
	CmdCreateRoles,
	CmdMembersWith,
}

// RoleModule lets members manage their own roles. Mutating commands reply
// from the engine's completion, never at submission.
type RoleModule struct {
	engine  *roles.Engine
	botName string
}

// NewRoleModule creates the role module. botName titles its help message.
func NewRoleModule(engine *roles.Engine, botName string) *RoleModule {
	return &RoleModule{engine: engine, botName: botName}
}

// Commands implements router.Module.
func (m *RoleModule) Commands() []string {
	return append([]string(nil), roleCommands...)
}

// Help lists the commands, addressed the way the member invoked the module.
func (m *RoleModule) Help(req *router.Request) string {
	return fmt.Sprintf(" ----- %s help -----\n"+
		"Invoke the bot using `%s` followed by one of the following commands:\n"+
		"  `help`: display this help message\n"+
		"  `list`: list your own roles\n"+
		"  `listAll`: list all available roles you can add to yourself\n"+
		"  `addRole ROLE`: add `ROLE` to yourself (where `ROLE` is in `listAll`)\n"+
		"  `addRoles ROLES...`: add `ROLES...` to yourself (where `ROLES...` are in `listAll`)\n"+
		"  `removeRole ROLE`: remove `ROLE` from yourself (where `ROLE` is in `list`)\n"+
		"  `removeRoles ROLES...`: remove `ROLES...` from yourself (where `ROLES...` are in `list`)\n"+
		"  `removeAllRoles`: remove all roles from yourself\n"+
		"  `createRole ROLE`: create a role with name `ROLE`\n"+
		"  `createRoles ROLES...`: create multiple roles with names `ROLES...`\n"+
		"  `membersWith ROLE`: list all members to whom `ROLE` is assigned\n",
		m.botName, req.Address)
}

// Execute runs command, which the router has already matched against
// Commands. Arguments missing for a command get a usage reply.
func (m *RoleModule) Execute(ctx context.Context, req *router.Request, command string) {
	switch command {
	case CmdHelp:
		req.Reply(m.Help(req))
	case CmdList:
		m.list(ctx, req)
	case CmdListAll:
		m.listAll(ctx, req)
	case CmdAddRole:
		if name, ok := firstArg(req, command); ok {
			reply(req, m.engine.AddRole(ctx, req.GuildID, req.AuthorID, name))
		}
	case CmdAddRoles:
		reply(req, m.engine.AddRoles(ctx, req.GuildID, req.AuthorID, req.Args))
	case CmdRemoveRole:
		if name, ok := firstArg(req, command); ok {
			reply(req, m.engine.RemoveRole(ctx, req.GuildID, req.AuthorID, name))
		}
	case CmdRemoveRoles:
		reply(req, m.engine.RemoveRoles(ctx, req.GuildID, req.AuthorID, req.Args))
	case CmdRemoveAllRoles:
		reply(req, m.engine.RemoveAllRoles(ctx, req.GuildID, req.AuthorID))
	case CmdCreateRole:
		if name, ok := firstArg(req, command); ok {
			reply(req, m.engine.CreateRole(ctx, req.GuildID, name))
		}
	case CmdCreateRoles:
		reply(req, m.engine.CreateRoles(ctx, req.GuildID, req.Args))
	case CmdMembersWith:
		if name, ok := firstArg(req, command); ok {
			m.membersWith(ctx, req, name)
		}
	default:
		req.Reply(m.Help(req))
	}
}

func (m *RoleModule) list(ctx context.Context, req *router.Request) {
	member, held, err := m.engine.MemberRoles(ctx, req.GuildID, req.AuthorID)
	if err != nil {
		req.Logger.Warn("listing member roles failed", "error", err)
		req.Reply("Could not read your roles")
		return
	}
	if len(held) == 0 {
		req.Reply(member.DisplayName + " has no roles")
		return
	}
	req.Reply(fmt.Sprintf("List of current roles for %s\n%s", member.DisplayName, strings.Join(guild.Names(held), ", ")))
}

func (m *RoleModule) listAll(ctx context.Context, req *router.Request) {
	usable, err := m.engine.UsableRoles(ctx, req.GuildID)
	if err != nil {
		req.Logger.Warn("listing usable roles failed", "error", err)
		req.Reply("Could not read the guild's roles")
		return
	}
	if len(usable) == 0 {
		req.Reply("No roles are available")
		return
	}
	req.Reply("List of all available roles\n" + strings.Join(guild.Names(usable), ", "))
}

func (m *RoleModule) membersWith(ctx context.Context, req *router.Request, name string) {
	members, err := m.engine.MembersWith(ctx, req.GuildID, name)
	if err != nil {
		req.Logger.Warn("listing members failed", "role", name, "error", err)
		req.Reply("Could not read members with role " + name)
		return
	}
	if len(members) == 0 {
		req.Reply("No members with role " + name)
		return
	}
	names := make([]string, 0, len(members))
	for _, mem := range members {
		names = append(names, mem.DisplayName)
	}
	req.Reply(fmt.Sprintf("Members with role %s:\n%s", name, strings.Join(names, ", ")))
}

// firstArg returns the command's single argument, replying with usage when
// there is none.
func firstArg(req *router.Request, command string) (string, bool) {
	if len(req.Args) == 0 {
		req.Reply(fmt.Sprintf("Usage: `%s role`", command))
		return "", false
	}
	return req.Args[0], true
}

// reply sends the operation's message once the store has completed it.
func reply(req *router.Request, fut *guild.Future[roles.Result]) {
	fut.Then(func(res roles.Result, err error) {
		if err != nil {
			req.Logger.Warn("role operation did not complete", "error", err)
			req.Reply("Something went wrong, please try again")
			return
		}
		req.Reply(res.Message)
	})
}
