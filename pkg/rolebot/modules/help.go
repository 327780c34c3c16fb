// Package modules holds the command groups registered with the router.
package modules

import (
	"context"
	"fmt"

	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// HelpModule prints top-level usage. It has no commands, so every
// invocation falls back to Help.
type HelpModule struct {
	botName string
}

// NewHelpModule creates the help module. botName titles the message.
func NewHelpModule(botName string) *HelpModule {
	return &HelpModule{botName: botName}
}

// Commands implements router.Module.
func (m *HelpModule) Commands() []string { return nil }

// Help describes the invocation grammar.
func (m *HelpModule) Help(req *router.Request) string {
	inv := req.Invoker
	return fmt.Sprintf(" ----- Help message for %s -----\n"+
		"Invoke %s with `%s identifier [command [arguments...]]`\n"+
		"where...\n"+
		"  `identifier` is a module **identifier** that appears in `%s %s`\n"+
		"  `command` is an item that appears in `%s identifier help`'s help list\n"+
		"\n"+
		"Further help can be found at: `%s identifier help`\n",
		m.botName, m.botName, inv, inv, router.ListIdentifier, inv, inv)
}

// Execute implements router.Module.
func (m *HelpModule) Execute(_ context.Context, req *router.Request, _ string) {
	req.Reply(m.Help(req))
}
