package modules

import (
	"context"
	"fmt"

	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// ListModule prints the registered modules and their identifiers.
type ListModule struct {
	registry *router.Registry
}

// NewListModule creates the list module over the router's registry.
func NewListModule(registry *router.Registry) *ListModule {
	return &ListModule{registry: registry}
}

// Commands implements router.Module. The module only has its help.
func (m *ListModule) Commands() []string { return nil }

// Help renders the registry table.
func (m *ListModule) Help(req *router.Request) string {
	return fmt.Sprintf("List of all registered modules and their identifiers\n"+
		"```\n%s```\n"+
		"Invoke any of these using `%s identifier`\n"+
		"For further help with individual modules see `%s identifier help`\n",
		m.registry.Table(), req.Invoker, req.Invoker)
}

// Execute implements router.Module.
func (m *ListModule) Execute(_ context.Context, req *router.Request, _ string) {
	req.Reply(m.Help(req))
}
