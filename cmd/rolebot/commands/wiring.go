package commands

import (
	"fmt"
	"log/slog"

	"github.com/jholhewres/rolebot/pkg/rolebot/access"
	"github.com/jholhewres/rolebot/pkg/rolebot/bot"
	"github.com/jholhewres/rolebot/pkg/rolebot/config"
	"github.com/jholhewres/rolebot/pkg/rolebot/guild"
	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
	"github.com/jholhewres/rolebot/pkg/rolebot/modules"
	"github.com/jholhewres/rolebot/pkg/rolebot/roles"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// Module identifiers.
const (
	helpID = "help"
	listID = router.ListIdentifier
	roleID = "role"
)

// buildBot wires engine, modules, registry and router over store. serve and
// chat share it so the sandbox behaves exactly like the real bot.
func buildBot(cfg *config.Config, store guild.Store, replies bot.Replier, collector *metrics.Collector, logger *slog.Logger) (*bot.Bot, *router.Matcher, error) {
	mode, err := router.ParseMode(cfg.Invocation.Mode)
	if err != nil {
		return nil, nil, err
	}
	matcher := router.NewMatcher(mode, cfg.Invocation.Prefix)

	engine := roles.NewEngine(store, access.NewFilter(cfg.Roles.Protected), logger,
		roles.WithMetrics(collector),
		roles.WithMentionableDelay(cfg.Roles.MentionableDelay),
	)

	registry := router.NewRegistry(logger)
	registered := registry.Register(helpID, modules.NewHelpModule(cfg.Name)) &&
		registry.Register(listID, modules.NewListModule(registry)) &&
		registry.Register(roleID, modules.NewRoleModule(engine, cfg.Name))
	if !registered {
		return nil, nil, fmt.Errorf("registering built-in modules failed")
	}

	r := router.New(registry, matcher, logger,
		router.WithDefaultModule(cfg.Invocation.DefaultModule),
		router.WithMetrics(collector),
	)
	if err := r.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invocation.default_module: %w", err)
	}

	return bot.New(r, store, replies, logger, bot.WithMetrics(collector)), matcher, nil
}
