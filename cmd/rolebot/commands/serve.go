package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
	"github.com/jholhewres/rolebot/pkg/rolebot/channels/discord"
	"github.com/jholhewres/rolebot/pkg/rolebot/config"
	"github.com/jholhewres/rolebot/pkg/rolebot/metrics"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// newServeCmd creates the `rolebot serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and handle guild messages",
		Long: `Connect to Discord and answer role commands in every guild the bot
has joined, until SIGINT or SIGTERM.

The bot token is read from the OS keyring, DISCORD_BOT_TOKEN, a .env file
or discord.token in config.yaml, in that order.

Examples:
  rolebot serve
  rolebot serve --config ./config.yaml --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv(nil)

	// ── Load config ──
	cfg, configPath, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg.Logging)
	logger.Info("config resolved", "path", configPath)

	token, err := config.ResolveToken(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Metrics ──
	collector := metrics.New()
	var metricsServer *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "address", cfg.Metrics.Address)
	}

	// ── Discord ──
	dc, err := discord.New(discord.Config{Token: token}, logger)
	if err != nil {
		return err
	}
	manager := channels.NewManager(logger)
	if err := manager.Register(dc); err != nil {
		return err
	}

	b, matcher, err := buildBot(cfg, discord.NewStore(dc.Session()), manager, collector, logger)
	if err != nil {
		return err
	}
	dc.SetStatus(presenceStatus(matcher))

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	go b.Run(ctx, manager.Messages())

	// ── Wait for shutdown ──
	logger.Info("rolebot running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"mode", matcher.Mode(),
		"default_module", cfg.Invocation.DefaultModule,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		cancel()
		manager.Stop()
		if metricsServer != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			stop()
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return nil
}

// presenceStatus is the help hint shown as the bot's presence. In mention
// mode the bot's name is only known once the gateway is ready.
func presenceStatus(m *router.Matcher) string {
	if m.Mode() == router.ModePrefix {
		return m.Invoker("") + " help"
	}
	return m.Invoker(discord.SelfName) + " help"
}
