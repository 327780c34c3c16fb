// Package commands implements the rolebot CLI.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/rolebot/pkg/rolebot/config"
	"github.com/jholhewres/rolebot/pkg/rolebot/paths"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "rolebot",
		Short: "Self-service role management for Discord guilds",
		Long: `rolebot lets guild members add and remove their own roles by
addressing the bot in a text channel, e.g.

  @RoleBot role addRole Gamer
  @RoleBot role listAll

Roles the bot cannot manage (at or above its own highest role, or on the
protected list) are never touched.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config.yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSetupCmd(),
		newVersionCmd(version),
	)
	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rolebot %s\n", version)
		},
	}
}

// resolveConfig loads the config file named by --config or discovered in the
// usual places. A missing file yields the defaults.
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	flagPath, _ := cmd.Root().PersistentFlags().GetString("config")
	path := paths.ResolveConfigPath(flagPath)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// newLogger builds the slog logger from config and the --verbose flag.
func newLogger(cmd *cobra.Command, cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
