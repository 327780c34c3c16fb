package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/rolebot/pkg/rolebot/channels"
	"github.com/jholhewres/rolebot/pkg/rolebot/channels/console"
	"github.com/jholhewres/rolebot/pkg/rolebot/guild/memstore"
	"github.com/jholhewres/rolebot/pkg/rolebot/modules"
	"github.com/jholhewres/rolebot/pkg/rolebot/paths"
)

// newChatCmd creates the `rolebot chat` command: a REPL against an in-memory
// guild.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Try the bot in the terminal against a sandbox guild",
		Long: `Start an interactive session against an in-memory guild. Every line
is handled exactly as a Discord message from one member would be, using the
same modules, role engine and protected-role rules as 'rolebot serve'.

The default sandbox has the roles Admin, RoleBot, Moderator, Gamer, Artist and
Reader, and the members "you" and "alice". Pass --fixture to load your own.

Interactive features:
  ↑/↓ arrows  navigate command history
  Ctrl+R      reverse history search
  Tab         autocomplete commands
  /quit       leave

Examples:
  rolebot chat
  rolebot chat --fixture guild.yaml --as alice`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().String("fixture", "", "YAML file describing the sandbox guild")
	cmd.Flags().String("as", "you", "member id to act as")
	cmd.Flags().String("guild", "", "guild id to use (default: first in the fixture)")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Configure logger (quiet for chat mode) ──
	logLevel := slog.LevelWarn
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// ── Sandbox guild ──
	fx := memstore.DefaultFixture()
	if path, _ := cmd.Flags().GetString("fixture"); path != "" {
		if fx, err = memstore.LoadFixture(path); err != nil {
			return err
		}
	}
	store, err := memstore.Seed(fx)
	if err != nil {
		return err
	}

	guildID, _ := cmd.Flags().GetString("guild")
	if guildID == "" {
		if len(fx.Guilds) == 0 {
			return fmt.Errorf("fixture has no guilds")
		}
		guildID = fx.Guilds[0].ID
	}
	authorID, _ := cmd.Flags().GetString("as")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	author, err := store.Member(ctx, guildID, authorID)
	if err != nil {
		return fmt.Errorf("acting as %q in %q: %w", authorID, guildID, err)
	}
	self, err := store.Self(ctx, guildID)
	if err != nil {
		return err
	}

	// ── Wire the bot ──
	manager := channels.NewManager(logger)
	b, matcher, err := buildBot(cfg, store, manager, nil, logger)
	if err != nil {
		return err
	}

	invoker := matcher.Invoker(self.DisplayName)
	repl := console.New(console.Config{
		GuildID:     guildID,
		AuthorID:    author.ID,
		AuthorName:  author.DisplayName,
		HistoryFile: historyFile(),
		Completions: completions(invoker),
	}, logger)
	if err := manager.Register(repl); err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer manager.Stop()
	go b.Run(ctx, manager.Messages())

	// ── Welcome message ──
	fmt.Println()
	fmt.Printf("  \033[1m%s\033[0m sandbox, guild %q, acting as %s\n", cfg.Name, guildID, author.DisplayName)
	fmt.Println("  ─────────────────────────────────")
	fmt.Printf("  Try: %s help\n", invoker)
	fmt.Printf("       %s role listAll\n", invoker)
	fmt.Println("  Type /quit or press Ctrl+D to leave.")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-repl.Done():
		fmt.Println("  Bye!")
	case <-sigChan:
	}
	return nil
}

// completions offers every module and role command after the invoker.
func completions(invoker string) []string {
	out := []string{
		invoker + " " + helpID,
		invoker + " " + listID,
	}
	for _, c := range modules.NewRoleModule(nil, "").Commands() {
		out = append(out, invoker+" "+roleID+" "+c)
	}
	return out
}

// historyFile returns the path to the readline history file.
func historyFile() string {
	if err := paths.EnsureStateDir(); err != nil {
		return ""
	}
	return filepath.Join(paths.ResolveStateDir(), "chat_history")
}
