package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/rolebot/pkg/rolebot/config"
	"github.com/jholhewres/rolebot/pkg/rolebot/router"
)

// newSetupCmd creates the `rolebot setup` command.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create config.yaml and store the bot token",
		Long: `Interactive wizard that writes config.yaml and stores the Discord bot
token in the OS keyring (or in the config file when no keyring is available).

Requires a terminal. For headless installs write config.yaml by hand and set
DISCORD_BOT_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
}

// setupAnswers holds the wizard's fields.
type setupAnswers struct {
	Name          string
	Mode          string
	Prefix        string
	DefaultModule string
	Token         string
	UseKeyring    bool
	MetricsAddr   string
}

func runSetup(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("setup needs an interactive terminal")
	}

	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	keyringOK := config.KeyringAvailable()
	ans := setupAnswers{
		Name:          cfg.Name,
		Mode:          cfg.Invocation.Mode,
		Prefix:        cfg.Invocation.Prefix,
		DefaultModule: cfg.Invocation.DefaultModule,
		UseKeyring:    keyringOK,
		MetricsAddr:   cfg.Metrics.Address,
	}
	if ans.Mode == "" {
		ans.Mode = string(router.ModeMention)
	}

	if err := setupForm(&ans, keyringOK).WithTheme(huh.ThemeDracula()).Run(); err != nil {
		return err
	}

	applyAnswers(cfg, ans)
	if ans.UseKeyring && ans.Token != "" {
		if err := config.StoreToken(ans.Token); err != nil {
			return err
		}
		cfg.Discord.Token = ""
	}

	if err := config.Save(cfg, path); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Config written to %s\n", path)
	if ans.UseKeyring && ans.Token != "" {
		fmt.Println("  Bot token stored in the OS keyring.")
	}
	fmt.Println("  Start the bot with: rolebot serve")
	fmt.Println()
	return nil
}

func setupForm(ans *setupAnswers, keyringOK bool) *huh.Form {
	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().
				Title("Bot name").
				Description("Shown in help messages").
				Value(&ans.Name).
				Validate(notEmpty),
			huh.NewSelect[string]().
				Title("How do members address the bot?").
				Options(
					huh.NewOption("Mention: @BotName role addRole Gamer", string(router.ModeMention)),
					huh.NewOption("Prefix: !rolebot role addRole Gamer", string(router.ModePrefix)),
				).
				Value(&ans.Mode),
			huh.NewInput().
				Title("Prefix").
				Description("Used in prefix mode; a single word").
				Value(&ans.Prefix).
				Validate(singleToken),
			huh.NewSelect[string]().
				Title("Modules").
				Options(
					huh.NewOption("All modules: @BotName role addRole Gamer", ""),
					huh.NewOption("Role module only: @BotName addRole Gamer", roleID),
				).
				Value(&ans.DefaultModule),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Discord bot token").
				Description("Leave empty to keep the current one or use DISCORD_BOT_TOKEN").
				EchoMode(huh.EchoModePassword).
				Value(&ans.Token),
			huh.NewInput().
				Title("Metrics address").
				Description("e.g. :9090 to expose /metrics; empty disables it").
				Value(&ans.MetricsAddr),
		),
	}
	if keyringOK {
		groups = append(groups, huh.NewGroup(
			huh.NewConfirm().
				Title("Store the token in the OS keyring?").
				Description("Otherwise it is written to config.yaml").
				Value(&ans.UseKeyring),
		))
	}
	return huh.NewForm(groups...)
}

// applyAnswers copies the wizard's answers onto cfg.
func applyAnswers(cfg *config.Config, ans setupAnswers) {
	cfg.Name = strings.TrimSpace(ans.Name)
	cfg.Invocation.Mode = ans.Mode
	cfg.Invocation.Prefix = strings.TrimSpace(ans.Prefix)
	cfg.Invocation.DefaultModule = ans.DefaultModule
	cfg.Metrics.Address = strings.TrimSpace(ans.MetricsAddr)
	if tok := strings.TrimSpace(ans.Token); tok != "" {
		cfg.Discord.Token = tok
	}
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func singleToken(s string) error {
	if len(strings.Fields(s)) != 1 {
		return errors.New("must be a single word")
	}
	return nil
}
