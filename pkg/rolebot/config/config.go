// Package config loads rolebot's YAML configuration.
//
// The file is expanded against the environment before parsing, so secrets
// can stay out of it: ${VAR}, $VAR, ${VAR:-default} and ${VAR:?message}
// are supported. Unset ${VAR} references are left in place.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jholhewres/rolebot/pkg/rolebot/access"
)

// Config is the top-level configuration.
type Config struct {
	// Name is the bot's name in help output.
	Name string `yaml:"name"`

	Discord    DiscordConfig    `yaml:"discord"`
	Invocation InvocationConfig `yaml:"invocation"`
	Roles      RolesConfig      `yaml:"roles"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// DiscordConfig configures the Discord connection.
type DiscordConfig struct {
	// Token is the bot token. Prefer the OS keyring or DISCORD_BOT_TOKEN.
	Token string `yaml:"token"`
}

// InvocationConfig selects how messages address the bot.
type InvocationConfig struct {
	// Mode is "mention" (@<bot name>) or "prefix".
	Mode string `yaml:"mode"`

	// Prefix is the fixed token used in prefix mode.
	Prefix string `yaml:"prefix"`

	// DefaultModule, when set, routes every addressed message to that module
	// without an identifier token.
	DefaultModule string `yaml:"default_module"`
}

// RolesConfig configures role management.
type RolesConfig struct {
	// Protected roles are never managed, whatever their position.
	Protected []access.Rule `yaml:"protected"`

	// MentionableDelay waits this long after a role is created before making
	// it mentionable. Zero chains the update off the creation directly.
	MentionableDelay time.Duration `yaml:"mentionable_delay"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address to serve /metrics on, e.g. ":9090". Empty disables it.
	Address string `yaml:"address"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Name: "RoleBot",
		Invocation: InvocationConfig{
			Mode:   "mention",
			Prefix: "!rolebot",
		},
		Roles: RolesConfig{
			Protected: access.DefaultRules(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded, err := expandEnvVarsWithValidation(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories. The file may hold
// a token, so it is only readable by the owner.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Invocation.Mode) {
	case "", "mention", "prefix":
	default:
		return fmt.Errorf("invocation.mode: unknown mode %q (want mention or prefix)", c.Invocation.Mode)
	}
	if strings.ContainsAny(c.Invocation.Prefix, " \t\n") {
		return fmt.Errorf("invocation.prefix: %q must be a single token", c.Invocation.Prefix)
	}
	for i, r := range c.Roles.Protected {
		switch r.Match {
		case "", access.MatchExact, access.MatchContains:
		default:
			return fmt.Errorf("roles.protected[%d]: unknown match %q (want exact or contains)", i, r.Match)
		}
	}
	if c.Roles.MentionableDelay < 0 {
		return fmt.Errorf("roles.mentionable_delay: must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format: unknown format %q (want json or text)", c.Logging.Format)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars substitutes environment references. A failed ${VAR:?msg}
// is replaced by an ERROR marker.
func expandEnvVars(s string) string {
	out, _ := expand(s)
	return out
}

// expandEnvVarsWithValidation is expandEnvVars that reports failed
// ${VAR:?msg} references as an error.
func expandEnvVarsWithValidation(s string) (string, error) {
	out, missing := expand(s)
	if len(missing) > 0 {
		return "", fmt.Errorf("required environment variables: %s", strings.Join(missing, "; "))
	}
	return out, nil
}

func expand(s string) (string, []string) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envPattern.FindStringSubmatch(match)
		if m[4] != "" {
			if v, ok := os.LookupEnv(m[4]); ok {
				return v
			}
			return match
		}

		name, op, arg := m[1], m[2], m[3]
		v, ok := os.LookupEnv(name)
		switch op {
		case ":-":
			if !ok || v == "" {
				return arg
			}
			return v
		case ":?":
			if !ok || v == "" {
				if arg == "" {
					arg = "required environment variable not set"
				}
				missing = append(missing, name+": "+arg)
				return "ERROR: " + arg
			}
			return v
		default:
			if !ok {
				return match
			}
			return v
		}
	})
	return out, missing
}
