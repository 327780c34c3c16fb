// secrets.go resolves the Discord bot token.
//
// Priority:
//  1. OS keyring (service "rolebot", key "discord_token")
//  2. DISCORD_BOT_TOKEN environment variable
//  3. .env files (loaded by godotenv; never override the real environment)
//  4. discord.token in config.yaml (plaintext on disk)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/rolebot/pkg/rolebot/paths"
)

const (
	keyringService  = "rolebot"
	keyringTokenKey = "discord_token"

	// TokenEnv is the environment variable holding the bot token.
	TokenEnv = "DISCORD_BOT_TOKEN"
)

// ErrNoToken is returned when no source provides a bot token.
var ErrNoToken = errors.New("no discord bot token configured")

// StoreToken saves the bot token in the OS keyring.
func StoreToken(token string) error {
	if err := keyring.Set(keyringService, keyringTokenKey, token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}

// DeleteToken removes the bot token from the OS keyring.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting token from keyring: %w", err)
	}
	return nil
}

// KeyringAvailable reports whether the OS keyring accepts writes.
func KeyringAvailable() bool {
	const probe = "__rolebot_probe__"
	if err := keyring.Set(keyringService, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// LoadDotEnv loads .env files without overriding variables already set.
// Missing files are ignored.
func LoadDotEnv(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range paths.ResolveDotEnvPaths() {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.Warn("failed to load .env", "path", p, "error", err)
			continue
		}
		logger.Debug(".env loaded", "path", p)
	}
}

// ResolveToken returns the bot token from the first source that has one and
// stores it in cfg.Discord.Token. Call LoadDotEnv first so .env values are
// visible as environment variables.
func ResolveToken(cfg *Config, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if tok, err := keyring.Get(keyringService, keyringTokenKey); err == nil && tok != "" {
		logger.Debug("discord token loaded from OS keyring")
		cfg.Discord.Token = tok
		return tok, nil
	}

	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		logger.Debug("discord token loaded from environment", "env", TokenEnv)
		cfg.Discord.Token = tok
		return tok, nil
	}

	if tok := strings.TrimSpace(cfg.Discord.Token); tok != "" && !isEnvReference(tok) {
		logger.Debug("discord token loaded from config")
		return tok, nil
	}

	return "", fmt.Errorf("%w: run `rolebot setup` or set %s", ErrNoToken, TokenEnv)
}

// isEnvReference reports whether s is an unexpanded ${VAR} reference.
func isEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}")
}
