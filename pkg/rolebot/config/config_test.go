package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/rolebot/pkg/rolebot/access"
	"github.com/jholhewres/rolebot/pkg/rolebot/paths"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestExpandEnvVars(t *testing.T) {
	// t.Setenv is incompatible with t.Parallel.
	tests := []struct {
		name string
		env  map[string]string
		in   string
		want string
	}{
		{"dollar brace", map[string]string{"RB_A": "a"}, "key: ${RB_A}", "key: a"},
		{"dollar bare", map[string]string{"RB_B": "b"}, "key: $RB_B", "key: b"},
		{"unset stays", nil, "key: ${RB_UNSET_1}", "key: ${RB_UNSET_1}"},
		{"default when unset", nil, "key: ${RB_UNSET_2:-fallback}", "key: fallback"},
		{"default ignored when set", map[string]string{"RB_C": "c"}, "key: ${RB_C:-no}", "key: c"},
		{"default with url", nil, "u: ${RB_UNSET_3:-https://discord.com/api}", "u: https://discord.com/api"},
		{"plain", nil, "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}

func TestExpandEnvVarsWithValidation(t *testing.T) {
	_, err := expandEnvVarsWithValidation("token: ${RB_REQUIRED_UNSET:?token is required}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")

	t.Setenv("RB_REQUIRED_SET", "x")
	got, err := expandEnvVarsWithValidation("token: ${RB_REQUIRED_SET:?unused}")
	require.NoError(t, err)
	assert.Equal(t, "token: x", got)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("RB_TEST_TOKEN", "secret")
	path := writeConfig(t, `
name: Helper
discord:
  token: ${RB_TEST_TOKEN}
invocation:
  mode: prefix
  prefix: "!roles"
  default_module: role
roles:
  protected:
    - {name: staff, match: contains}
  mentionable_delay: 250ms
logging: {level: debug, format: text}
metrics: {address: ":9090"}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Helper", cfg.Name)
	assert.Equal(t, "secret", cfg.Discord.Token)
	assert.Equal(t, InvocationConfig{Mode: "prefix", Prefix: "!roles", DefaultModule: "role"}, cfg.Invocation)
	assert.Equal(t, []access.Rule{{Name: "staff", Match: access.MatchContains}}, cfg.Roles.Protected)
	assert.Equal(t, 250*time.Millisecond, cfg.Roles.MentionableDelay)
	assert.Equal(t, LoggingConfig{Level: "debug", Format: "text"}, cfg.Logging)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"mode":     "invocation: {mode: slash}",
		"prefix":   "invocation: {prefix: \"two words\"}",
		"match":    "roles: {protected: [{name: x, match: regex}]}",
		"delay":    "roles: {mentionable_delay: -1s}",
		"format":   "logging: {format: xml}",
		"yaml":     "name: [unclosed",
		"required": "discord: {token: \"${RB_NOPE_TOKEN:?set it}\"}",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "config.yaml")
	cfg := DefaultConfig()
	cfg.Roles.MentionableDelay = time.Second
	cfg.Metrics.Address = ":9100"

	require.NoError(t, Save(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestResolveToken(t *testing.T) {
	keyring.MockInit()

	t.Run("config value", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		cfg := DefaultConfig()
		cfg.Discord.Token = "from-config"
		tok, err := ResolveToken(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "from-config", tok)
	})

	t.Run("env before config", func(t *testing.T) {
		t.Setenv(TokenEnv, "from-env")
		cfg := DefaultConfig()
		cfg.Discord.Token = "from-config"
		tok, err := ResolveToken(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "from-env", tok)
		assert.Equal(t, "from-env", cfg.Discord.Token)
	})

	t.Run("keyring first", func(t *testing.T) {
		t.Setenv(TokenEnv, "from-env")
		require.NoError(t, StoreToken("from-keyring"))
		defer func() { require.NoError(t, DeleteToken()) }()

		tok, err := ResolveToken(DefaultConfig(), nil)
		require.NoError(t, err)
		assert.Equal(t, "from-keyring", tok)
	})

	t.Run("unexpanded reference is not a token", func(t *testing.T) {
		t.Setenv(TokenEnv, "")
		cfg := DefaultConfig()
		cfg.Discord.Token = "${DISCORD_BOT_TOKEN}"
		_, err := ResolveToken(cfg, nil)
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestLoadDotEnv(t *testing.T) {
	state := t.TempDir()
	t.Setenv(paths.StateDirEnv, state)
	t.Chdir(t.TempDir())
	t.Setenv("RB_DOTENV_KEEP", "real")
	t.Setenv("RB_DOTENV_NEW", "")
	os.Unsetenv("RB_DOTENV_NEW")

	require.NoError(t, os.WriteFile(filepath.Join(state, ".env"),
		[]byte("RB_DOTENV_NEW=loaded\nRB_DOTENV_KEEP=overridden\n"), 0o600))

	LoadDotEnv(nil)
	assert.Equal(t, "loaded", os.Getenv("RB_DOTENV_NEW"))
	assert.Equal(t, "real", os.Getenv("RB_DOTENV_KEEP"))
}

func TestKeyringAvailable(t *testing.T) {
	keyring.MockInit()
	assert.True(t, KeyringAvailable())
}
