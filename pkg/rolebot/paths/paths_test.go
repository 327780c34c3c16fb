package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStateDir(t *testing.T) {
	t.Run("respects environment variable", func(t *testing.T) {
		t.Setenv(StateDirEnv, "/tmp/custom-rolebot-state")
		assert.Equal(t, "/tmp/custom-rolebot-state", ResolveStateDir())
	})

	t.Run("defaults under home", func(t *testing.T) {
		t.Setenv(StateDirEnv, "")
		t.Setenv("HOME", "/tmp/rolebot-home")
		assert.Equal(t, filepath.Join("/tmp/rolebot-home", ".rolebot"), ResolveStateDir())
	})
}

func TestResolveConfigPath(t *testing.T) {
	state := t.TempDir()
	t.Setenv(StateDirEnv, state)
	t.Setenv(ConfigPathEnv, "")
	t.Chdir(t.TempDir())

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(ConfigPathEnv, "/etc/rolebot.yaml")
		assert.Equal(t, "/custom.yaml", ResolveConfigPath("/custom.yaml"))
	})

	t.Run("env before files", func(t *testing.T) {
		t.Setenv(ConfigPathEnv, "/etc/rolebot.yaml")
		assert.Equal(t, "/etc/rolebot.yaml", ResolveConfigPath(""))
	})

	t.Run("state dir when nothing exists", func(t *testing.T) {
		assert.Equal(t, filepath.Join(state, ConfigFileName), ResolveConfigPath(""))
	})

	t.Run("working directory before state dir", func(t *testing.T) {
		require.NoError(t, os.WriteFile(ConfigFileName, []byte("name: x\n"), 0o600))
		defer os.Remove(ConfigFileName)
		assert.Equal(t, ConfigFileName, ResolveConfigPath(""))
	})
}

func TestResolveDotEnvPaths(t *testing.T) {
	t.Setenv(StateDirEnv, "/tmp/rb")
	assert.Equal(t, []string{".env", "/tmp/rb/.env"}, ResolveDotEnvPaths())
}

func TestEnsureStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	t.Setenv(StateDirEnv, dir)

	require.NoError(t, EnsureStateDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
