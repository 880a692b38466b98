package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "knolstudy.db", cfg.DB)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.Again)
	assert.Equal(t, 7*24*time.Hour, cfg.Schedule.Easy)
	assert.Equal(t, 1.0, cfg.Quiz.TriggerWindow)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: from-file.db
server:
  addr: ":9000"
schedule:
  good: 48h
quiz:
  trigger_window: 2
log:
  level: debug
`), 0o644))

	t.Setenv("KNOLSTUDY_SERVER__ADDR", ":9100")
	t.Setenv("KNOLSTUDY_LOG__MAX_SIZE", "50")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	flags.String("deck", "", "not configuration")
	require.NoError(t, flags.Parse([]string{"--db", "from-flag.db", "--deck", "go"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.DB)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 48*time.Hour, cfg.Schedule.Good)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Hard)
	assert.Equal(t, 2.0, cfg.Quiz.TriggerWindow)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Log.MaxSize)
}

func TestLoadUnchangedFlagsKeepLowerLayers(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("KNOLSTUDY_DB", "from-env.db")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("KNOLSTUDY_LOG__LEVEL", "verbose")

	_, err := Load("", nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.max_size", envKey("KNOLSTUDY_LOG__MAX_SIZE"))
	assert.Equal(t, "repos_dir", envKey("KNOLSTUDY_REPOS_DIR"))
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
