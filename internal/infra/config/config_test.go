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

var envKeys = []string{
	"CHECKIN_ENDPOINT", "CHECKIN_DELAY_MS", "CHECKIN_REQUEST_TIMEOUT", "CHECKIN_MAX_RETRIES", "CHECKIN_MAX_RPS",
	"SCHEDULE_CRON", "SCHEDULE_TIMEZONE", "SCHEDULE_RUN_ON_START",
	"TOKENS_FILE", "APP_DATA_DIR", "APP_LOGS_DIR",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
}

// isolate runs the test in an empty directory with none of our env vars set.
// Cleanup restores whatever godotenv or the test changed.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://api.earnos.com/trpc/streak.checkIn?batch=1", cfg.CheckIn.Endpoint)
	assert.Equal(t, 2*time.Second, cfg.CheckIn.Delay())
	assert.Equal(t, 30*time.Second, cfg.CheckIn.Timeout())
	assert.Equal(t, 0, cfg.CheckIn.MaxRetries)
	assert.Zero(t, cfg.CheckIn.MaxRPS)
	assert.Equal(t, "1 0 * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, "tokens.txt", cfg.App.TokensFile)
	assert.False(t, cfg.Telegram.Enabled())

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadConfig_NilFlags(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "tokens.txt", cfg.App.TokensFile)
}

func TestLoadConfig_YAMLThenEnvThenFlags(t *testing.T) {
	dir := isolate(t)
	yaml := "checkin:\n  delay_ms: 500\n  max_retries: 1\nschedule:\n  cron: \"30 6 * * *\"\napp:\n  tokens_file: accounts.txt\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.CheckIn.Delay())
	assert.Equal(t, 1, cfg.CheckIn.MaxRetries)
	assert.Equal(t, "30 6 * * *", cfg.Schedule.Cron)
	assert.Equal(t, "accounts.txt", cfg.App.TokensFile)

	t.Setenv("CHECKIN_DELAY_MS", "750")
	t.Setenv("SCHEDULE_RUN_ON_START", "false")
	cfg, err = LoadConfig(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.CheckIn.Delay())
	assert.False(t, cfg.Schedule.RunOnStart)

	cfg, err = LoadConfig(newFlags(t, "--delay-ms=100", "--tokens=cli.txt"))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.CheckIn.Delay())
	assert.Equal(t, "cli.txt", cfg.App.TokensFile)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOKENS_FILE=from-dotenv.txt\nSCHEDULE_TIMEZONE=UTC\n"), 0644))

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.txt", cfg.App.TokensFile)
	assert.Equal(t, "UTC", cfg.Schedule.Timezone)
}

func TestLoadConfig_ExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  data_dir: /tmp/checkin\n"), 0644))

	cfg, err := LoadConfig(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/checkin", cfg.App.DataDir)

	_, err = LoadConfig(newFlags(t, "--config", filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestLoadConfig_Validation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "bad cron", args: []string{"--cron", "every day"}},
		{name: "negative delay", args: []string{"--delay-ms=-1"}},
		{name: "zero timeout", args: []string{"--timeout=0"}},
		{name: "negative max rps", env: map[string]string{"CHECKIN_MAX_RPS": "-1"}},
		{name: "bad timezone", args: []string{"--timezone", "Mars/Olympus"}},
		{name: "telegram token without chat", env: map[string]string{"TELEGRAM_BOT_TOKEN": "123:abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(newFlags(t, tc.args...))
			assert.Error(t, err)
		})
	}
}
