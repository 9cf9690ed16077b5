package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"earnos-checkin/internal/infra/fs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workDir isolates config discovery (.env, config.yaml) and Telegram settings.
func workDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	return dir
}

// newCheckInServer confirms tokens starting with "good" and rejects the rest.
func newCheckInServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer good") {
			io.WriteString(w, `[{"result":{"data":{"json":{"success":true}}}}]`)
			return
		}
		io.WriteString(w, `[{"result":{"data":{"json":{"success":false}}}}]`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTokens(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "tokens.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// baseArgs sets every flag the tests rely on; cobra keeps flag values between executions.
func baseArgs(dir, tokens string, srv *httptest.Server) []string {
	return []string{
		"--tokens", tokens,
		"--endpoint", srv.URL + "/trpc/streak.checkIn?batch=1",
		"--delay-ms", "0",
		"--run-on-start=true",
		"--logs-dir", filepath.Join(dir, "logs"),
		"--data-dir", filepath.Join(dir, "data"),
	}
}

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCommands_EmptyTokensFileFails(t *testing.T) {
	dir := workDir(t)
	var calls atomic.Int32
	srv := newCheckInServer(t, &calls)
	tokens := writeTokens(t, dir, "\n   \n")

	for _, sub := range [][]string{nil, {"run"}, {"once", "--fail-on-error=false"}} {
		args := append(append([]string{}, sub...), baseArgs(dir, tokens, srv)...)
		_, err := execute(context.Background(), args...)
		require.Error(t, err, "args %v", sub)
		assert.ErrorIs(t, err, fs.ErrNoTokens)
	}
	assert.Zero(t, calls.Load())
}

func TestCommands_MissingTokensFileFails(t *testing.T) {
	dir := workDir(t)
	var calls atomic.Int32
	srv := newCheckInServer(t, &calls)

	_, err := execute(context.Background(), append([]string{"run"}, baseArgs(dir, filepath.Join(dir, "nope.txt"), srv)...)...)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, calls.Load())
}

func TestRun_ReturnsNilOnShutdown(t *testing.T) {
	dir := workDir(t)
	var calls atomic.Int32
	srv := newCheckInServer(t, &calls)
	tokens := writeTokens(t, dir, "good-1\ngood-2\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := execute(ctx, append([]string{"run"}, baseArgs(dir, tokens, srv)...)...)
		done <- err
	}()

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestOnce_FailOnErrorAndHistory(t *testing.T) {
	dir := workDir(t)
	var calls atomic.Int32
	srv := newCheckInServer(t, &calls)
	tokens := writeTokens(t, dir, "good-1\nbad-2\n")

	_, err := execute(context.Background(), append([]string{"once", "--fail-on-error=false"}, baseArgs(dir, tokens, srv)...)...)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	_, err = execute(context.Background(), append([]string{"once", "--fail-on-error=true"}, baseArgs(dir, tokens, srv)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1/2 accounts failed")

	out, err := execute(context.Background(), append([]string{"history", "--limit", "10"}, baseArgs(dir, tokens, srv)...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "manual")
		assert.Contains(t, line, "1/2 successful")
		assert.Contains(t, line, "failed: 2")
	}
}

func TestNext_PrintsUpcomingFirings(t *testing.T) {
	dir := workDir(t)
	var calls atomic.Int32
	srv := newCheckInServer(t, &calls)
	tokens := writeTokens(t, dir, "good-1\n")

	out, err := execute(context.Background(), append([]string{"next", "--count", "3", "--cron", "1 0 * * *", "--timezone", "UTC"}, baseArgs(dir, tokens, srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Schedule: 1 0 * * * (UTC)")
	assert.Equal(t, 3, strings.Count(out, "T00:01:00Z"))
	assert.Zero(t, calls.Load())
}
