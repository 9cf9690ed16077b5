package fs

import (
	"os"
	"path/filepath"
	"testing"

	"earnos-checkin/internal/features/checkin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadTokens_TrimsAndSkipsBlankLines(t *testing.T) {
	path := writeFile(t, "tok-a\r\n\n   \n  tok-b  \ntok-c")

	tokens, err := LoadTokens(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, tokens)
}

func TestLoadTokens_EmptyFile(t *testing.T) {
	_, err := LoadTokens(writeFile(t, ""))
	assert.ErrorIs(t, err, ErrNoTokens)
	assert.ErrorIs(t, err, checkin.ErrNoTokens)
}

func TestLoadTokens_OnlyBlankLines(t *testing.T) {
	_, err := LoadTokens(writeFile(t, "\n  \n\t\n"))
	assert.ErrorIs(t, err, ErrNoTokens)
}

func TestLoadTokens_MissingFile(t *testing.T) {
	_, err := LoadTokens(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTokens_SingleToken(t *testing.T) {
	tokens, err := ParseTokens([]byte("only\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, tokens)
}
