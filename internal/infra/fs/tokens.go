package fs

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"earnos-checkin/internal/features/checkin"
	logging "earnos-checkin/internal/infra/log"

	"go.uber.org/zap"
)

// DefaultTokensFile is read from the working directory when no path is configured.
const DefaultTokensFile = "tokens.txt"

// ErrNoTokens is returned when the tokens file has no usable lines.
var ErrNoTokens = checkin.ErrNoTokens

// LoadTokens reads one bearer token per line. Lines are trimmed and blank lines skipped;
// order is preserved because accounts are reported by position.
func LoadTokens(path string) ([]string, error) {
	if path == "" {
		path = DefaultTokensFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}

	tokens, err := ParseTokens(data)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}

	logging.LogDebug("Loaded tokens from file", zap.String("file", path), zap.Int("count", len(tokens)))
	return tokens, nil
}

// ParseTokens splits newline-delimited content into tokens.
func ParseTokens(data []byte) ([]string, error) {
	var tokens []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if token := strings.TrimSpace(sc.Text()); token != "" {
			tokens = append(tokens, token)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	return tokens, nil
}
