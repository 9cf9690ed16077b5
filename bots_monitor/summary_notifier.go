package bot

// Package bot sends check-in run summaries to Telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"earnos-checkin/internal/features/checkin"
	log "earnos-checkin/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// SummaryNotifier posts one message per finished run. It implements checkin.Reporter.
type SummaryNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewSummaryNotifier authorizes the bot (getMe) and validates chatID.
// apiEndpoint is tgbotapi.APIEndpoint unless a test server is used.
func NewSummaryNotifier(botToken, chatID, apiEndpoint string) (*SummaryNotifier, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return nil, err
	}
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, apiEndpoint, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	log.LogInfo("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &SummaryNotifier{bot: bot, chatID: id}, nil
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	return id, nil
}

func (n *SummaryNotifier) Report(ctx context.Context, s checkin.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatSummary(s))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send summary message: %w", err)
	}
	log.LogInfo("Run summary sent to Telegram", zap.String("run_id", s.RunID), zap.Int64("chatID", n.chatID))
	return nil
}

// FormatSummary renders the HTML message body for a run.
func FormatSummary(s checkin.Summary) string {
	var b strings.Builder

	icon := "✅"
	if s.Successes < s.Total {
		icon = "⚠️"
	}
	fmt.Fprintf(&b, "%s <b>Check-in Summary</b> (%s)\n", icon, html.EscapeString(string(s.Trigger)))
	fmt.Fprintf(&b, "%d/%d accounts successful\n", s.Successes, s.Total)

	if failed := s.FailedAccounts(); len(failed) > 0 {
		parts := make([]string, len(failed))
		for i, a := range failed {
			parts[i] = strconv.Itoa(a)
		}
		fmt.Fprintf(&b, "Failed accounts: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "<i>%s</i>", s.StartedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}
