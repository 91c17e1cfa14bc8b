package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification describes an epoch that has just started.
type Notification struct {
	Epoch       int
	TotalEpochs int
	Previous    int
	APYPercent  decimal.Decimal
	RewardPool  decimal.Decimal
	EpochStart  time.Time
	EpochEnd    time.Time
	Final       bool
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier posts messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Info().Int("epoch", note.Epoch).Msg("epoch notification sent")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Final {
		builder.WriteString("[$AIR] Final epoch complete\n")
	} else {
		builder.WriteString(fmt.Sprintf("[$AIR] Epoch %d of %d started\n", note.Epoch, note.TotalEpochs))
	}
	builder.WriteString(fmt.Sprintf("APY: %s%%\n", note.APYPercent.StringFixed(1)))
	builder.WriteString(fmt.Sprintf("Reward pool: %s $AIR\n", note.RewardPool.StringFixed(0)))
	builder.WriteString(fmt.Sprintf("Start: %s UTC\n", note.EpochStart.UTC().Format(time.RFC1123)))
	builder.WriteString(fmt.Sprintf("End: %s UTC\n", note.EpochEnd.UTC().Format(time.RFC1123)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
