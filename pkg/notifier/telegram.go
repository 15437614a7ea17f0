package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// Config carries the Telegram notifier settings.
type Config struct {
	Enabled       bool
	BotToken      string
	ChatIDs       []string
	RetryAttempts int
	Timeout       time.Duration
}

// TelegramNotifier fans a message out to every configured chat through the
// Bot API, retrying each chat independently. One unreachable chat never
// blocks the others.
type TelegramNotifier struct {
	config Config
	apiURL string
	client *http.Client
	logger *logger.Logger
}

func NewTelegramNotifier(config Config) *TelegramNotifier {
	if config.RetryAttempts < 1 {
		config.RetryAttempts = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &TelegramNotifier{
		config: config,
		apiURL: "https://api.telegram.org",
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.New("telegram"),
	}
}

// Send delivers the message to every chat. Returns per-chat delivery status;
// an empty map means notifications are disabled or no chats are configured.
func (t *TelegramNotifier) Send(ctx context.Context, message string) map[string]bool {
	if !t.config.Enabled {
		t.logger.DebugBg("Notifications disabled, skipping send")
		return nil
	}
	if len(t.config.ChatIDs) == 0 {
		t.logger.WarnBg("No chat IDs configured")
		return nil
	}

	results := make(map[string]bool, len(t.config.ChatIDs))
	delivered := 0
	for _, chatID := range t.config.ChatIDs {
		ok := t.sendToChat(ctx, chatID, message)
		results[chatID] = ok
		if ok {
			delivered++
		}
	}

	t.logger.InfoBg("Telegram message sent: %d/%d delivered", delivered, len(t.config.ChatIDs))
	return results
}

func (t *TelegramNotifier) sendToChat(ctx context.Context, chatID, message string) bool {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.config.BotToken)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		t.logger.ErrorBg("Failed to marshal message for chat %s: %v", redactChatID(chatID), err)
		return false
	}

	for attempt := 1; attempt <= t.config.RetryAttempts; attempt++ {
		err := t.post(ctx, endpoint, payload)
		if err == nil {
			t.logger.DebugBg("Message delivered to chat %s (attempt %d)", redactChatID(chatID), attempt)
			return true
		}

		if attempt == t.config.RetryAttempts {
			t.logger.ErrorBg("All attempts failed for chat %s: %v", redactChatID(chatID), err)
			break
		}
		t.logger.WarnBg("Attempt %d failed for chat %s, retrying: %v", attempt, redactChatID(chatID), err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	return false
}

func (t *TelegramNotifier) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Stats reports the notifier configuration for the operator view.
func (t *TelegramNotifier) Stats() map[string]any {
	return map[string]any{
		"enabled":        t.config.Enabled,
		"chat_count":     len(t.config.ChatIDs),
		"token_set":      t.config.BotToken != "",
		"retry_attempts": t.config.RetryAttempts,
	}
}

// redactChatID keeps only the last four characters for logging.
func redactChatID(chatID string) string {
	if len(chatID) <= 4 {
		return chatID
	}
	return "..." + chatID[len(chatID)-4:]
}
