package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TelegramService sends admin notifications. Unconfigured instances
// no-op so the order path never depends on Telegram availability.
type TelegramService struct {
	botToken    string
	adminChatID string
	client      *http.Client
	log         *zap.SugaredLogger
}

// NewTelegramService creates a TelegramService.
func NewTelegramService(botToken, adminChatID string, log *zap.SugaredLogger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Warnw("telegram send failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warnw("telegram returned unexpected status", "status", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifyOrderCompleted tells the admin chat about a completed payment.
// Fire-and-forget: failures are logged, never propagated.
func (s *TelegramService) NotifyOrderCompleted(orderID, amount string, txHash *string) {
	if s.adminChatID == "" {
		return
	}

	hash := ""
	if txHash != nil {
		hash = *txHash
	}
	text := fmt.Sprintf("<b>Payment completed</b>\nOrder: <code>%s</code>\nAmount: %s\nTx: <code>%s</code>", orderID, amount, hash)

	if err := s.SendMessage(s.adminChatID, text); err != nil {
		s.log.Warnw("order completion notification failed", "order_id", orderID, "error", err)
	}
}
