package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier posts reminders to a chat-style webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType  string          `json:"msgtype"`
	Text     webhookText     `json:"text"`
	Reminder ReminderMessage `json:"reminder"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify sends a reminder to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg ReminderMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType:  "text",
		Text:     webhookText{Content: FormatReminder(msg)},
		Reminder: msg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

// FormatReminder renders the plain-text body of a reminder.
func FormatReminder(msg ReminderMessage) string {
	var b strings.Builder
	b.WriteString("[Payment Reminder]\n")
	if msg.Title != "" {
		fmt.Fprintf(&b, "Obligation: %s\n", msg.Title)
	}
	if msg.Kind != "" {
		fmt.Fprintf(&b, "Kind: %s\n", msg.Kind)
	}
	if msg.BusinessID != "" {
		fmt.Fprintf(&b, "Business: %s\n", msg.BusinessID)
	}
	if msg.Amount != "" {
		amount := msg.Amount
		if msg.Currency != "" {
			amount = msg.Currency + " " + amount
		}
		fmt.Fprintf(&b, "Amount: %s\n", amount)
	}
	if msg.NextDueDate != "" {
		fmt.Fprintf(&b, "Due: %s\n", msg.NextDueDate)
	}
	return strings.TrimSpace(b.String())
}
