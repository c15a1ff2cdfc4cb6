package notify

import "context"

// ReminderMessage announces an upcoming obligation.
type ReminderMessage struct {
	ConfigID     string            `json:"config_id"`
	Kind         string            `json:"kind"`
	Title        string            `json:"title"`
	BusinessID   string            `json:"business_id,omitempty"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	NextDueDate  string            `json:"next_due_date"`
	ReminderDate string            `json:"reminder_date"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg ReminderMessage) error
}
