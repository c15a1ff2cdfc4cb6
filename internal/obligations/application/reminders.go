package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	obligations "plaza-billing/internal/obligations/domain"
	"plaza-billing/internal/obligations/notify"
)

// ReminderDispatcher notifies staff about configs whose reminder date has been reached.
type ReminderDispatcher struct {
	repo     obligations.Repository
	notifier notify.Notifier
	currency string
	logger   *zap.Logger
}

// NewReminderDispatcher constructs a ReminderDispatcher.
func NewReminderDispatcher(repo obligations.Repository, notifier notify.Notifier, currency string, logger *zap.Logger) (*ReminderDispatcher, error) {
	if repo == nil {
		return nil, errors.New("reminder dispatcher: nil repository")
	}
	if notifier == nil {
		return nil, errors.New("reminder dispatcher: nil notifier")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderDispatcher{repo: repo, notifier: notifier, currency: currency, logger: logger.Named("reminders")}, nil
}

// Dispatch sends one notification per pending reminder and returns how many were delivered.
// A failed delivery is logged and does not stop the rest.
func (d *ReminderDispatcher) Dispatch(ctx context.Context, now time.Time) (int, error) {
	due, err := d.repo.ListReminders(ctx, now)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, cfg := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		msg := notify.ReminderMessage{
			ConfigID:    cfg.ID,
			Kind:        string(cfg.Kind),
			Title:       cfg.Title,
			BusinessID:  cfg.BusinessID,
			Amount:      cfg.BaseAmount.String(),
			Currency:    d.currency,
			NextDueDate: cfg.NextDueDate.Format(time.DateOnly),
		}
		if cfg.ReminderDate != nil {
			msg.ReminderDate = cfg.ReminderDate.Format(time.DateOnly)
		}
		if err := d.notifier.Notify(ctx, msg); err != nil {
			d.logger.Warn("reminder delivery failed", zap.String("config_id", cfg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
