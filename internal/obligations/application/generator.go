package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billing "plaza-billing/internal/billing/domain"
	obligations "plaza-billing/internal/obligations/domain"
	"plaza-billing/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Outcome of a single occurrence within a generation run.
const (
	OutcomeCreated = metrics.OccurrenceCreated
	OutcomeSkipped = metrics.OccurrenceSkipped
	OutcomeFailed  = metrics.OccurrenceFailed
)

// OccurrenceResult reports what happened to one due config.
type OccurrenceResult struct {
	ConfigID    string       `json:"config_id"`
	Kind        billing.Kind `json:"kind"`
	Title       string       `json:"title"`
	Outcome     string       `json:"outcome"`
	BillID      string       `json:"bill_id,omitempty"`
	BillNumber  string       `json:"bill_number,omitempty"`
	NextDueDate *time.Time   `json:"next_due_date,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Report summarises a generation run.
type Report struct {
	RunAt     time.Time `json:"run_at"`
	Created   int       `json:"created"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Cancelled bool      `json:"cancelled"`
	// RemindersSent is filled in by callers that also dispatch reminders.
	RemindersSent int                `json:"reminders_sent"`
	Results       []OccurrenceResult `json:"results"`
}

func (r *Report) add(result OccurrenceResult) {
	switch result.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Results = append(r.Results, result)
}

// Generator materialises bills for due obligation configs.
type Generator struct {
	repo     obligations.Repository
	readings obligations.ReadingSource
	logger   *zap.Logger
}

// NewGenerator constructs a Generator.
func NewGenerator(repo obligations.Repository, readings obligations.ReadingSource, logger *zap.Logger) (*Generator, error) {
	if repo == nil {
		return nil, errors.New("obligation generator: nil repository")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{repo: repo, readings: readings, logger: logger.Named("generator")}, nil
}

// GenerateDue materialises one occurrence for every config due at now. A failing
// occurrence is reported and does not stop the others. Cancellation is honoured
// between configs; the report covers what ran before it.
func (g *Generator) GenerateDue(ctx context.Context, now time.Time) (*Report, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveGenerateRun(result, time.Since(start))
	}()

	report := &Report{RunAt: now.UTC()}
	due, err := g.repo.ListDue(ctx, now)
	if err != nil {
		result = metrics.ResultError
		return report, err
	}

	for _, cfg := range due {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			result = metrics.ResultError
			g.logger.Warn("generation cancelled", zap.Int("processed", len(report.Results)), zap.Int("due", len(due)))
			return report, err
		}
		occurrence := g.generateOne(ctx, cfg, now)
		metrics.IncOccurrence(string(cfg.Kind), occurrence.Outcome)
		report.add(occurrence)
	}

	g.logger.Info("generation finished",
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (g *Generator) generateOne(ctx context.Context, cfg obligations.Config, now time.Time) OccurrenceResult {
	res := OccurrenceResult{ConfigID: cfg.ID, Kind: cfg.Kind, Title: cfg.Title}

	var next time.Time
	bill, err := g.repo.Materialize(ctx, cfg.ID, func(ctx context.Context, locked obligations.Config) (*billing.BillRecord, *obligations.Config, error) {
		due, err := obligations.IsDue(locked, now)
		if err != nil {
			return nil, nil, err
		}
		if !due {
			return nil, nil, obligations.ErrNotDue
		}
		readings, err := g.readingsFor(ctx, locked)
		if err != nil {
			return nil, nil, err
		}
		bill, err := obligations.BuildOccurrence(locked, readings, now)
		if err != nil {
			return nil, nil, err
		}
		next, err = obligations.Advance(locked)
		if err != nil {
			return nil, nil, err
		}
		advanced := locked
		advanced.ApplyAdvance(next, now)
		return bill, &advanced, nil
	})

	switch {
	case err == nil:
		res.Outcome = OutcomeCreated
		res.BillID = bill.ID
		res.BillNumber = bill.BillNumber
		res.NextDueDate = &next
		g.logger.Info("occurrence created",
			zap.String("config_id", cfg.ID),
			zap.String("bill_number", bill.BillNumber),
			zap.Time("next_due_date", next),
		)
	case errors.Is(err, obligations.ErrNotDue):
		res.Outcome = OutcomeSkipped
	default:
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		g.logger.Error("occurrence failed", zap.String("config_id", cfg.ID), zap.Error(err))
	}
	return res
}

func (g *Generator) readingsFor(ctx context.Context, cfg obligations.Config) (*obligations.MeterReadings, error) {
	if cfg.Kind != billing.KindUtility {
		return nil, nil
	}
	if g.readings == nil {
		return nil, fmt.Errorf("%w: %w", billing.ErrInvalidInput, obligations.ErrNoReadings)
	}
	readings, err := g.readings.LatestReadings(ctx, cfg.MeterID, cfg.NextDueDate)
	if err != nil {
		if errors.Is(err, obligations.ErrNoReadings) {
			return nil, fmt.Errorf("%w: %w", billing.ErrInvalidInput, err)
		}
		return nil, err
	}
	return &readings, nil
}
