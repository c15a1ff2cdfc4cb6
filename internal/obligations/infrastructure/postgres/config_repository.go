package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	billing "plaza-billing/internal/billing/domain"
	billpg "plaza-billing/internal/billing/infrastructure/postgres"
	obligations "plaza-billing/internal/obligations/domain"
)

const configColumns = `id, kind, expense_type, business_id, meter_id, title, description,
	base_amount, frequency, next_due_date, anchor_day, reminder_date, auto_generate,
	status, grace_days, occurrence_count, created_at, updated_at`

// ConfigRepository persists obligation configs in Postgres.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository constructs a repository.
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create inserts a config.
func (r *ConfigRepository) Create(ctx context.Context, cfg *obligations.Config) error {
	if r == nil || r.db == nil {
		return errors.New("obligation repo: nil db")
	}
	if cfg == nil {
		return obligations.ErrNilConfig
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO obligation_configs (`+configColumns+`) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)`,
		cfg.ID, string(cfg.Kind), cfg.ExpenseType, cfg.BusinessID, cfg.MeterID, cfg.Title, cfg.Description,
		cfg.BaseAmount, string(cfg.Frequency), cfg.NextDueDate, cfg.AnchorDay, nullTime(cfg.ReminderDate), cfg.AutoGenerate,
		string(cfg.Status), cfg.GraceDays, cfg.OccurrenceCount, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert config: %w", billing.ErrPersistence, err)
	}
	return nil
}

// Get loads a config.
func (r *ConfigRepository) Get(ctx context.Context, id string) (*obligations.Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("obligation repo: nil db")
	}
	return getConfig(ctx, r.db, `SELECT `+configColumns+` FROM obligation_configs WHERE id = $1`, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getConfig(ctx context.Context, q queryRower, query, id string) (*obligations.Config, error) {
	cfg, err := scanConfig(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, obligations.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get config: %w", billing.ErrPersistence, err)
	}
	return cfg, nil
}

// List returns configs matching the filter ordered by next due date.
func (r *ConfigRepository) List(ctx context.Context, filter obligations.ListFilter) ([]obligations.Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("obligation repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.BusinessID != "" {
		add("business_id = $%d", filter.BusinessID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	query := `SELECT ` + configColumns + ` FROM obligation_configs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY next_due_date, id`
	return r.queryConfigs(ctx, query, args...)
}

// Update stores operator-editable fields. The frequency guard is repeated in SQL so a
// concurrent materialisation cannot slip between the check and the write.
func (r *ConfigRepository) Update(ctx context.Context, cfg *obligations.Config) error {
	if r == nil || r.db == nil {
		return errors.New("obligation repo: nil db")
	}
	if cfg == nil {
		return obligations.ErrNilConfig
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE obligation_configs SET
	title = $2, description = $3, base_amount = $4, frequency = $5,
	auto_generate = $6, status = $7, grace_days = $8, updated_at = $9
WHERE id = $1 AND (occurrence_count = 0 OR frequency = $5)`,
		cfg.ID, cfg.Title, cfg.Description, cfg.BaseAmount, string(cfg.Frequency),
		cfg.AutoGenerate, string(cfg.Status), cfg.GraceDays, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: update config: %w", billing.ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update config: %w", billing.ErrPersistence, err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, cfg.ID); err != nil {
		return err
	}
	return fmt.Errorf("%w: frequency is fixed once occurrences exist", billing.ErrInvalidConfiguration)
}

// ListDue returns active auto-generating configs due at now.
func (r *ConfigRepository) ListDue(ctx context.Context, now time.Time) ([]obligations.Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("obligation repo: nil db")
	}
	return r.queryConfigs(ctx, `
SELECT `+configColumns+`
FROM obligation_configs
WHERE status = 'active' AND auto_generate AND next_due_date <= $1
ORDER BY next_due_date, id`, now.UTC())
}

// ListReminders returns active configs whose reminder date has been reached.
func (r *ConfigRepository) ListReminders(ctx context.Context, now time.Time) ([]obligations.Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("obligation repo: nil db")
	}
	return r.queryConfigs(ctx, `
SELECT `+configColumns+`
FROM obligation_configs
WHERE status = 'active' AND reminder_date IS NOT NULL AND reminder_date <= $1
ORDER BY reminder_date, id`, now.UTC())
}

// Materialize locks the config row, runs fn, then inserts the bill and stores the
// advanced config in the same transaction.
func (r *ConfigRepository) Materialize(ctx context.Context, id string, fn obligations.MaterializeFunc) (*billing.BillRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("obligation repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %w", billing.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	cfg, err := getConfig(ctx, tx, `SELECT `+configColumns+` FROM obligation_configs WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	bill, advanced, err := fn(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	if bill == nil || advanced == nil {
		return nil, obligations.ErrNotDue
	}
	if err := billpg.InsertBill(ctx, tx, bill); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE obligation_configs SET
	next_due_date = $2, reminder_date = $3, occurrence_count = $4, updated_at = $5
WHERE id = $1`,
		advanced.ID, advanced.NextDueDate, nullTime(advanced.ReminderDate), advanced.OccurrenceCount, advanced.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: advance config: %w", billing.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", billing.ErrPersistence, err)
	}
	return bill, nil
}

func (r *ConfigRepository) queryConfigs(ctx context.Context, query string, args ...any) ([]obligations.Config, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query configs: %w", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var result []obligations.Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan config: %w", billing.ErrPersistence, err)
		}
		result = append(result, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query configs: %w", billing.ErrPersistence, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*obligations.Config, error) {
	var (
		cfg                     obligations.Config
		kind, frequency, status string
		reminder                sql.NullTime
	)
	err := row.Scan(
		&cfg.ID, &kind, &cfg.ExpenseType, &cfg.BusinessID, &cfg.MeterID, &cfg.Title, &cfg.Description,
		&cfg.BaseAmount, &frequency, &cfg.NextDueDate, &cfg.AnchorDay, &reminder, &cfg.AutoGenerate,
		&status, &cfg.GraceDays, &cfg.OccurrenceCount, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.Kind = billing.Kind(kind)
	cfg.Frequency = obligations.Frequency(frequency)
	cfg.Status = obligations.Status(status)
	cfg.NextDueDate = cfg.NextDueDate.UTC()
	if reminder.Valid {
		t := reminder.Time.UTC()
		cfg.ReminderDate = &t
	}
	return &cfg, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
