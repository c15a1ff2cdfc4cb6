package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	billing "plaza-billing/internal/billing/domain"
)

const billColumns = `id, business_id, obligation_id, kind, expense_type, bill_number,
	period_date, issue_date, due_date, status, amount, meter_id,
	previous_reading, current_reading, units, rate_per_unit, monthly_rent,
	created_at, updated_at`

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// BillRepository persists bills in Postgres.
type BillRepository struct {
	db *sql.DB
}

// NewBillRepository constructs a repository.
func NewBillRepository(db *sql.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create inserts a bill.
func (r *BillRepository) Create(ctx context.Context, bill *billing.BillRecord) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	return InsertBill(ctx, r.db, bill)
}

// InsertBill writes a bill through exec, so callers can include it in a transaction.
func InsertBill(ctx context.Context, exec Execer, bill *billing.BillRecord) error {
	if bill == nil {
		return billing.ErrNilBill
	}
	_, err := exec.ExecContext(ctx, `
INSERT INTO bills (`+billColumns+`) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)`,
		bill.ID, bill.BusinessID, nullString(bill.ObligationID), string(bill.Kind), bill.ExpenseType, bill.BillNumber,
		bill.PeriodDate, bill.IssueDate, bill.DueDate, string(bill.Status), bill.Amount, bill.MeterID,
		bill.PreviousReading, bill.CurrentReading, bill.Units, bill.RatePerUnit, bill.MonthlyRent,
		bill.CreatedAt, bill.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", billing.ErrDuplicateBill, bill.BillNumber)
		}
		return fmt.Errorf("%w: insert bill: %w", billing.ErrPersistence, err)
	}
	return nil
}

// Get loads a bill by id.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.BillRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrBillNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get bill: %w", billing.ErrPersistence, err)
	}
	return bill, nil
}

// List returns bills matching the filter, newest period first.
func (r *BillRepository) List(ctx context.Context, filter billing.ListFilter) ([]billing.BillRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.BusinessID != "" {
		add("business_id = $%d", filter.BusinessID)
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	query := `SELECT ` + billColumns + ` FROM bills`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY period_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return r.queryBills(ctx, query, args...)
}

// History returns prior bills of a business and kind with a period before the date.
func (r *BillRepository) History(ctx context.Context, businessID string, kind billing.Kind, before time.Time, limit int) (billing.History, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("bill repo: nil db")
	}
	if limit <= 0 {
		limit = billing.HistoryLimit
	}
	bills, err := r.queryBills(ctx, `
SELECT `+billColumns+`
FROM bills
WHERE business_id = $1 AND kind = $2 AND period_date < $3
ORDER BY period_date DESC, created_at DESC
LIMIT $4`, businessID, string(kind), before, limit)
	if err != nil {
		return nil, err
	}
	history := make(billing.History, 0, len(bills))
	for _, bill := range bills {
		history = append(history, billing.HistoryEntryFromBill(bill))
	}
	return history, nil
}

// UpdateStatus changes the payment status of a bill.
func (r *BillRepository) UpdateStatus(ctx context.Context, id string, status billing.PaymentStatus, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("bill repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE bills SET status = $2, updated_at = $3
WHERE id = $1`, id, string(status), at.UTC())
	if err != nil {
		return fmt.Errorf("%w: update bill status: %w", billing.ErrPersistence, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update bill status: %w", billing.ErrPersistence, err)
	}
	if affected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

func (r *BillRepository) queryBills(ctx context.Context, query string, args ...any) ([]billing.BillRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query bills: %w", billing.ErrPersistence, err)
	}
	defer rows.Close()

	var result []billing.BillRecord
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan bill: %w", billing.ErrPersistence, err)
		}
		result = append(result, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query bills: %w", billing.ErrPersistence, err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*billing.BillRecord, error) {
	var (
		bill         billing.BillRecord
		obligationID sql.NullString
		kind, status string
	)
	err := row.Scan(
		&bill.ID, &bill.BusinessID, &obligationID, &kind, &bill.ExpenseType, &bill.BillNumber,
		&bill.PeriodDate, &bill.IssueDate, &bill.DueDate, &status, &bill.Amount, &bill.MeterID,
		&bill.PreviousReading, &bill.CurrentReading, &bill.Units, &bill.RatePerUnit, &bill.MonthlyRent,
		&bill.CreatedAt, &bill.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	bill.ObligationID = obligationID.String
	bill.Kind = billing.Kind(kind)
	bill.Status = billing.PaymentStatus(status)
	bill.PeriodDate = bill.PeriodDate.UTC()
	bill.IssueDate = bill.IssueDate.UTC()
	bill.DueDate = bill.DueDate.UTC()
	return &bill, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
