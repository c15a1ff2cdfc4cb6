package integration_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billapp "plaza-billing/internal/billing/application"
	billing "plaza-billing/internal/billing/domain"
	billpg "plaza-billing/internal/billing/infrastructure/postgres"
	dirpg "plaza-billing/internal/directory/infrastructure/postgres"
	invoiceapp "plaza-billing/internal/invoice/application"
	invoice "plaza-billing/internal/invoice/domain"
	invoicepg "plaza-billing/internal/invoice/infrastructure/postgres"
	obligationapp "plaza-billing/internal/obligations/application"
	obligations "plaza-billing/internal/obligations/domain"
	obligationpg "plaza-billing/internal/obligations/infrastructure/postgres"
	"plaza-billing/internal/platform/migration"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	path, err := filepath.Abs(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	migrator, err := migration.New(db, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	return db
}

func TestUtilityGenerationSettlementAndInvoice(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	businessID := "biz-" + uuid.NewString()[:8]
	meterID := "mtr-" + uuid.NewString()[:8]
	_, err := db.ExecContext(ctx, `INSERT INTO businesses (id, name, unit_code, category) VALUES ($1, 'Blue Tea', 'S-12', 'Food')`, businessID)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, `DELETE FROM invoice_exports WHERE bill_id IN (SELECT id FROM bills WHERE business_id = $1)`, businessID)
		_, _ = db.ExecContext(ctx, `DELETE FROM bills WHERE business_id = $1`, businessID)
		_, _ = db.ExecContext(ctx, `DELETE FROM obligation_configs WHERE business_id = $1`, businessID)
		_, _ = db.ExecContext(ctx, `DELETE FROM meter_readings WHERE meter_id = $1`, meterID)
		_, _ = db.ExecContext(ctx, `DELETE FROM businesses WHERE id = $1`, businessID)
	})

	configs := obligationpg.NewConfigRepository(db)
	readings := obligationpg.NewReadingSource(db)
	bills := billpg.NewBillRepository(db)

	created := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	svc, err := obligationapp.NewService(configs, fixedClock{now: created})
	require.NoError(t, err)
	cfg, err := svc.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindUtility,
		BusinessID:   businessID,
		MeterID:      meterID,
		Title:        "Electricity",
		BaseAmount:   decimal.RequireFromString("10.5"),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		AutoGenerate: true,
	})
	require.NoError(t, err)

	require.NoError(t, readings.Record(ctx, meterID, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(120)))
	require.NoError(t, readings.Record(ctx, meterID, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(175)))

	gen, err := obligationapp.NewGenerator(configs, readings, zap.NewNop())
	require.NoError(t, err)
	runAt := time.Date(2024, 2, 1, 6, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	reports := make([]*obligationapp.Report, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], _ = gen.GenerateDue(ctx, runAt)
		}(i)
	}
	wg.Wait()

	created0 := 0
	for _, r := range reports {
		require.NotNil(t, r)
		for _, res := range r.Results {
			if res.ConfigID == cfg.ID && res.Outcome == obligationapp.OutcomeCreated {
				created0++
			}
		}
	}
	assert.Equal(t, 1, created0)

	stored, err := configs.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", stored.NextDueDate.Format("2006-01-02"))
	assert.Equal(t, 1, stored.OccurrenceCount)

	list, err := bills.List(ctx, billing.ListFilter{BusinessID: businessID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	bill := list[0]
	assert.True(t, bill.Units.Equal(decimal.NewFromInt(55)))
	assert.True(t, bill.Amount.Equal(decimal.RequireFromString("577.5")))

	policy := billapp.DefaultPolicy()
	policy.LateSurcharge = map[string]string{"utility": "50"}
	billService, err := billapp.NewService(bills, policy, fixedClock{now: time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)}, zap.NewNop())
	require.NoError(t, err)
	stmt, err := billService.Statement(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, stmt.Settlement.Arrears.IsZero())
	assert.True(t, stmt.Settlement.PayAfterDueDate.Equal(decimal.RequireFromString("627.5")))

	dir := dirpg.NewDirectory(db)
	invoices, err := invoiceapp.NewService(billService, dir, dir, invoicepg.NewExportRepository(db), zap.NewNop())
	require.NoError(t, err)
	out, err := invoices.Render(ctx, bill.ID, invoiceapp.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, invoice.SanitizeID(bill.BillNumber)+".pdf", out.Filename)

	ident, ok := out.Document.Section(invoice.SectionCustomerIdentity)
	require.True(t, ok)
	assert.Equal(t, "S-12", ident.Rows[1].Cells[0].Text)

	var exports int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoice_exports WHERE bill_id = $1`, bill.ID).Scan(&exports))
	assert.Equal(t, 1, exports)
}
