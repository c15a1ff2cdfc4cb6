package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billing "plaza-billing/internal/billing/domain"
	billmemory "plaza-billing/internal/billing/infrastructure/memory"
	obligations "plaza-billing/internal/obligations/domain"
	"plaza-billing/internal/obligations/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	bills    *billmemory.BillRepository
	configs  *memory.ConfigRepository
	readings *memory.ReadingStore
	service  *Service
	gen      *Generator
}

func newFixture(t *testing.T, created time.Time) fixture {
	t.Helper()
	bills := billmemory.NewBillRepository()
	configs := memory.NewConfigRepository(bills)
	readings := memory.NewReadingStore()
	svc, err := NewService(configs, fixedClock{now: created})
	require.NoError(t, err)
	gen, err := NewGenerator(configs, readings, zap.NewNop())
	require.NoError(t, err)
	return fixture{bills: bills, configs: configs, readings: readings, service: svc, gen: gen}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateDueCreatesRentAndAdvances(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	cfg, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop 12 rent",
		BaseAmount:   decimal.NewFromInt(25000),
		Frequency:    obligations.FrequencyQuarterly,
		NextDueDate:  day(2024, 1, 31),
		AutoGenerate: true,
	})
	require.NoError(t, err)

	report, err := f.gen.GenerateDue(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, OutcomeCreated, res.Outcome)
	require.NotNil(t, res.NextDueDate)
	assert.Equal(t, day(2024, 4, 30), *res.NextDueDate)

	stored, err := f.configs.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 4, 30), stored.NextDueDate)
	assert.Equal(t, 1, stored.OccurrenceCount)

	bill, err := f.bills.Get(ctx, res.BillID)
	require.NoError(t, err)
	assert.Equal(t, billing.KindRent, bill.Kind)
	assert.True(t, bill.Amount.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, cfg.ID, bill.ObligationID)

	// Nothing is due again until the advanced date.
	report, err = f.gen.GenerateDue(ctx, day(2024, 3, 1))
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestGenerateDueUsesServiceGraceDays(t *testing.T) {
	bills := billmemory.NewBillRepository()
	configs := memory.NewConfigRepository(bills)
	svc, err := NewService(configs, fixedClock{now: day(2024, 1, 1)}, WithDefaultGraceDays(7))
	require.NoError(t, err)
	gen, err := NewGenerator(configs, memory.NewReadingStore(), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	cfg, err := svc.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop 4 rent",
		BaseAmount:   decimal.NewFromInt(12000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 5),
		AutoGenerate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.GraceDays)

	explicit, err := svc.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-2",
		Title:        "Shop 5 rent",
		BaseAmount:   decimal.NewFromInt(9000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 5),
		AutoGenerate: true,
		GraceDays:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, explicit.GraceDays)

	report, err := gen.GenerateDue(ctx, day(2024, 1, 5))
	require.NoError(t, err)
	require.Equal(t, 2, report.Created)

	want := map[string]time.Time{
		cfg.ID:      day(2024, 1, 12),
		explicit.ID: day(2024, 1, 8),
	}
	for _, res := range report.Results {
		bill, err := bills.Get(ctx, res.BillID)
		require.NoError(t, err)
		assert.Equal(t, want[res.ConfigID], bill.DueDate, res.ConfigID)
	}
}

func TestGenerateDueUtilityWithoutReadingsFailsAndKeepsConfig(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	utility, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindUtility,
		BusinessID:   "biz-1",
		MeterID:      "m-1",
		Title:        "Electricity",
		BaseAmount:   decimal.RequireFromString("10.5"),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 31),
		AutoGenerate: true,
	})
	require.NoError(t, err)
	expense, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindExpense,
		ExpenseType:  obligations.ExpenseInsurance,
		Title:        "Building insurance",
		BaseAmount:   decimal.NewFromInt(9000),
		Frequency:    obligations.FrequencyAnnual,
		NextDueDate:  day(2024, 1, 31),
		AutoGenerate: true,
	})
	require.NoError(t, err)

	report, err := f.gen.GenerateDue(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)

	for _, res := range report.Results {
		switch res.ConfigID {
		case utility.ID:
			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.NotEmpty(t, res.Error)
		case expense.ID:
			assert.Equal(t, OutcomeCreated, res.Outcome)
		}
	}

	stored, err := f.configs.Get(ctx, utility.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 31), stored.NextDueDate)
	assert.Zero(t, stored.OccurrenceCount)

	bills, err := f.bills.List(ctx, billing.ListFilter{Kind: billing.KindUtility})
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestGenerateDueUtilityFromReadings(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	cfg, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindUtility,
		BusinessID:   "biz-1",
		MeterID:      "m-1",
		Title:        "Electricity",
		BaseAmount:   decimal.RequireFromString("10.5"),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 31),
		AutoGenerate: true,
	})
	require.NoError(t, err)
	require.NoError(t, f.readings.Record(ctx, "m-1", day(2023, 12, 31), decimal.NewFromInt(1200)))
	require.NoError(t, f.readings.Record(ctx, "m-1", day(2024, 1, 30), decimal.NewFromInt(1255)))

	report, err := f.gen.GenerateDue(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)

	bill, err := f.bills.Get(ctx, report.Results[0].BillID)
	require.NoError(t, err)
	assert.True(t, bill.Units.Equal(decimal.NewFromInt(55)))
	assert.True(t, bill.Amount.Equal(decimal.RequireFromString("577.5")))
	assert.Equal(t, cfg.ID, bill.ObligationID)
}

func TestGenerateDueSkipsPausedConfigs(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	cfg, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Kiosk rent",
		BaseAmount:   decimal.NewFromInt(500),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 15),
		AutoGenerate: true,
	})
	require.NoError(t, err)
	_, err = f.service.Pause(ctx, cfg.ID)
	require.NoError(t, err)

	report, err := f.gen.GenerateDue(ctx, day(2024, 2, 1))
	require.NoError(t, err)
	assert.Empty(t, report.Results)
}

func TestGenerateDueConcurrentRunsCreateOneBill(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	_, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop 1 rent",
		BaseAmount:   decimal.NewFromInt(1000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 10),
		AutoGenerate: true,
	})
	require.NoError(t, err)

	const runs = 8
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.gen.GenerateDue(ctx, day(2024, 1, 20))
		}()
	}
	wg.Wait()

	bills, err := f.bills.List(ctx, billing.ListFilter{BusinessID: "biz-1"})
	require.NoError(t, err)
	assert.Len(t, bills, 1)
}

func TestGenerateDueHonoursCancellation(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop 1 rent",
		BaseAmount:   decimal.NewFromInt(1000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 10),
		AutoGenerate: true,
	})
	require.NoError(t, err)
	cancel()

	report, err := f.gen.GenerateDue(ctx, day(2024, 1, 20))
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)
	assert.Empty(t, report.Results)
}

func TestServiceChangeFrequencyAfterOccurrence(t *testing.T) {
	f := newFixture(t, day(2024, 1, 1))
	ctx := context.Background()
	cfg, err := f.service.Create(ctx, obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop 1 rent",
		BaseAmount:   decimal.NewFromInt(1000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  day(2024, 1, 10),
		AutoGenerate: true,
	})
	require.NoError(t, err)

	updated, err := f.service.ChangeFrequency(ctx, cfg.ID, obligations.FrequencyQuarterly)
	require.NoError(t, err)
	assert.Equal(t, obligations.FrequencyQuarterly, updated.Frequency)

	_, err = f.gen.GenerateDue(ctx, day(2024, 1, 20))
	require.NoError(t, err)

	_, err = f.service.ChangeFrequency(ctx, cfg.ID, obligations.FrequencyMonthly)
	require.ErrorIs(t, err, billing.ErrInvalidConfiguration)

	amended, err := f.service.UpdateAmount(ctx, cfg.ID, decimal.NewFromInt(1200))
	require.NoError(t, err)
	assert.True(t, amended.BaseAmount.Equal(decimal.NewFromInt(1200)))

	stored, err := f.configs.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 4, 10), stored.NextDueDate)
}
