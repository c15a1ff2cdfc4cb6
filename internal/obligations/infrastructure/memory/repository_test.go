package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "plaza-billing/internal/billing/domain"
	billmemory "plaza-billing/internal/billing/infrastructure/memory"
	obligations "plaza-billing/internal/obligations/domain"
)

func rentConfig(t *testing.T, repo *ConfigRepository) *obligations.Config {
	t.Helper()
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	cfg, err := obligations.NewConfig(obligations.NewConfigInput{
		Kind:         billing.KindRent,
		BusinessID:   "biz-7",
		Title:        "Kiosk rent",
		BaseAmount:   decimal.NewFromInt(8000),
		Frequency:    obligations.FrequencyMonthly,
		NextDueDate:  created,
		AutoGenerate: true,
	}, created)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), cfg))
	return cfg
}

func advanceOnce(ctx context.Context, locked obligations.Config) (*billing.BillRecord, *obligations.Config, error) {
	bill, err := obligations.BuildOccurrence(locked, nil, locked.NextDueDate)
	if err != nil {
		return nil, nil, err
	}
	next, err := obligations.Advance(locked)
	if err != nil {
		return nil, nil, err
	}
	advanced := locked
	advanced.ApplyAdvance(next, locked.NextDueDate)
	return bill, &advanced, nil
}

func TestMaterializeCommitsBillAndConfigTogether(t *testing.T) {
	bills := billmemory.NewBillRepository()
	repo := NewConfigRepository(bills)
	cfg := rentConfig(t, repo)
	ctx := context.Background()
	const runs = 24

	billCount := func() int {
		list, err := bills.List(ctx, billing.ListFilter{BusinessID: "biz-7"})
		assert.NoError(t, err)
		return len(list)
	}
	occurrences := func() int {
		stored, err := repo.Get(ctx, cfg.ID)
		if !assert.NoError(t, err) {
			return 0
		}
		return stored.OccurrenceCount
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(configFirst bool) {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if configFirst {
					n := occurrences()
					assert.GreaterOrEqual(t, billCount(), n)
				} else {
					n := billCount()
					assert.GreaterOrEqual(t, occurrences(), n)
				}
			}
		}(i%2 == 0)
	}

	for i := 0; i < runs; i++ {
		_, err := repo.Materialize(ctx, cfg.ID, advanceOnce)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	assert.Equal(t, runs, billCount())
	assert.Equal(t, runs, occurrences())
}

func TestMaterializeRollsBackOnDuplicateBill(t *testing.T) {
	bills := billmemory.NewBillRepository()
	repo := NewConfigRepository(bills)
	cfg := rentConfig(t, repo)
	ctx := context.Background()

	first, err := repo.Materialize(ctx, cfg.ID, advanceOnce)
	require.NoError(t, err)

	_, err = repo.Materialize(ctx, cfg.ID, func(ctx context.Context, locked obligations.Config) (*billing.BillRecord, *obligations.Config, error) {
		dup := *first
		dup.ID = "other-id"
		advanced := locked
		advanced.OccurrenceCount++
		return &dup, &advanced, nil
	})
	require.True(t, errors.Is(err, billing.ErrDuplicateBill))

	stored, err := repo.Get(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.OccurrenceCount)
	list, err := bills.List(ctx, billing.ListFilter{BusinessID: "biz-7"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
