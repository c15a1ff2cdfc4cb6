package obligations

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "plaza-billing/internal/billing/domain"
)

func validInput() NewConfigInput {
	return NewConfigInput{
		Kind:         billing.KindUtility,
		BusinessID:   "biz-9",
		MeterID:      "MTR-9",
		Title:        "Electricity",
		BaseAmount:   decimal.RequireFromString("10.50"),
		Frequency:    FrequencyMonthly,
		NextDueDate:  date(2024, time.February, 1),
		AutoGenerate: true,
	}
}

func TestNewConfig(t *testing.T) {
	now := time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC)
	cfg, err := NewConfig(validInput(), now)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, StatusActive, cfg.Status)
	assert.Equal(t, 1, cfg.AnchorDay)
	assert.Equal(t, 0, cfg.OccurrenceCount)
	assert.Equal(t, billing.DefaultGraceDays, cfg.GraceDays)
}

func TestNewConfig_Rejects(t *testing.T) {
	now := time.Date(2024, time.January, 20, 9, 0, 0, 0, time.UTC)
	cases := map[string]func(in *NewConfigInput){
		"unknown kind":         func(in *NewConfigInput) { in.Kind = "parking" },
		"unknown frequency":    func(in *NewConfigInput) { in.Frequency = "weekly" },
		"missing business":     func(in *NewConfigInput) { in.BusinessID = "" },
		"missing meter":        func(in *NewConfigInput) { in.MeterID = "" },
		"negative amount":      func(in *NewConfigInput) { in.BaseAmount = decimal.NewFromInt(-1) },
		"due before creation":  func(in *NewConfigInput) { in.NextDueDate = date(2024, time.January, 19) },
		"missing due date":     func(in *NewConfigInput) { in.NextDueDate = time.Time{} },
		"missing title":        func(in *NewConfigInput) { in.Title = "" },
		"unknown expense type": func(in *NewConfigInput) { in.Kind = billing.KindExpense; in.ExpenseType = "lottery" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := NewConfig(in, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, billing.ErrInvalidConfiguration))
		})
	}
}

func TestChangeFrequency_FixedAfterFirstOccurrence(t *testing.T) {
	cfg := activeConfig(FrequencyMonthly, date(2024, time.January, 1))
	require.NoError(t, cfg.ChangeFrequency(FrequencyQuarterly, time.Now()))
	assert.Equal(t, FrequencyQuarterly, cfg.Frequency)

	cfg.OccurrenceCount = 1
	err := cfg.ChangeFrequency(FrequencyAnnual, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInvalidConfiguration))
	assert.Equal(t, FrequencyQuarterly, cfg.Frequency)
}

func TestBuildOccurrence(t *testing.T) {
	issued := date(2024, time.March, 1)

	rent := activeConfig(FrequencyMonthly, date(2024, time.March, 1))
	bill, err := BuildOccurrence(rent, nil, issued)
	require.NoError(t, err)
	assert.Equal(t, billing.KindRent, bill.Kind)
	assert.True(t, bill.Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, rent.ID, bill.ObligationID)

	utility := rent
	utility.Kind = billing.KindUtility
	utility.MeterID = "MTR-1"
	utility.BaseAmount = decimal.RequireFromString("10.50")
	_, err = BuildOccurrence(utility, nil, issued)
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInvalidInput))
	assert.True(t, errors.Is(err, ErrNoReadings))

	stale := &MeterReadings{
		PreviousDate: date(2024, time.January, 1),
		Previous:     decimal.NewFromInt(100),
		CurrentDate:  date(2024, time.February, 1),
		Current:      decimal.NewFromInt(150),
	}
	_, err = BuildOccurrence(utility, stale, issued)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoReadings))

	fresh := &MeterReadings{
		PreviousDate: date(2024, time.February, 1),
		Previous:     decimal.NewFromInt(120),
		CurrentDate:  date(2024, time.February, 29),
		Current:      decimal.NewFromInt(175),
	}
	bill, err = BuildOccurrence(utility, fresh, issued)
	require.NoError(t, err)
	assert.True(t, bill.Units.Equal(decimal.NewFromInt(55)))
	assert.True(t, bill.Amount.Equal(decimal.RequireFromString("577.5")))
	assert.Equal(t, date(2024, time.February, 29), bill.PeriodDate)
}
