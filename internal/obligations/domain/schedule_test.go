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

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func activeConfig(freq Frequency, next time.Time) Config {
	return Config{
		ID:           "cfg-1",
		Kind:         billing.KindRent,
		BusinessID:   "biz-1",
		Title:        "Shop rent",
		BaseAmount:   decimal.NewFromInt(1000),
		Frequency:    freq,
		NextDueDate:  next,
		AnchorDay:    next.Day(),
		AutoGenerate: true,
		Status:       StatusActive,
	}
}

func TestAdvance_QuarterlyClampsToMonthEnd(t *testing.T) {
	cfg := activeConfig(FrequencyQuarterly, date(2024, time.January, 31))
	next, err := Advance(cfg)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 30), next)
}

func TestAdvance_Intervals(t *testing.T) {
	start := date(2023, time.August, 15)
	cases := map[Frequency]time.Time{
		FrequencyMonthly:    date(2023, time.September, 15),
		FrequencyQuarterly:  date(2023, time.November, 15),
		FrequencySemiAnnual: date(2024, time.February, 15),
		FrequencyAnnual:     date(2024, time.August, 15),
	}
	for freq, want := range cases {
		got, err := Advance(activeConfig(freq, start))
		require.NoError(t, err)
		assert.Equal(t, want, got, string(freq))
	}
}

func TestAdvance_MonthlyFromThirtyFirstKeepsAnchor(t *testing.T) {
	cfg := activeConfig(FrequencyMonthly, date(2024, time.January, 31))
	want := []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
	}
	for _, expected := range want {
		next, err := Advance(cfg)
		require.NoError(t, err)
		assert.Equal(t, expected, next)
		cfg.ApplyAdvance(next, next)
	}
	assert.Equal(t, 4, cfg.OccurrenceCount)
}

func TestAdvance_RepeatedEqualsClosedForm(t *testing.T) {
	starts := []time.Time{
		date(2024, time.January, 31),
		date(2023, time.February, 28),
		date(2024, time.February, 29),
		date(2024, time.August, 30),
		date(2025, time.March, 1),
	}
	freqs := []Frequency{FrequencyMonthly, FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual}
	for _, start := range starts {
		for _, freq := range freqs {
			base := activeConfig(freq, start)
			cfg := base
			for n := 1; n <= 30; n++ {
				next, err := Advance(cfg)
				require.NoError(t, err)
				cfg.ApplyAdvance(next, next)

				closed, err := AdvanceN(base, n)
				require.NoError(t, err)
				require.Equalf(t, closed, cfg.NextDueDate, "start=%s freq=%s n=%d", start.Format(time.DateOnly), freq, n)
			}
		}
	}
}

func TestAdvance_UnknownFrequency(t *testing.T) {
	_, err := Advance(activeConfig(Frequency("weekly"), date(2024, time.January, 1)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInvalidConfiguration))
}

func TestIsDue(t *testing.T) {
	next := date(2024, time.March, 1)
	cfg := activeConfig(FrequencyMonthly, next)

	due, err := IsDue(cfg, next.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, due)

	due, err = IsDue(cfg, next)
	require.NoError(t, err)
	assert.True(t, due)

	manual := cfg
	manual.AutoGenerate = false
	due, err = IsDue(manual, next.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.False(t, due)

	paused := cfg
	paused.Status = StatusPaused
	due, err = IsDue(paused, next.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.False(t, due)

	broken := cfg
	broken.Status = Status("archived")
	_, err = IsDue(broken, next)
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrInvalidConfiguration))
}

func TestApplyAdvance_ShiftsReminder(t *testing.T) {
	cfg := activeConfig(FrequencyMonthly, date(2024, time.March, 10))
	reminder := date(2024, time.March, 5)
	cfg.ReminderDate = &reminder

	next, err := Advance(cfg)
	require.NoError(t, err)
	cfg.ApplyAdvance(next, next)
	require.NotNil(t, cfg.ReminderDate)
	assert.Equal(t, date(2024, time.April, 5), *cfg.ReminderDate)
	assert.True(t, ReminderDue(cfg, date(2024, time.April, 5)))
	assert.False(t, ReminderDue(cfg, date(2024, time.April, 4)))
}
