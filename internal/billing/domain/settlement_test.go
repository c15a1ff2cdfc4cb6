package billing

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func scenarioBill(t *testing.T) *BillRecord {
	t.Helper()
	bill, err := NewUtilityBill(UtilityBillInput{
		BusinessID:      "biz-1",
		MeterID:         "MTR-01",
		ReadingDate:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		IssueDate:       time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
		PreviousReading: dec("120"),
		CurrentReading:  dec("175"),
		RatePerUnit:     dec("10.50"),
	})
	require.NoError(t, err)
	return bill
}

func TestComputeSettlement_OnTimeWithoutArrears(t *testing.T) {
	bill := scenarioBill(t)
	requireDecimal(t, "55", bill.Units)
	requireDecimal(t, "577.50", bill.Amount)

	got, err := ComputeSettlement(SettlementInput{
		BaseAmount:    bill.Amount,
		DueDate:       bill.DueDate,
		Now:           bill.DueDate,
		LateSurcharge: dec("50"),
	})
	require.NoError(t, err)
	requireDecimal(t, "0", got.Arrears)
	requireDecimal(t, "0", got.LateSurcharge)
	requireDecimal(t, "577.50", got.PayWithinDueDate)
	requireDecimal(t, "577.50", got.PayAfterDueDate)
}

func TestComputeSettlement_DueDayIsNotLate(t *testing.T) {
	bill := scenarioBill(t)
	dueDay := bill.DueDate

	cases := []struct {
		name      string
		now       time.Time
		surcharge string
	}{
		{name: "morning of due day", now: dueDay.Add(10 * time.Hour), surcharge: "0"},
		{name: "last second of due day", now: dueDay.Add(24*time.Hour - time.Second), surcharge: "0"},
		{name: "next day", now: dueDay.AddDate(0, 0, 1), surcharge: "50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeSettlement(SettlementInput{
				BaseAmount:    bill.Amount,
				DueDate:       dueDay,
				Now:           tc.now,
				LateSurcharge: dec("50"),
			})
			require.NoError(t, err)
			requireDecimal(t, tc.surcharge, got.LateSurcharge)
			requireDecimal(t, "577.50", got.PayWithinDueDate)
			requireDecimal(t, dec("577.50").Add(dec(tc.surcharge)).String(), got.PayAfterDueDate)
		})
	}
}

func TestComputeSettlement_LateWithUnpaidPriorBill(t *testing.T) {
	bill := scenarioBill(t)
	history := History{
		{BillNumber: "UTL-202402-A", PeriodDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.NewNullDecimal(dec("300")), Status: StatusPending},
	}

	got, err := ComputeSettlement(SettlementInput{
		BaseAmount:    bill.Amount,
		DueDate:       bill.DueDate,
		Now:           bill.DueDate.Add(24 * time.Hour),
		LateSurcharge: dec("50"),
		History:       history,
	})
	require.NoError(t, err)
	requireDecimal(t, "300", got.Arrears)
	requireDecimal(t, "877.50", got.PayWithinDueDate)
	requireDecimal(t, "50", got.LateSurcharge)
	requireDecimal(t, "927.50", got.PayAfterDueDate)
}

func TestComputeSettlement_PaidBillHasNoSurcharge(t *testing.T) {
	due := time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC)
	got, err := ComputeSettlement(SettlementInput{
		BaseAmount:    dec("1000"),
		DueDate:       due,
		Now:           due.AddDate(0, 1, 0),
		Paid:          true,
		LateSurcharge: dec("500"),
	})
	require.NoError(t, err)
	requireDecimal(t, "0", got.LateSurcharge)
	assert.True(t, got.PayAfterDueDate.Equal(got.PayWithinDueDate))
}

func TestArrears_IgnoresPaidEntriesAndOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	statuses := []PaymentStatus{StatusPending, StatusPaid, StatusWaived, StatusVoid}
	for round := 0; round < 50; round++ {
		n := rng.Intn(HistoryLimit + 1)
		history := make(History, 0, n)
		want := decimal.Zero
		for i := 0; i < n; i++ {
			amount := decimal.New(rng.Int63n(100000), -2)
			status := statuses[rng.Intn(len(statuses))]
			if status != StatusPaid {
				want = want.Add(amount)
			}
			history = append(history, HistoryEntry{Amount: decimal.NewNullDecimal(amount), Status: status})
		}

		got, err := Arrears(history)
		require.NoError(t, err)
		require.Truef(t, got.Equal(want), "round %d: want %s, got %s", round, want, got)

		shuffled := append(History(nil), history...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for i := range shuffled {
			if shuffled[i].Status == StatusPaid {
				shuffled[i].Amount = decimal.NewNullDecimal(decimal.New(rng.Int63n(1_000_000), 0))
			}
		}
		again, err := Arrears(shuffled)
		require.NoError(t, err)
		require.True(t, again.Equal(want))
	}
}

func TestComputeSettlement_TotalsIdentity(t *testing.T) {
	due := time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC)
	history := History{
		{Amount: decimal.NewNullDecimal(dec("10.10")), Status: StatusPending},
		{Amount: decimal.NewNullDecimal(dec("20.20")), Status: StatusWaived},
	}
	for _, now := range []time.Time{due.AddDate(0, 0, -3), due, due.Add(time.Second), due.AddDate(0, 2, 0)} {
		got, err := ComputeSettlement(SettlementInput{
			BaseAmount:    dec("0.01"),
			DueDate:       due,
			Now:           now,
			LateSurcharge: dec("7.25"),
			History:       history,
		})
		require.NoError(t, err)
		assert.True(t, got.PayWithinDueDate.Equal(got.BaseAmount.Add(got.Arrears)))
		assert.True(t, got.PayAfterDueDate.Equal(got.PayWithinDueDate.Add(got.LateSurcharge)))
		if !now.After(due) {
			assert.True(t, got.LateSurcharge.IsZero(), "no surcharge on or before the due date")
		}
	}
}

func TestComputeSettlement_InvalidInput(t *testing.T) {
	due := time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC)
	cases := map[string]SettlementInput{
		"negative base":      {BaseAmount: dec("-1"), DueDate: due},
		"missing due date":   {BaseAmount: dec("1")},
		"negative surcharge": {BaseAmount: dec("1"), DueDate: due, LateSurcharge: dec("-5")},
		"history without amount": {
			BaseAmount: dec("1"),
			DueDate:    due,
			History:    History{{BillNumber: "X", Status: StatusPending}},
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeSettlement(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

func TestHistory_Truncate(t *testing.T) {
	history := make(History, 20)
	assert.Len(t, history.Truncate(HistoryLimit), HistoryLimit)
	assert.Len(t, history[:3].Truncate(HistoryLimit), 3)
	assert.Empty(t, history.Truncate(-1))
}
