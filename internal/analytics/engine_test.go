package analytics

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbook-dev/bankbook/internal/database"
	"github.com/bankbook-dev/bankbook/internal/ledger"
	"github.com/bankbook-dev/bankbook/internal/model"

	"github.com/shopspring/decimal"
)

// testEngine connects to BANKBOOK_TEST_DATABASE_URL and starts from an
// empty transactions table; tests are skipped when the variable is unset.
func testEngine(t *testing.T) (*Engine, *ledger.Service) {
	t.Helper()
	url := os.Getenv("BANKBOOK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BANKBOOK_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, "TRUNCATE transactions RESTART IDENTITY")
	require.NoError(t, err)

	svc, err := ledger.NewService(db, 20)
	require.NoError(t, err)
	return NewEngine(db), svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.NullDecimal {
	d, _ := decimal.NewFromString(s)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func entry(booking time.Time, order int, debit, credit, category string) model.Transaction {
	txn := model.Transaction{
		BookingDateTime:          booking,
		ValueDateTime:            booking,
		DayOrderID:               order,
		BankStatementDescription: "entry",
		AvailableBalance:         decimal.Zero,
	}
	if debit != "" {
		txn.Debit = amount(debit)
	}
	if credit != "" {
		txn.Credit = amount(credit)
	}
	if category != "" {
		txn.Category = &category
	}
	return txn
}

func seed(t *testing.T, svc *ledger.Service, records ...model.Transaction) {
	t.Helper()
	_, err := svc.Insert(context.Background(), records)
	require.NoError(t, err)
}

func TestTotals(t *testing.T) {
	eng, svc := testEngine(t)
	ctx := context.Background()

	seed(t, svc,
		entry(day(2024, time.January, 5), 1, "100.00", "", "Food"),
		entry(day(2024, time.January, 6), 1, "50.00", "", ""),
		entry(day(2024, time.February, 1), 1, "25.00", "", ""),
		entry(day(2024, time.January, 12), 1, "", "400.00", "Salary"),
	)

	exp, err := eng.TotalExpenditure(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "175.00", exp.StringFixed(2))

	inc, err := eng.TotalIncome(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "400.00", inc.StringFixed(2))

	// Inclusive January window drops the February debit.
	start := day(2024, time.January, 1)
	end := day(2024, time.January, 31)
	exp, err = eng.TotalExpenditure(ctx, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, "150.00", exp.StringFixed(2))
}

func TestIncomeExpenditureRatio(t *testing.T) {
	eng, svc := testEngine(t)
	ctx := context.Background()

	// Empty store: both totals zero.
	ratio, err := eng.IncomeExpenditureRatio(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, ratio)

	// Income with zero expenditure: positive infinity.
	seed(t, svc, entry(day(2024, time.January, 12), 1, "", "400.00", ""))
	ratio, err = eng.IncomeExpenditureRatio(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(ratio, 1))

	seed(t, svc, entry(day(2024, time.January, 13), 1, "200.00", "", ""))
	ratio, err = eng.IncomeExpenditureRatio(ctx, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, ratio, 1e-9)
}

func TestPercentileBreakdown(t *testing.T) {
	eng, svc := testEngine(t)
	ctx := context.Background()

	seed(t, svc,
		entry(day(2024, time.January, 5), 1, "75.00", "", "Food"),
		entry(day(2024, time.January, 6), 1, "25.00", "", ""),
		entry(day(2024, time.January, 12), 1, "", "400.00", "Salary"),
	)

	bd, err := eng.PercentileBreakdown(ctx, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "100.00", bd.TotalExpenditure.StringFixed(2))
	assert.Equal(t, "400.00", bd.TotalIncome.StringFixed(2))

	assert.InDelta(t, 75.0, bd.ExpenditureByCategory["Food"], 1e-9)
	assert.InDelta(t, 25.0, bd.ExpenditureByCategory[UncategorizedBucket], 1e-9)
	assert.InDelta(t, 100.0, bd.IncomeByCategory["Salary"], 1e-9)

	sum := 0.0
	for cat, share := range bd.ExpenditureByCategory {
		assert.GreaterOrEqual(t, share, 0.0, cat)
		assert.LessOrEqual(t, share, 100.0, cat)
		sum += share
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}

func TestPercentileBreakdown_Empty(t *testing.T) {
	eng, _ := testEngine(t)

	bd, err := eng.PercentileBreakdown(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, bd.ExpenditureByCategory)
	assert.Empty(t, bd.IncomeByCategory)
	assert.True(t, bd.TotalExpenditure.IsZero())
}

func TestExpenditureStats(t *testing.T) {
	eng, svc := testEngine(t)
	ctx := context.Background()

	st, err := eng.ExpenditureStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	seed(t, svc, entry(day(2024, time.January, 5), 1, "10.00", "", ""))
	st, err = eng.ExpenditureStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, st.Min, 1e-9)
	assert.InDelta(t, 10.0, st.Max, 1e-9)
	assert.InDelta(t, 10.0, st.Mean, 1e-9)
	assert.Equal(t, 0.0, st.StdDev, "single sample has zero deviation")

	seed(t, svc,
		entry(day(2024, time.January, 6), 1, "20.00", "", ""),
		entry(day(2024, time.January, 7), 1, "30.00", "", ""),
	)
	st, err = eng.ExpenditureStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, st.Min, 1e-9)
	assert.InDelta(t, 30.0, st.Max, 1e-9)
	assert.InDelta(t, 20.0, st.Mean, 1e-9)
	assert.InDelta(t, 10.0, st.StdDev, 1e-9)
}

func TestMonthlyForecast_PastMonth(t *testing.T) {
	eng, svc := testEngine(t)
	eng.now = func() time.Time { return day(2024, time.June, 15) }

	// April 2024 has 30 days and 3000.00 of spend.
	seed(t, svc,
		entry(day(2024, time.April, 3), 1, "1000.00", "", ""),
		entry(day(2024, time.April, 20), 1, "2000.00", "", ""),
	)

	fc, err := eng.MonthlyForecast(context.Background(), 2024, time.April)
	require.NoError(t, err)
	assert.Equal(t, 30, fc.DaysInMonth)
	assert.Equal(t, 30, fc.DaysElapsed)
	assert.InDelta(t, 3000.0, fc.CurrentTotal, 1e-9)
	assert.InDelta(t, 100.0, fc.DailyMean, 1e-9)
	assert.InDelta(t, 3000.0, fc.ForecastedTotal, 1e-9)
}

func TestMonthlyForecast_CurrentMonth(t *testing.T) {
	eng, svc := testEngine(t)
	eng.now = func() time.Time { return day(2024, time.April, 10) }

	seed(t, svc, entry(day(2024, time.April, 3), 1, "500.00", "", ""))

	fc, err := eng.MonthlyForecast(context.Background(), 2024, time.April)
	require.NoError(t, err)
	assert.Equal(t, 10, fc.DaysElapsed)
	assert.InDelta(t, 50.0, fc.DailyMean, 1e-9)
	assert.InDelta(t, 1500.0, fc.ForecastedTotal, 1e-9)
}

func TestMonthlyForecast_FutureMonth(t *testing.T) {
	eng, _ := testEngine(t)
	eng.now = func() time.Time { return day(2024, time.April, 10) }

	fc, err := eng.MonthlyForecast(context.Background(), 2024, time.December)
	require.NoError(t, err)
	assert.Equal(t, 0, fc.DaysElapsed)
	assert.Equal(t, 0.0, fc.DailyMean)
	assert.Equal(t, 0.0, fc.ForecastedTotal)
}

func TestElapsedDays(t *testing.T) {
	end := time.Date(2024, time.April, 30, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, 12, elapsedDays(day(2024, time.April, 12), 2024, time.April, 30, end))
	assert.Equal(t, 30, elapsedDays(day(2024, time.May, 1), 2024, time.April, 30, end))
	assert.Equal(t, 0, elapsedDays(day(2024, time.March, 31), 2024, time.April, 30, end))
	// Leap February.
	febEnd := time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, 29, elapsedDays(day(2024, time.March, 1), 2024, time.February, 29, febEnd))
}
