// Package analytics computes aggregate statistics over the transaction
// ledger, optionally windowed by an inclusive booking-date range.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankbook-dev/bankbook/internal/database"
)

// UncategorizedBucket is the breakdown bucket for rows without a category.
const UncategorizedBucket = "Uncategorized"

// Engine runs analytics queries against the ledger's table.
type Engine struct {
	db  *database.DB
	now func() time.Time
}

// NewEngine creates an analytics Engine.
func NewEngine(db *database.DB) *Engine {
	return &Engine{db: db, now: time.Now}
}

// rangeWhere builds the optional booking-date window, ANDed after any
// fixed conditions.
func rangeWhere(fixed []string, start, end *time.Time) (string, []any) {
	conds := append([]string{}, fixed...)
	var args []any
	if start != nil {
		args = append(args, *start)
		conds = append(conds, fmt.Sprintf("booking_date_time >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conds = append(conds, fmt.Sprintf("booking_date_time <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// TotalExpenditure sums all non-null debits in range.
func (e *Engine) TotalExpenditure(ctx context.Context, start, end *time.Time) (decimal.Decimal, error) {
	return e.sumColumn(ctx, "debit", start, end)
}

// TotalIncome sums all non-null credits in range.
func (e *Engine) TotalIncome(ctx context.Context, start, end *time.Time) (decimal.Decimal, error) {
	return e.sumColumn(ctx, "credit", start, end)
}

func (e *Engine) sumColumn(ctx context.Context, column string, start, end *time.Time) (decimal.Decimal, error) {
	where, args := rangeWhere([]string{column + " IS NOT NULL"}, start, end)
	var total decimal.Decimal
	err := e.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM transactions%s", column, where),
		args...,
	).Scan(&total)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("summing %s: %w", column, err)
	}
	return total, nil
}

// IncomeExpenditureRatio returns income divided by expenditure. Zero
// expenditure yields +Inf when there is income, otherwise 0.0.
func (e *Engine) IncomeExpenditureRatio(ctx context.Context, start, end *time.Time) (float64, error) {
	income, err := e.TotalIncome(ctx, start, end)
	if err != nil {
		return 0, err
	}
	expenditure, err := e.TotalExpenditure(ctx, start, end)
	if err != nil {
		return 0, err
	}

	if expenditure.IsZero() {
		if income.IsPositive() {
			return math.Inf(1), nil
		}
		return 0.0, nil
	}
	return income.InexactFloat64() / expenditure.InexactFloat64(), nil
}

// Breakdown holds each category's percentage share of total expenditure
// and total income, computed independently.
type Breakdown struct {
	ExpenditureByCategory map[string]float64 `json:"expenditure_by_category"`
	IncomeByCategory      map[string]float64 `json:"income_by_category"`
	TotalExpenditure      decimal.Decimal    `json:"total_expenditure"`
	TotalIncome           decimal.Decimal    `json:"total_income"`
}

// PercentileBreakdown groups expenditure and income by category and
// returns the percentage share each category contributes to its total.
// Rows without a category land in the Uncategorized bucket.
func (e *Engine) PercentileBreakdown(ctx context.Context, start, end *time.Time) (*Breakdown, error) {
	where, args := rangeWhere(nil, start, end)
	rows, err := e.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT COALESCE(category, '%s'),
		       COALESCE(SUM(debit), 0),
		       COALESCE(SUM(credit), 0)
		FROM transactions%s
		GROUP BY 1`, UncategorizedBucket, where),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("grouping by category: %w", err)
	}
	defer rows.Close()

	expByCat := make(map[string]decimal.Decimal)
	incByCat := make(map[string]decimal.Decimal)
	totalExp := decimal.Zero
	totalInc := decimal.Zero
	for rows.Next() {
		var cat string
		var exp, inc decimal.Decimal
		if err := rows.Scan(&cat, &exp, &inc); err != nil {
			return nil, fmt.Errorf("scanning category sums: %w", err)
		}
		if exp.IsPositive() {
			expByCat[cat] = exp
			totalExp = totalExp.Add(exp)
		}
		if inc.IsPositive() {
			incByCat[cat] = inc
			totalInc = totalInc.Add(inc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("grouping by category: %w", err)
	}

	return &Breakdown{
		ExpenditureByCategory: shares(expByCat, totalExp),
		IncomeByCategory:      shares(incByCat, totalInc),
		TotalExpenditure:      totalExp,
		TotalIncome:           totalInc,
	}, nil
}

// shares converts per-category sums into percentages of total. A zero
// total is divided as 1 so empty buckets come out 0, not NaN.
func shares(byCat map[string]decimal.Decimal, total decimal.Decimal) map[string]float64 {
	divisor := total.InexactFloat64()
	if total.IsZero() {
		divisor = 1
	}
	out := make(map[string]float64, len(byCat))
	for cat, val := range byCat {
		out[cat] = val.InexactFloat64() / divisor * 100
	}
	return out
}

// Stats describes the dispersion of debit amounts.
type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ExpenditureStats returns min, max, mean, and sample standard deviation
// over the non-null debits in range. A single debit has std-dev 0; an
// empty range yields all zeros.
func (e *Engine) ExpenditureStats(ctx context.Context, start, end *time.Time) (Stats, error) {
	where, args := rangeWhere([]string{"debit IS NOT NULL"}, start, end)
	var st Stats
	err := e.db.Pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(MIN(debit), 0)::float8,
		       COALESCE(MAX(debit), 0)::float8,
		       COALESCE(AVG(debit), 0)::float8,
		       COALESCE(STDDEV_SAMP(debit), 0)::float8
		FROM transactions%s`, where),
		args...,
	).Scan(&st.Min, &st.Max, &st.Mean, &st.StdDev)
	if err != nil {
		return Stats{}, fmt.Errorf("computing expenditure stats: %w", err)
	}
	return st, nil
}

// Forecast is a naive linear extrapolation of a month's spending.
type Forecast struct {
	DailyMean       float64 `json:"daily_mean"`
	DaysElapsed     int     `json:"days_elapsed"`
	DaysInMonth     int     `json:"days_in_month"`
	CurrentTotal    float64 `json:"current_total"`
	ForecastedTotal float64 `json:"forecasted_total"`
}

// MonthlyForecast extrapolates the month's total spend from the daily
// mean so far. Months fully in the past use the whole month; future
// months have zero days elapsed and forecast zero. No seasonality, no
// recurring-bill detection.
func (e *Engine) MonthlyForecast(ctx context.Context, year int, month time.Month) (Forecast, error) {
	startDate := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	endDate := time.Date(year, month, daysInMonth, 23, 59, 59, 0, time.UTC)

	today := e.now()
	daysElapsed := elapsedDays(today, year, month, daysInMonth, endDate)

	currentTotal, err := e.TotalExpenditure(ctx, &startDate, &endDate)
	if err != nil {
		return Forecast{}, err
	}

	fc := Forecast{
		DaysElapsed:  daysElapsed,
		DaysInMonth:  daysInMonth,
		CurrentTotal: currentTotal.InexactFloat64(),
	}
	if daysElapsed > 0 {
		fc.DailyMean = fc.CurrentTotal / float64(daysElapsed)
		fc.ForecastedTotal = fc.DailyMean * float64(daysInMonth)
	}
	return fc, nil
}

// elapsedDays is the number of days of the target month that have passed:
// the full month once it is over, the current day-of-month while inside
// it, zero for future months.
func elapsedDays(today time.Time, year int, month time.Month, daysInMonth int, endDate time.Time) int {
	switch {
	case today.Year() == year && today.Month() == month:
		return today.Day()
	case today.After(endDate):
		return daysInMonth
	default:
		return 0
	}
}
