package commands

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/analytics"
)

func newStatsCommand() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show spending analytics for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			eng := analytics.NewEngine(a.db)

			exp, err := eng.TotalExpenditure(ctx, startDate, endDate)
			if err != nil {
				return err
			}
			inc, err := eng.TotalIncome(ctx, startDate, endDate)
			if err != nil {
				return err
			}
			ratio, err := eng.IncomeExpenditureRatio(ctx, startDate, endDate)
			if err != nil {
				return err
			}
			st, err := eng.ExpenditureStats(ctx, startDate, endDate)
			if err != nil {
				return err
			}
			bd, err := eng.PercentileBreakdown(ctx, startDate, endDate)
			if err != nil {
				return err
			}

			fmt.Printf("Expenditure: %s\n", exp.StringFixed(2))
			fmt.Printf("Income:      %s\n", inc.StringFixed(2))
			if math.IsInf(ratio, 1) {
				fmt.Println("Income/expenditure ratio: ∞ (no expenditure)")
			} else {
				fmt.Printf("Income/expenditure ratio: %.2f\n", ratio)
			}
			fmt.Printf("Debits: min %.2f, max %.2f, mean %.2f, std dev %.2f\n",
				st.Min, st.Max, st.Mean, st.StdDev)

			printShares("Expenditure by category:", bd.ExpenditureByCategory)
			printShares("Income by category:", bd.IncomeByCategory)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "earliest booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest booking date (YYYY-MM-DD)")

	return cmd
}

func printShares(title string, shares map[string]float64) {
	if len(shares) == 0 {
		return
	}
	fmt.Println(title)

	cats := make([]string, 0, len(shares))
	for cat := range shares {
		cats = append(cats, cat)
	}
	// Largest share first, name as tie break.
	sort.Slice(cats, func(i, j int) bool {
		if shares[cats[i]] != shares[cats[j]] {
			return shares[cats[i]] > shares[cats[j]]
		}
		return cats[i] < cats[j]
	})
	for _, cat := range cats {
		fmt.Printf("  %-15s %6.2f%%\n", cat, shares[cat])
	}
}
