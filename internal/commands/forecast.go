package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/analytics"
)

func newForecastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast <year> <month>",
		Short: "Forecast the month's total spend from the daily mean so far",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			month, err := strconv.Atoi(args[1])
			if err != nil || month < 1 || month > 12 {
				return fmt.Errorf("invalid month %q, want 1-12", args[1])
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			fc, err := analytics.NewEngine(a.db).MonthlyForecast(ctx, year, time.Month(month))
			if err != nil {
				return err
			}

			fmt.Printf("%s %d: %d of %d day(s) elapsed\n",
				time.Month(month), year, fc.DaysElapsed, fc.DaysInMonth)
			fmt.Printf("Spent so far:     %.2f\n", fc.CurrentTotal)
			fmt.Printf("Daily mean:       %.2f\n", fc.DailyMean)
			fmt.Printf("Forecasted total: %.2f\n", fc.ForecastedTotal)
			return nil
		},
	}
}
