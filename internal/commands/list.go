package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/ledger"
	"github.com/bankbook-dev/bankbook/internal/model"
)

func newListCommand() *cobra.Command {
	var (
		page          int
		pageSize      int
		start         string
		end           string
		category      string
		description   string
		originator    string
		onlyAnnotated bool
		includeTaxes  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			q := ledger.Query{
				Page:            page,
				PageSize:        pageSize,
				Category:        category,
				DescriptionLike: description,
				OriginatorLike:  originator,
				OnlyAnnotated:   onlyAnnotated,
				IncludeTaxes:    includeTaxes,
			}
			if q.StartDate, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if q.EndDate, err = parseDateFlag("end", end); err != nil {
				return err
			}

			result, err := a.ledger.Read(ctx, q)
			if err != nil {
				return err
			}

			printPage(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (0 uses the configured default)")
	cmd.Flags().StringVar(&start, "start", "", "earliest booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest booking date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&description, "description", "", "filter by description substring")
	cmd.Flags().StringVar(&originator, "originator", "", "filter by originator substring")
	cmd.Flags().BoolVar(&onlyAnnotated, "only-annotated", false, "only transactions with a description and category")
	cmd.Flags().BoolVar(&includeTaxes, "include-taxes", false, "list tax entries as their own rows")

	return cmd
}

func printPage(p *ledger.Page) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tCATEGORY\tDEBIT\tCREDIT\tBALANCE")
	for _, txn := range p.Transactions {
		printRow(w, txn)
		for _, tax := range txn.RelatedTaxes {
			printRow(w, tax)
		}
	}
	w.Flush()
	fmt.Printf("Page %d of %d (%d transaction(s))\n", p.Page, p.TotalPages, p.Total)
}

func printRow(w *tabwriter.Writer, txn model.Transaction) {
	desc := txn.BankStatementDescription
	if txn.Description != nil {
		desc = *txn.Description
	}
	category := ""
	if txn.Category != nil {
		category = *txn.Category
	}
	debit, credit := "", ""
	if txn.Debit.Valid {
		debit = txn.Debit.Decimal.StringFixed(2)
	}
	if txn.Credit.Valid {
		credit = txn.Credit.Decimal.StringFixed(2)
	}
	marker := ""
	if txn.IsTaxes {
		marker = " (tax)"
	}
	fmt.Fprintf(w, "%d\t%s\t%s%s\t%s\t%s\t%s\t%s\n",
		txn.ID,
		txn.BookingDateTime.Format("2006-01-02"),
		desc, marker,
		category,
		debit,
		credit,
		txn.AvailableBalance.StringFixed(2),
	)
}
