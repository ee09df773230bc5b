package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/model"
)

func newCategoriesCommand() *cobra.Command {
	var inUse bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List transaction categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !inUse {
				for _, cat := range model.Categories() {
					fmt.Println(cat)
				}
				return nil
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			cats, err := a.ledger.Categories(ctx)
			if err != nil {
				return err
			}
			for _, cat := range cats {
				fmt.Println(cat)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inUse, "in-use", false, "only categories present on stored transactions")

	return cmd
}
