package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/model"
)

func newSetCommand() *cobra.Command {
	var (
		description string
		category    string
		originator  string
		group       string
		taxes       bool
	)

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Set annotation fields on a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}

			var set model.UpdateSet
			if cmd.Flags().Changed("description") {
				set.Description = &description
			}
			if cmd.Flags().Changed("category") {
				cat, err := model.ParseCategory(category)
				if err != nil {
					return err
				}
				set.Category = &cat
			}
			if cmd.Flags().Changed("originator") {
				set.OriginatorName = &originator
			}
			if cmd.Flags().Changed("group") {
				set.GroupName = &group
			}
			if cmd.Flags().Changed("taxes") {
				set.IsTaxes = &taxes
			}
			if set.Empty() {
				return errors.New("nothing to set, pass at least one field flag")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.ledger.Update(ctx, id, set)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("transaction %d not found", id)
			}
			fmt.Printf("Updated transaction %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "cleaned description")
	cmd.Flags().StringVar(&category, "category", "", "category (see `bankbook categories`)")
	cmd.Flags().StringVar(&originator, "originator", "", "originator name")
	cmd.Flags().StringVar(&group, "group", "", "group name")
	cmd.Flags().BoolVar(&taxes, "taxes", false, "mark as a tax entry")

	return cmd
}
