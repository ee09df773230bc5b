package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnnotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "annotate",
		Short: "Annotate unannotated transactions with the configured model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ann, err := a.annotator()
			if err != nil {
				return err
			}

			count, err := ann.AnnotateAllUnannotated(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Annotated %d transaction(s)\n", count)
			return nil
		},
	}
}
