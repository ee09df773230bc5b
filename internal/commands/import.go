package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/pipeline"
)

func newImportCommand() *cobra.Command {
	var annotateAll bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a statement CSV, or drain the import directory",
		Long: "Import parses a bank statement CSV and stores its transactions,\n" +
			"skipping rows already present. Without a file argument every CSV in\n" +
			"<import_root>/import/ is imported and moved to import/processed/.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p := a.processor()
			var res pipeline.Result
			if len(args) > 0 {
				res, err = p.Process(ctx, args[0], annotateAll)
			} else {
				res, err = p.ProcessDir(ctx, a.cfg.ImportRoot, annotateAll)
			}
			if err != nil {
				return err
			}

			if res.Files > 0 {
				fmt.Printf("Imported %d file(s)\n", res.Files)
			}
			fmt.Printf("Extracted %d transaction(s), inserted %d new\n", res.Extracted, res.Inserted)
			if annotateAll {
				fmt.Printf("Annotated %d transaction(s)\n", res.Annotated)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&annotateAll, "annotate", false, "annotate unannotated transactions after importing")

	return cmd
}
