package commands

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bankbook-dev/bankbook/internal/analytics"
	"github.com/bankbook-dev/bankbook/internal/logging"
	"github.com/bankbook-dev/bankbook/internal/server"
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			router := server.NewRouter(a.ledger, analytics.NewEngine(a.db), a.processor())
			logging.Logger.WithField("addr", addr).Info("serving HTTP API")
			return http.ListenAndServe(addr, router)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to the configured http.addr)")

	return cmd
}
