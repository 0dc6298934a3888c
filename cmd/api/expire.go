package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExpireCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire active orders whose claim window has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			pool, err := connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc, err := buildServices(cfg, pool, logger)
			if err != nil {
				return err
			}
			n, err := svc.gifts.ExpireStale(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire orders: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d orders\n", n)
			return nil
		},
	}
}
