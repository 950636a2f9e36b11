package cli

import (
	"fmt"
	"time"

	"github.com/TFFe0123/woody-nest/internal/reconciler"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/TFFe0123/woody-nest/internal/service"
	"github.com/spf13/cobra"
)

func reconcileCmd(opts *options) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Record orders for confirmed payments that have none",
		Long: `Run one reconciliation sweep: every payment in the ledger older than the
grace period with no matching order gets its order row written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("grace") {
				grace = cfg.ReconcileGrace
			}

			repo, err := repository.NewRepository(cfg.OrdersCredentials())
			if err != nil {
				return err
			}
			defer repo.Close()

			recorder := service.NewOrderRecorder(repo, nil, log)
			sweeper := reconciler.NewSweeper(repo, recorder, cfg.ReconcileInterval, grace, log)

			restored, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d order(s)\n", restored)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", reconciler.DefaultGrace, "skip payments younger than this (defaults to RECONCILE_GRACE)")
	return cmd
}
