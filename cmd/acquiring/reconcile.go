package main

import (
	"context"
	"errors"
	"fmt"

	paymentdomain "github.com/smallbiznis/acquiring/internal/payment/domain"
	"github.com/smallbiznis/acquiring/internal/reconcile"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// errFailedItems makes the process exit non-zero after the report is printed.
var errFailedItems = errors.New("reconciliation finished with failures")

func reconcileCmd() *cobra.Command {
	var (
		rawStatuses []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh the status of non-terminal payments from the bank once",
		Long: `Query the bank for every payment in the given statuses and store the
reported status. Defaults to all non-terminal statuses. One failing payment
does not stop the others; failures are listed on stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := paymentdomain.ParseStatuses(rawStatuses)
			if err != nil {
				return err
			}

			var job *reconcile.Job
			app := fx.New(
				coreModules(),
				reconcile.Module,
				fx.Populate(&job),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Stop(context.Background())

			if concurrency > 0 {
				job = job.WithConcurrency(concurrency)
			}

			report, runErr := job.Run(ctx, statuses)

			for _, failure := range report.Failures {
				fmt.Fprintln(cmd.ErrOrStderr(), failure.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d succeeded=%d deferred=%d failed=%d\n",
				report.Processed, report.Succeeded, report.Deferred, len(report.Failures))

			if report.Failed() {
				return errFailedItems
			}
			return runErr
		},
	}

	cmd.Flags().StringArrayVar(&rawStatuses, "status", nil, "Status to reconcile (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Payments queried in parallel (0 uses RECONCILE_CONCURRENCY)")

	return cmd
}
