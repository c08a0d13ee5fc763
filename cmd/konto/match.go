package main

import (
	"context"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match stored transactions against partners and categories",
		Long: `Match recomputes suggestions for stored transactions.

Scores at or above the auto-apply threshold are written as assignments;
everything between the floor and the threshold lands in the suggestion
list for you to confirm. Confirmed assignments are never touched.`,
	}

	cmd.AddCommand(matchPartnersCmd())
	cmd.AddCommand(matchCategoriesCmd())

	return cmd
}

func matchPartnersCmd() *cobra.Command {
	var (
		txnIDs []string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "partners",
		Short: "Refresh partner suggestions and auto-assignments",
		Long: `Refresh partner matching for specific transactions or the whole corpus.

Examples:
  konto match partners --user u-42 --txn tx-1001 --txn tx-1002
  konto match partners --user u-42 --all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd.Context(), "Matching partners", txnIDs, all,
				func(ctx context.Context, a *app, user string) (service.MatchStats, error) {
					return a.matcher.MatchPartners(ctx, user, txnIDs)
				})
		},
	}

	cmd.Flags().StringArrayVar(&txnIDs, "txn", nil, "transaction to rematch (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "rematch the whole corpus")

	return cmd
}

func matchCategoriesCmd() *cobra.Command {
	var (
		txnIDs []string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Refresh category suggestions and auto-assignments",
		Long: `Refresh category matching for specific transactions or the whole corpus.

Examples:
  konto match categories --user u-42 --txn tx-1001
  konto match categories --user u-42 --all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMatch(cmd.Context(), "Matching categories", txnIDs, all,
				func(ctx context.Context, a *app, user string) (service.MatchStats, error) {
					return a.matcher.MatchCategories(ctx, user, txnIDs)
				})
		},
	}

	cmd.Flags().StringArrayVar(&txnIDs, "txn", nil, "transaction to rematch (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "rematch the whole corpus")

	return cmd
}

// runMatch wires the shared plumbing of both match subcommands: flag
// validation, storage setup, a progress bar on corpus runs, and the stats
// summary at the end.
func runMatch(ctx context.Context, description string, txnIDs []string, all bool, run func(context.Context, *app, string) (service.MatchStats, error)) error {
	if len(txnIDs) == 0 && !all {
		return common.NewUserError("pass --txn at least once, or --all for the whole corpus", nil)
	}
	if len(txnIDs) > 0 && all {
		return common.NewUserError("--txn and --all cannot be combined", nil)
	}

	user, err := requireUser()
	if err != nil {
		return err
	}

	var (
		bar      *progressbar.ProgressBar
		progress func(int)
	)
	if all {
		bar = newScanBar(description + "...")
		progress = func(processed int) {
			_ = bar.Set(processed)
		}
	}

	app, err := newApp(ctx, progress)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := run(ctx, app, user)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	printMatchStats(stats)
	return nil
}
