package main

import (
	"github.com/kontoworks/konto/internal/common"
	"github.com/spf13/cobra"
)

func learnCmd() *cobra.Command {
	var (
		partnerID string
		txnID     string
	)

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Derive wildcard patterns from confirmed assignments",
		Long: `Learn asks the oracle to propose wildcard patterns from the
transactions confirmed for a partner, dry-runs each proposal against the
corpus, and keeps only the patterns that hit nothing belonging to anyone
else. The partner's stored pattern set is replaced wholesale on success.

Examples:
  konto learn --user u-42 --partner p-rewe
  konto learn --user u-42 --partner p-rewe --txn tx-1001`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if partnerID == "" {
				return common.NewUserError("--partner is required", nil)
			}
			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			workflow, client, err := app.learnWorkflow()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			stats, err := workflow.LearnPartnerPatterns(ctx, user, partnerID, txnID)
			if err != nil {
				return err
			}

			printLearnStats(stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&partnerID, "partner", "", "partner to learn patterns for")
	cmd.Flags().StringVar(&txnID, "txn", "", "assignment that triggered the request")

	cmd.AddCommand(learnSweepCmd())

	return cmd
}

func learnSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Drain every learning queue whose debounce window has passed",
		Long: `Sweep processes the pending learning requests of every user whose
queue deadline has passed. Confirmations enqueue their partner with a
debounce delay, so a burst of confirmations for the same partner costs
one oracle run instead of one per confirmation.

Run it from a timer, e.g. a systemd timer or cron entry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			queue, client, err := app.learnQueue()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			stats, err := queue.Sweep(ctx)
			if err != nil {
				return err
			}

			printLearnStats(stats)
			return nil
		},
	}
}
