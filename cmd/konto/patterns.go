package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/kontoworks/konto/internal/common"
	"github.com/spf13/cobra"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Apply and inspect learned wildcard patterns",
	}

	cmd.AddCommand(patternsApplyCmd())
	cmd.AddCommand(patternsListCmd())

	return cmd
}

func patternsApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Rematch every unconfirmed transaction against current patterns",
		Long: `Apply runs a full-corpus partner rematch so freshly learned patterns
take effect on historical transactions. Confirmed assignments stay as
they are; only suggestions and auto-assignments move.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			bar := newScanBar("Applying patterns...")
			app, err := newApp(ctx, func(processed int) {
				_ = bar.Set(processed)
			})
			if err != nil {
				return err
			}
			defer app.Close()

			stats, err := app.matcher.ApplyPatterns(ctx, user)
			_ = bar.Finish()
			if err != nil {
				return err
			}

			printMatchStats(stats)
			return nil
		},
	}
}

func patternsListCmd() *cobra.Command {
	var partnerID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the patterns stored for a partner",
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

			partner, err := app.store.GetPartner(ctx, partnerID)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("partner %s does not exist", partnerID), err)
			}
			if err != nil {
				return err
			}
			// Globals are readable by everyone; user partners only by their owner.
			if partner.UserID != "" && partner.UserID != user {
				return common.NewUserError(fmt.Sprintf("partner %s does not exist", partnerID), common.ErrNotFound)
			}

			if len(partner.LearnedPatterns) == 0 {
				fmt.Printf("No patterns stored for %q yet. Confirm a few assignments, then run 'konto learn'.\n", partner.Name) //nolint:forbidigo // User-facing output
				return nil
			}

			fmt.Printf("Patterns for %q:\n\n", partner.Name) //nolint:forbidigo // User-facing output

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() {
				_ = w.Flush()
			}()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				headerStyle.Render("PATTERN"),
				headerStyle.Render("CONFIDENCE"),
				headerStyle.Render("SOURCES"),
				headerStyle.Render("LEARNED"))

			for _, p := range partner.LearnedPatterns {
				fmt.Fprintf(w, "%s\t%d%%\t%d\t%s\n",
					p.Pattern,
					p.Confidence,
					len(p.SourceTransactionIDs),
					p.CreatedAt.Format("2006-01-02"))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&partnerID, "partner", "", "partner whose patterns to show")

	return cmd
}
