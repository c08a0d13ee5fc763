package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func partnersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partners",
		Short: "Manage the business partners transactions are matched against",
	}

	cmd.AddCommand(partnersListCmd())
	cmd.AddCommand(partnersAddCmd())
	cmd.AddCommand(partnersDeactivateCmd())
	cmd.AddCommand(partnersLookupCmd())
	cmd.AddCommand(partnersLocalizeCmd())
	cmd.AddCommand(partnersRemoveTxnCmd())

	return cmd
}

func partnersListCmd() *cobra.Command {
	var includeGlobal bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your partners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			partners, err := app.store.GetPartnersByUser(ctx, user)
			if err != nil {
				return err
			}
			if includeGlobal {
				globals, err := app.store.GetGlobalPartners(ctx)
				if err != nil {
					return err
				}
				partners = append(partners, globals...)
			}

			if len(partners) == 0 {
				fmt.Println("No partners yet. Use 'konto partners add' or 'konto partners lookup'.") //nolint:forbidigo // User-facing output
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() {
				_ = w.Flush()
			}()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("NAME"),
				headerStyle.Render("TYPE"),
				headerStyle.Render("VAT ID"),
				headerStyle.Render("PATTERNS"))

			for i := range partners {
				p := &partners[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					p.ID,
					truncateString(p.Name, 32),
					p.Type,
					p.VATID,
					len(p.LearnedPatterns))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&includeGlobal, "global", false, "include shared partner templates")

	return cmd
}

func partnersAddCmd() *cobra.Command {
	var (
		aliases      []string
		ibans        []string
		vatID        string
		website      string
		emailDomains []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a partner by hand",
		Long: `Add creates a user partner from the values you already know. Every
identifier is optional; matching picks up whatever is there, and learned
patterns accumulate later through confirmations.

Example:
  konto partners add "REWE Markt GmbH" --user u-42 --alias REWE --alias "REWE SAGT DANKE" --vat DE812706034`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			partner := &model.Partner{
				UserID:         user,
				Name:           args[0],
				Type:           model.PartnerTypeUser,
				IsActive:       true,
				Aliases:        aliases,
				AccountNumbers: ibans,
				VATID:          vatID,
				Website:        website,
				EmailDomains:   emailDomains,
			}
			if err := partner.Validate(); err != nil {
				return common.NewUserError(err.Error(), err)
			}

			if err := app.store.SavePartner(ctx, partner); err != nil {
				return err
			}

			fmt.Printf("✓ Created partner %q (ID: %s)\n", partner.Name, partner.ID) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&aliases, "alias", nil, "booking-text alias (repeatable)")
	cmd.Flags().StringArrayVar(&ibans, "iban", nil, "account number (repeatable)")
	cmd.Flags().StringVar(&vatID, "vat", "", "VAT id")
	cmd.Flags().StringVar(&website, "website", "", "website")
	cmd.Flags().StringArrayVar(&emailDomains, "email-domain", nil, "email domain (repeatable)")

	return cmd
}

func partnersDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <partner-id>",
		Short: "Take a partner out of matching without deleting its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			partnerID := args[0]

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
			if partner.Type == model.PartnerTypeGlobal {
				return common.NewUserError("shared templates cannot be deactivated; localize a copy instead", nil)
			}
			if partner.UserID != user {
				return common.NewUserError(fmt.Sprintf("partner %s does not exist", partnerID), common.ErrNotFound)
			}

			if err := app.store.DeactivatePartner(ctx, partnerID); err != nil {
				return err
			}

			fmt.Printf("✓ Deactivated partner %q; existing assignments stay, new matching skips it\n", partner.Name) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func partnersLookupCmd() *cobra.Command {
	var (
		limit  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "lookup <name>",
		Short: "Search the business registry and create a partner from the top hit",
		Long: `Lookup queries the configured business registry, ranks the hits by
name similarity, and creates a user partner from the best one. Pass
--dry-run to only see the candidates.

Needs registry.base_url in the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			client, err := registryClient(app)
			if err != nil {
				return err
			}

			matches, err := client.Search(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No registry entries found.") //nolint:forbidigo // User-facing output
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("NAME"),
				headerStyle.Render("VAT ID"),
				headerStyle.Render("CITY"),
				headerStyle.Render("WEBSITE"),
				headerStyle.Render("SIMILARITY"))
			for _, m := range matches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\n",
					truncateString(m.Entry.Name, 40),
					m.Entry.VATID,
					m.Entry.City,
					m.Entry.Website,
					m.Similarity*100)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if dryRun {
				return nil
			}

			partner := registry.PartnerFromMatch(user, matches[0])
			if err := app.store.SavePartner(ctx, partner); err != nil {
				return err
			}

			fmt.Printf("\n✓ Created partner %q (ID: %s) from the top hit\n", partner.Name, partner.ID) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "max candidates to show (default 10)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show candidates without creating a partner")

	return cmd
}

func partnersLocalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "localize <global-partner-id>",
		Short: "Copy a shared partner template into your own set",
		Long: `Localize copies a shared template's identifiers into a partner of
your own, so learning and removals stay private to you. Patterns do not
come along; they grow from your confirmations. Localizing the same
template again returns the existing copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			partner, err := registry.LocalizeGlobal(ctx, app.store, user, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("✓ Localized %q (ID: %s)\n", partner.Name, partner.ID) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func partnersRemoveTxnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-txn <transaction-id>",
		Short: "Undo a transaction's partner assignment and remember the veto",
		Long: `Remove-txn records that the assigned partner was wrong for this
transaction, clears the assignment, and rematches the row. The veto is
permanent: matching and learning both steer around it from now on, and
the partner's patterns are re-derived shortly after.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			txnID := args[0]

			user, err := requireUser()
			if err != nil {
				return err
			}

			app, err := newApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			// Queue first: a broken oracle config aborts before any writes.
			queue, client, err := app.learnQueue()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			txn, err := app.store.GetTransaction(ctx, txnID)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("transaction %s does not exist", txnID), err)
			}
			if err != nil {
				return err
			}
			if txn.UserID != user {
				return common.NewUserError(fmt.Sprintf("transaction %s does not exist", txnID), common.ErrNotFound)
			}
			if txn.PartnerID == "" {
				return common.NewUserError(fmt.Sprintf("transaction %s has no partner assignment", txnID), nil)
			}

			removedID := txn.PartnerID

			// The veto lands before the row changes, so an interruption in
			// between leaves the removal in place rather than the assignment.
			removal := model.ManualRemoval{
				TransactionID: txn.ID,
				Partner:       txn.Partner,
				Name:          txn.Name,
			}
			if err := app.store.AddManualRemoval(ctx, removedID, removal); err != nil {
				return err
			}

			txn.ClearAssignment()
			kept := txn.PartnerSuggestions[:0]
			for _, s := range txn.PartnerSuggestions {
				if s.PartnerID != removedID {
					kept = append(kept, s)
				}
			}
			txn.PartnerSuggestions = kept

			if err := app.store.SaveMatchResults(ctx, []model.Transaction{*txn}); err != nil {
				return err
			}

			if err := queue.Enqueue(ctx, user, removedID); err != nil {
				return err
			}

			// Rematch the row so the next-best candidate surfaces right away.
			if _, err := app.matcher.MatchPartners(ctx, user, []string{txn.ID}); err != nil {
				return err
			}

			fmt.Printf("✓ Removed partner assignment from %s; the partner's patterns will be re-learned\n", txnID) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

// registryClient builds the external-registry client from config. The base
// URL is the only required setting.
func registryClient(a *app) (registry.Client, error) {
	client, err := registry.NewClient(registry.Config{
		BaseURL: viper.GetString("registry.base_url"),
		APIKey:  viper.GetString("registry.api_key"),
		Timeout: viper.GetDuration("registry.timeout"),
	}, ownIdentity(), a.logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
