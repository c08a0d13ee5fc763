package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Link incoming documents to the transactions they settle",
	}

	cmd.AddCommand(filesMatchCmd())

	return cmd
}

func filesMatchCmd() *cobra.Command {
	var (
		fileID     string
		amount     string
		date       string
		name       string
		iban       string
		text       string
		excludeIDs []string
		query      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the transactions a document most likely belongs to",
		Long: `Match scores stored transactions against a document and lists the
candidates worth looking at, best first. The document comes either from
storage via --file, or ad hoc from the extracted values on the command
line.

Examples:
  konto files match --user u-42 --file f-2086
  konto files match --user u-42 --amount -119.00 --date 2026-03-14 --name "Hetzner Online GmbH"`,
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

			var file *model.File
			switch {
			case fileID != "":
				file, err = app.store.GetFile(ctx, fileID)
				if errors.Is(err, common.ErrNotFound) {
					return common.NewUserError(fmt.Sprintf("file %s does not exist", fileID), err)
				}
				if err != nil {
					return err
				}
				if file.UserID != user {
					return common.NewUserError(fmt.Sprintf("file %s does not exist", fileID), common.ErrNotFound)
				}
			default:
				file, err = adHocFile(user, amount, date, name, iban, text)
				if err != nil {
					return err
				}
			}

			matches, err := app.matcher.FindTransactionMatchesForFile(ctx, user, file, excludeIDs, query, limit)
			if err != nil {
				return err
			}

			if len(matches) == 0 {
				fmt.Println("No candidate transactions found.") //nolint:forbidigo // User-facing output
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() {
				_ = w.Flush()
			}()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("TXN"),
				headerStyle.Render("DATE"),
				headerStyle.Render("AMOUNT"),
				headerStyle.Render("COUNTERPARTY"),
				headerStyle.Render("CONFIDENCE"),
				headerStyle.Render("VERDICT"))

			for i := range matches {
				txn := &matches[i].Transaction
				verdict := "suggest"
				if matches[i].Score.AutoApply() {
					verdict = "auto"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
					txn.ID,
					txn.Date.Format("2006-01-02"),
					formatMinor(txn.AmountMinor, txn.Currency),
					truncateString(txn.Partner, 32),
					matches[i].Score.Confidence,
					verdict)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&fileID, "file", "", "stored file to match")
	cmd.Flags().StringVar(&amount, "amount", "", "document amount, e.g. -119.00")
	cmd.Flags().StringVar(&date, "date", "", "document date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&name, "name", "", "counterparty name on the document")
	cmd.Flags().StringVar(&iban, "iban", "", "account number on the document")
	cmd.Flags().StringVar(&text, "text", "", "free text from the document, e.g. a reference line")
	cmd.Flags().StringArrayVar(&excludeIDs, "exclude", nil, "transaction to skip, e.g. already linked (repeatable)")
	cmd.Flags().StringVar(&query, "query", "", "narrow candidates by free text")
	cmd.Flags().IntVar(&limit, "limit", 0, "max candidates to return (default 10)")

	return cmd
}

// adHocFile builds an in-memory document from command-line values. At least
// one scorable signal is required; with none, every transaction scores zero.
func adHocFile(user, amount, date, name, iban, text string) (*model.File, error) {
	if amount == "" && date == "" && name == "" && iban == "" && text == "" {
		return nil, common.NewUserError("pass --file, or at least one of --amount, --date, --name, --iban, --text", nil)
	}

	file := &model.File{
		UserID:      user,
		PartnerName: name,
		IBAN:        iban,
		RawText:     text,
	}

	if amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("invalid amount %q", amount), err)
		}
		minor := d.Shift(2).IntPart()
		file.AmountMinor = &minor
	}

	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date), err)
		}
		file.Date = &parsed
	}

	return file, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
