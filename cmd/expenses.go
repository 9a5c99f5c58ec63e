package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/payai/internal/config"
	"github.com/sells-group/payai/internal/export"
	"github.com/sells-group/payai/internal/fetcher"
	"github.com/sells-group/payai/internal/gateway"
	"github.com/sells-group/payai/internal/model"
)

var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "Inspect, export and import confirmed expenses",
}

// -- expenses list --

var expensesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's newest expenses",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		led, err := openLedger(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		recs, err := led.ListByOwner(ctx, config.NormalizeIdentity(owner), limit)
		if err != nil {
			return eris.Wrap(err, "expenses list")
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No expenses found.")
			return nil
		}

		formatExpenseList(os.Stdout, recs)
		return nil
	},
}

// -- expenses export --

var expensesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an owner's expenses to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		owner, _ := cmd.Flags().GetString("owner")
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		led, err := openLedger(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		recs, err := led.ListByOwner(ctx, config.NormalizeIdentity(owner), limit)
		if err != nil {
			return eris.Wrap(err, "expenses export")
		}
		if err := export.Save(out, recs); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("owner", owner),
			zap.Int("records", len(recs)),
			zap.String("out", out),
		)
		return nil
	},
}

// -- expenses import --

var expensesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load expenses from a legacy CSV export",
	Long: "Reads a headed CSV from a local path, an http(s):// URL or an ftp:// URL, with columns owner, category, amount, currency, vendor, date, " +
		"payment_method, notes, kind, artifact_id, artifact_link and optional id. Rows without an " +
		"owner or a positive amount are skipped. Rows whose id already exists are ignored.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		f, err := fetcher.NewSources().Open(ctx, path)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		recs, skipped, err := readLegacyCSV(ctx, f)
		if err != nil {
			return err
		}

		led, err := openLedger(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		inserted, err := led.ImportExpenses(ctx, recs)
		if err != nil {
			return eris.Wrap(err, "expenses import")
		}

		zap.L().Info("import complete",
			zap.String("file", path),
			zap.Int("rows", len(recs)),
			zap.Int("skipped", skipped),
			zap.Int64("inserted", inserted),
		)
		return nil
	},
}

// readLegacyCSV parses every usable row. Unusable rows are logged and
// counted, not fatal.
func readLegacyCSV(ctx context.Context, r io.Reader) ([]model.ExpenseRecord, int, error) {
	rows, errs := fetcher.StreamRows(ctx, r, fetcher.CSVOptions{})

	var (
		recs    []model.ExpenseRecord
		skipped int
	)
	for row := range rows {
		rec, err := parseLegacyRow(row)
		if err != nil {
			zap.L().Warn("skipping csv row", zap.Int("line", row.Line), zap.Error(err))
			skipped++
			continue
		}
		recs = append(recs, rec)
	}
	if err := <-errs; err != nil {
		return nil, skipped, eris.Wrap(err, "read legacy csv")
	}
	return recs, skipped, nil
}

var legacyDateLayouts = []string{model.DateLayout, "02/01/2006", "2006/01/02", "02-01-2006"}

func parseLegacyRow(row fetcher.Row) (model.ExpenseRecord, error) {
	owner := config.NormalizeIdentity(row.Get("owner", "user", "username"))
	if owner == "" {
		return model.ExpenseRecord{}, eris.New("missing owner")
	}
	amount := gateway.NormalizeAmount(row.Get("amount", "total"))
	if amount <= 0 {
		return model.ExpenseRecord{}, eris.Errorf("invalid amount %q", row.Get("amount", "total"))
	}

	rec := model.ExpenseRecord{
		ID:            row.Get("id"),
		Owner:         owner,
		Category:      model.ParseCategory(row.Get("category", "category_hint")),
		Amount:        amount,
		Currency:      strings.ToUpper(row.Get("currency")),
		Vendor:        row.Get("vendor", "merchant"),
		PaymentMethod: row.Get("payment_method", "payment"),
		Notes:         row.Get("notes", "description"),
		Kind:          model.ArtifactInvoice,
		ArtifactID:    row.Get("artifact_id", "drive_file_id"),
		ArtifactLink:  row.Get("artifact_link", "drive_link", "link"),
		Status:        model.ExpenseStatusProcessed,
	}
	if rec.Currency == "" {
		rec.Currency = "INR"
	}
	if rec.Vendor == "" {
		rec.Vendor = "Unknown"
	}
	if k := model.ArtifactKind(strings.ToLower(row.Get("kind"))); k == model.ArtifactPaymentProof {
		rec.Kind = k
	}

	if raw := row.Get("date", "expense_date"); raw != "" {
		d, err := parseLegacyDate(raw)
		if err != nil {
			return model.ExpenseRecord{}, err
		}
		rec.ExpenseDate = d
	}
	if raw := row.Get("created_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.CreatedAt = ts
		}
	}
	return rec, nil
}

func parseLegacyDate(raw string) (time.Time, error) {
	for _, layout := range legacyDateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, nil
		}
	}
	return time.Time{}, eris.Errorf("invalid date %q", raw)
}

func formatExpenseList(out io.Writer, recs []model.ExpenseRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tCATEGORY\tAMOUNT\tVENDOR\tKIND\tLINK")
	_, _ = fmt.Fprintln(w, "----\t--------\t------\t------\t----\t----")

	for _, r := range recs {
		date := ""
		if !r.ExpenseDate.IsZero() {
			date = r.ExpenseDate.Format(model.DateLayout)
		}
		vendor := r.Vendor
		if len(vendor) > 30 {
			vendor = vendor[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s %.2f\t%s\t%s\t%s\n",
			date,
			r.Category,
			r.Currency,
			r.Amount,
			vendor,
			r.Kind,
			r.ArtifactLink,
		)
	}
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{expensesListCmd, expensesExportCmd} {
		c.Flags().String("owner", "", "chat handle of the expense owner (required)")
		_ = c.MarkFlagRequired("owner")
	}
	expensesListCmd.Flags().Int("limit", 20, "max number of expenses to display")
	expensesExportCmd.Flags().Int("limit", 10000, "max number of expenses to export")
	expensesExportCmd.Flags().String("out", "expenses.xlsx", "output XLSX path")

	expensesImportCmd.Flags().String("file", "", "legacy CSV path or http(s)/ftp URL (required)")
	_ = expensesImportCmd.MarkFlagRequired("file")

	expensesCmd.AddCommand(expensesListCmd, expensesExportCmd, expensesImportCmd)
	rootCmd.AddCommand(expensesCmd)
}
