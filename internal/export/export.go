// Package export renders expense records as an XLSX workbook.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/payai/internal/model"
)

// SheetName is the single sheet every export carries.
const SheetName = "Expenses"

// Header is the first row of the sheet.
var Header = []string{
	"Date",
	"Owner",
	"Category",
	"Amount",
	"Currency",
	"Vendor",
	"Payment Method",
	"Kind",
	"Artifact Link",
	"Notes",
	"Recorded At",
}

const maxNotes = 140

// Workbook builds the export in memory.
func Workbook(recs []model.ExpenseRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	addStrings(sheet.AddRow(), Header...)
	for _, r := range recs {
		row := sheet.AddRow()
		date := ""
		if !r.ExpenseDate.IsZero() {
			date = r.ExpenseDate.Format(model.DateLayout)
		}
		addStrings(row, date, r.Owner, string(r.Category))
		row.AddCell().SetFloatWithFormat(r.Amount, "#,##0.00")
		addStrings(row,
			r.Currency,
			r.Vendor,
			r.PaymentMethod,
			string(r.Kind),
			r.ArtifactLink,
			truncate(r.Notes, maxNotes),
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, recs []model.ExpenseRecord) error {
	f, err := Workbook(recs)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// Save writes the workbook to path.
func Save(path string, recs []model.ExpenseRecord) error {
	f, err := Workbook(recs)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
