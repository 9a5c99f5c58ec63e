package intake

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/payai/internal/model"
)

const (
	welcomeText             = "Welcome to PayAI Bill Collector! 🧾\nSend me a photo or PDF of your invoice/receipt to start.\n\nAdd \"payment\" to the caption for payment screenshots.\n/expenses lists your latest bills, /cancel drops the pending one."
	helpText                = "Send me a photo or PDF of a bill to get started. /expenses lists your latest bills."
	unsupportedDocumentText = "⚠️ I can only read images and PDFs. Please send a photo or PDF of the bill."
	processingText          = "🔍 Processing bill..."
	downloadFailedText      = "❌ Could not download the file. Please send it again."
	ocrFailedText           = "❌ Could not read the document. Please try again."
	emptyOCRText            = "⚠️ Could not extract text from the document. Please retake the photo in good light."
	extractionFailedText    = "❌ Bill analysis is unavailable right now. Please try again later."
	nothingPendingText      = "ℹ️ No pending bill found. Send a photo of a bill first."
	nothingToCancelText     = "ℹ️ Nothing to cancel."
	cancelledText           = "❌ Bill processing cancelled."
	savingText              = "☁️ Uploading and saving..."
	listFailedText          = "❌ Could not load your expenses. Please try again later."
)

var printer = message.NewPrinter(language.English)

// formatAmount renders an amount with thousands separators and two decimals.
func formatAmount(currency string, amount float64) string {
	return printer.Sprintf("%s %.2f", currency, amount)
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func unauthorizedText(owner string) string {
	if owner == "" {
		owner = "unknown"
	}
	return fmt.Sprintf("⛔ Sorry @%s, you are not authorized to use this bot.", owner)
}

func summaryText(p *model.PendingExpense) string {
	f := p.Fields
	var sb strings.Builder
	sb.WriteString("📊 *Bill Extracted:*\n")
	fmt.Fprintf(&sb, "🏢 Vendor: %s\n", escape(f.Vendor))
	fmt.Fprintf(&sb, "💰 Amount: %s\n", escape(formatAmount(f.Currency, f.Amount)))
	fmt.Fprintf(&sb, "📅 Date: %s\n", escape(f.ExpenseDate))
	fmt.Fprintf(&sb, "📂 Category: %s\n", escape(string(f.Category)))
	fmt.Fprintf(&sb, "💳 Payment: %s\n", escape(f.PaymentMethod))
	if f.Notes != "" {
		fmt.Fprintf(&sb, "📝 Notes: %s\n", escape(f.Notes))
	}
	if p.Kind == model.ArtifactPaymentProof {
		sb.WriteString("🧾 Type: payment proof\n")
	}
	sb.WriteString("\nDoes this look correct?")
	return sb.String()
}

func saveFailedText(p *model.PendingExpense) string {
	return "⚠️ *Saving failed.* Press Confirm to try again.\n\n" + summaryText(p)
}

func savedText(rec *model.ExpenseRecord) string {
	text := fmt.Sprintf("✅ *Success!*\n\nSaved %s for %s.",
		escape(formatAmount(rec.Currency, rec.Amount)), escape(rec.Vendor))
	if rec.ArtifactLink != "" {
		text += fmt.Sprintf("\n📁 [View file](%s)", rec.ArtifactLink)
	}
	return text
}

func expenseListText(recs []model.ExpenseRecord) string {
	if len(recs) == 0 {
		return "No expenses recorded yet."
	}
	var sb strings.Builder
	sb.WriteString("🧾 *Your latest expenses:*\n")
	for i, r := range recs {
		fmt.Fprintf(&sb, "%d. %s · %s · %s · %s\n",
			i+1,
			r.ExpenseDate.Format(model.DateLayout),
			escape(formatAmount(r.Currency, r.Amount)),
			escape(r.Vendor),
			escape(string(r.Category)),
		)
	}
	return strings.TrimRight(sb.String(), "\n")
}
