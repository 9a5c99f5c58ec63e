package model

import (
	"strings"
	"time"
)

// Category classifies an expense. The set mirrors the hints the extraction
// prompt allows the model to return.
type Category string

const (
	CategoryCab       Category = "cab"
	CategoryFood      Category = "food"
	CategoryStay      Category = "stay"
	CategoryShopping  Category = "shopping"
	CategoryUtilities Category = "utilities"
	CategoryFuel      Category = "fuel"
	CategoryTravel    Category = "travel"
	CategoryOther     Category = "other"
)

// Categories lists every known category in prompt order.
var Categories = []Category{
	CategoryCab,
	CategoryFood,
	CategoryStay,
	CategoryShopping,
	CategoryUtilities,
	CategoryFuel,
	CategoryTravel,
	CategoryOther,
}

// ParseCategory maps a free-form hint onto a known category. Unknown or
// empty hints map to CategoryOther.
func ParseCategory(hint string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(hint)))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// ExpenseStatus is the lifecycle status of a persisted expense.
type ExpenseStatus string

const (
	// ExpenseStatusProcessed is the only status the intake flow produces.
	ExpenseStatusProcessed ExpenseStatus = "processed"
)

// ArtifactKind distinguishes bill photos from payment screenshots.
type ArtifactKind string

const (
	ArtifactInvoice      ArtifactKind = "invoice"
	ArtifactPaymentProof ArtifactKind = "payment_proof"
)

// DateLayout is the canonical expense date format.
const DateLayout = "2006-01-02"

// ExtractedFields is the normalized result of field extraction.
type ExtractedFields struct {
	Amount        float64  `json:"amount"`
	Currency      string   `json:"currency"`
	Vendor        string   `json:"vendor"`
	ExpenseDate   string   `json:"expense_date"` // YYYY-MM-DD
	PaymentMethod string   `json:"payment_method"`
	Category      Category `json:"category_hint"`
	Notes         string   `json:"notes"`
}

// Date parses ExpenseDate. Normalized fields always carry a valid date, so
// the zero time only shows up for hand-built values.
func (f ExtractedFields) Date() time.Time {
	t, err := time.Parse(DateLayout, f.ExpenseDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PendingExpense is the unconfirmed extraction for one conversation.
type PendingExpense struct {
	RawText     string          `json:"raw_text"`
	Fields      ExtractedFields `json:"fields"`
	RawResponse string          `json:"raw_response"`
	LocalPath   string          `json:"local_path"`
	MimeType    string          `json:"mime_type"`
	Owner       string          `json:"owner"`
	Kind        ArtifactKind    `json:"kind"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExpenseRecord is a confirmed, persisted expense. Records are never updated.
type ExpenseRecord struct {
	ID             string        `json:"id"`
	Owner          string        `json:"owner"`
	Category       Category      `json:"category"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	Vendor         string        `json:"vendor"`
	ExpenseDate    time.Time     `json:"expense_date"`
	PaymentMethod  string        `json:"payment_method"`
	Notes          string        `json:"notes"`
	Kind           ArtifactKind  `json:"kind"`
	ArtifactID     string        `json:"artifact_id"`
	ArtifactLink   string        `json:"artifact_link"`
	LocalPath      string        `json:"local_path"`
	RawOCRText     string        `json:"raw_ocr_text"`
	RawLLMResponse string        `json:"raw_llm_response"`
	Status         ExpenseStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewExpenseRecord builds the record persisted on confirm.
func NewExpenseRecord(p *PendingExpense, artifactID, artifactLink string) ExpenseRecord {
	kind := p.Kind
	if kind == "" {
		kind = ArtifactInvoice
	}
	return ExpenseRecord{
		Owner:          p.Owner,
		Category:       ParseCategory(string(p.Fields.Category)),
		Amount:         p.Fields.Amount,
		Currency:       p.Fields.Currency,
		Vendor:         p.Fields.Vendor,
		ExpenseDate:    p.Fields.Date(),
		PaymentMethod:  p.Fields.PaymentMethod,
		Notes:          p.Fields.Notes,
		Kind:           kind,
		ArtifactID:     artifactID,
		ArtifactLink:   artifactLink,
		LocalPath:      p.LocalPath,
		RawOCRText:     p.RawText,
		RawLLMResponse: p.RawResponse,
		Status:         ExpenseStatusProcessed,
	}
}
