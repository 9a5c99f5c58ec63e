package gateway

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/payai/internal/model"
)

// Defaults for fields the model could not find.
const (
	DefaultCurrency      = "INR"
	DefaultVendor        = "Unknown"
	DefaultPaymentMethod = "unknown"
)

// NormalizeFields turns a decoded model response into ExtractedFields. It
// never fails: missing or malformed values fall back to defaults, and the
// date falls back to today. Normalizing already-normalized fields returns
// them unchanged.
func NormalizeFields(raw map[string]any, today time.Time) model.ExtractedFields {
	return model.ExtractedFields{
		Amount:        NormalizeAmount(raw["amount"]),
		Currency:      stringOr(raw["currency"], DefaultCurrency),
		Vendor:        stringOr(raw["vendor"], DefaultVendor),
		ExpenseDate:   normalizeDate(raw["expense_date"], today),
		PaymentMethod: stringOr(raw["payment_method"], DefaultPaymentMethod),
		Category:      model.ParseCategory(stringOr(raw["category_hint"], string(model.CategoryOther))),
		Notes:         stringOr(raw["notes"], ""),
	}
}

// NormalizeAmount accepts a JSON number or a string. Strings keep only
// digits and '.', with leading dots dropped so "Rs. 1,250.00" reads as
// 1250. Anything unparseable, negative or non-finite is 0.
func NormalizeAmount(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		var sb strings.Builder
		for _, r := range t {
			if (r >= '0' && r <= '9') || r == '.' {
				sb.WriteRune(r)
			}
		}
		s := strings.TrimLeft(sb.String(), ".")
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func normalizeDate(v any, today time.Time) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if d, err := time.Parse(model.DateLayout, s); err == nil {
			return d.Format(model.DateLayout)
		}
	}
	return today.Format(model.DateLayout)
}

func stringOr(v any, def string) string {
	s, ok := v.(string)
	if !ok {
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}
