package gateway

import (
	"fmt"
	"strings"

	"github.com/sells-group/payai/internal/model"
)

const billSystemPrompt = "You are a bill parsing engine. Extract structured data from OCR text of Indian bills, receipts and payment screenshots."

func billPrompt(ocrText string) string {
	cats := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		cats[i] = string(c)
	}
	return fmt.Sprintf(`Extract these fields from the bill text and return ONLY a JSON object:
{
  "amount": "numeric total only",
  "currency": "INR, USD, ...",
  "vendor": "merchant or company name",
  "expense_date": "YYYY-MM-DD",
  "payment_method": "UPI/Cash/Card/Net Banking/unknown",
  "category_hint": "%s",
  "notes": "short description of what was purchased"
}
Use empty values for fields you cannot find (0 for amount, "" otherwise).

Bill text:
[%s]`, strings.Join(cats, "/"), ocrText)
}

const complianceSystemPrompt = "You read short status updates posted in a factory group chat and extract headcount figures."

func compliancePrompt(message string) string {
	return fmt.Sprintf(`The message reports how many people in a group are wearing their headband.
Return ONLY a JSON object:
{
  "total": integer headcount or 0 if not stated,
  "using": integer count wearing it,
  "not_using": integer count not wearing it or 0 if not stated,
  "group_label": "line, shift or team name, empty if none"
}

Message:
[%s]`, message)
}

// RoastPrompt builds the escalation prompt for participants who missed a
// window of gridMinutes.
func RoastPrompt(gridMinutes int, handles []string, goalContext string) string {
	list := mentionList(handles)
	if goalContext == "" {
		goalContext = "we are tracking people wearing headbands in a factory"
	}
	return fmt.Sprintf(`You are a savage, funny Telegram bot in a work group chat.
Roast these people who missed their %d-minute update: %s.

Context: %s.
Keep it edgy but group-chat safe, call out their laziness, mention every handle (%s),
and make it one short paragraph.`, gridMinutes, list, goalContext, list)
}

// RoastFallback is sent when no roast could be generated.
func RoastFallback(handles []string) string {
	return fmt.Sprintf("Yo %s, where's the update? Stop being lazy!", mentionList(handles))
}

func mentionList(handles []string) string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = "@" + strings.TrimPrefix(h, "@")
	}
	return strings.Join(out, ", ")
}
