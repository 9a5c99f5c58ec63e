package model

import "time"

// ComplianceFigures are the numbers a participant reports for one window.
type ComplianceFigures struct {
	Total      int    `json:"total"`
	Using      int    `json:"using"`
	NotUsing   int    `json:"not_using"`
	GroupLabel string `json:"group_label"`
}

// Reconcile enforces Total == Using + NotUsing. A reported total that can
// cover the using count wins and NotUsing is derived from it; otherwise the
// total is rebuilt from the two parts.
func (f ComplianceFigures) Reconcile() ComplianceFigures {
	if f.Total >= f.Using && f.Total > 0 {
		f.NotUsing = f.Total - f.Using
		return f
	}
	f.Total = f.Using + f.NotUsing
	return f
}

// ComplianceUpdate is one persisted report. Window is the snapped start of
// the reporting interval and is matched by exact equality.
type ComplianceUpdate struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	Total      int       `json:"total"`
	Using      int       `json:"using"`
	NotUsing   int       `json:"not_using"`
	GroupLabel string    `json:"group_label"`
	Window     time.Time `json:"window"`
	ReportedAt time.Time `json:"reported_at"`
}
