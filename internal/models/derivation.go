package models

import "time"

// DerivationState tracks one routed hop of a document.
type DerivationState string

const (
	DerivationPending  DerivationState = "PENDING"
	DerivationReceived DerivationState = "RECEIVED"
	DerivationAttended DerivationState = "ATTENDED"
	DerivationRejected DerivationState = "REJECTED"
)

// Active reports whether the hop still blocks the document pipeline.
func (s DerivationState) Active() bool {
	return s == DerivationPending || s == DerivationReceived
}

// Derivation is one hop of a document between areas.
type Derivation struct {
	ID               string          `db:"id" json:"id"`
	Number           string          `db:"number" json:"number"`
	DocumentID       string          `db:"document_id" json:"document_id"`
	OriginAreaID     string          `db:"origin_area_id" json:"origin_area_id"`
	DestAreaID       string          `db:"dest_area_id" json:"dest_area_id"`
	DerivedByUserID  string          `db:"derived_by_user_id" json:"derived_by_user_id"`
	ReceivedByUserID *string         `db:"received_by_user_id" json:"received_by_user_id,omitempty"`
	AttendedByUserID *string         `db:"attended_by_user_id" json:"attended_by_user_id,omitempty"`
	DerivedAt        time.Time       `db:"derived_at" json:"derived_at"`
	ReceivedAt       *time.Time      `db:"received_at" json:"received_at,omitempty"`
	AttendedAt       *time.Time      `db:"attended_at" json:"attended_at,omitempty"`
	Deadline         *time.Time      `db:"deadline" json:"deadline,omitempty"`
	State            DerivationState `db:"state" json:"state"`
	Urgent           bool            `db:"urgent" json:"urgent"`
	RequiresResponse bool            `db:"requires_response" json:"requires_response"`
	IsCopy           bool            `db:"is_copy" json:"is_copy"`
	Instructions     string          `db:"instructions" json:"instructions"`
	Observations     string          `db:"observations" json:"observations"`
	RejectionReason  *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
}

// DerivationView decorates a derivation with computed flags.
type DerivationView struct {
	Derivation
	DaysElapsed   int  `json:"days_elapsed"`
	DaysRemaining *int `json:"days_remaining,omitempty"`
	IsOverdue     bool `json:"is_overdue"`
}

// Decorate computes the elapsed/remaining/overdue flags relative to now.
func (d Derivation) Decorate(now time.Time) DerivationView {
	view := DerivationView{Derivation: d}
	view.DaysElapsed = int(now.Sub(d.DerivedAt).Hours() / 24)
	if d.Deadline != nil {
		remaining := int(d.Deadline.Sub(now).Hours() / 24)
		if remaining < 0 {
			remaining = 0
		}
		view.DaysRemaining = &remaining
		view.IsOverdue = d.Deadline.Before(now) && d.State.Active()
	}
	return view
}

// DerivationHistory is the full routing trail of a document.
type DerivationHistory struct {
	Derivations       []DerivationView `json:"derivations"`
	CurrentDerivation *DerivationView  `json:"current_derivation,omitempty"`
	InvolvedAreas     []string         `json:"involved_areas"`
	TotalProcessDays  int              `json:"total_process_days"`
}
