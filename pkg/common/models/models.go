package models

import "time"

type RecordKind string

const (
	RecordKindReport   RecordKind = "report"
	RecordKindSpecimen RecordKind = "specimen"
)

type OutcomeStatus string

const (
	OutcomeMapped   OutcomeStatus = "mapped"
	OutcomeRejected OutcomeStatus = "rejected"
	OutcomeFailed   OutcomeStatus = "delivery_failed"
)

// Outcome is the last known processing result of one input record.
type Outcome struct {
	RecordID  string        `json:"record_id"`
	Kind      RecordKind    `json:"kind"`
	Status    OutcomeStatus `json:"status"`
	BundleID  string        `json:"bundle_id,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
