package types

import "time"

// FailureReason classifies why a file attempt was given up
type FailureReason string

const (
	ReasonTransientExhausted FailureReason = "transient_exhausted"
	ReasonPermanent          FailureReason = "permanent"
	ReasonDecode             FailureReason = "decode"
	ReasonBudget             FailureReason = "budget"
)

// RetryEligible reports whether a later retry run may reasonably succeed
func (r FailureReason) RetryEligible() bool {
	switch r {
	case ReasonTransientExhausted:
		return true
	default:
		return false
	}
}

// FailureRecord captures one exhausted attempt for a path
type FailureRecord struct {
	ID            int64         `json:"id"`
	Path          string        `json:"path"`
	Fingerprint   string        `json:"fingerprint"`
	Reason        FailureReason `json:"reason"`
	Detail        string        `json:"detail,omitempty"`
	AttemptCount  int           `json:"attempt_count"`
	RetryEligible bool          `json:"retry_eligible"`
	RunID         string        `json:"run_id"`
	FailedAt      time.Time     `json:"failed_at"`
}
