package models

import "time"

// State is an execution's position in the pipeline lifecycle.
type State string

const (
	StateDiscovered    State = "discovered"
	StateEvaluated     State = "evaluated"
	StateSafetyChecked State = "safety_checked"
	StateBuilt         State = "built"
	StateSimulated     State = "simulated"
	StateSigned        State = "signed"
	StateSubmitted     State = "submitted"
	StateConfirmed     State = "confirmed"
	StateFailed        State = "failed"
	StateTimedOut      State = "timed_out"
)

// Terminal reports whether the state ends the lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// ExecutionRecord is the durable trace of one pipeline run, from discovery to
// its terminal state.
type ExecutionRecord struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	State       State  `json:"state"`

	Path         []string `json:"path"`
	LoanProvider string   `json:"loan_provider,omitempty"`
	LoanAmount   uint64   `json:"loan_amount"`
	FeeAmount    uint64   `json:"fee_amount"`
	RepayAmount  uint64   `json:"repay_amount"`

	ExpectedProfit int64  `json:"expected_profit"`
	RiskLevel      string `json:"risk_level,omitempty"`

	ContentHash string `json:"content_hash,omitempty"`
	Nonce       uint64 `json:"nonce,omitempty"`
	Signature   string `json:"signature,omitempty"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}
