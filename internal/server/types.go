package server

import (
	"time"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse reports service liveness plus the RPC endpoint registry.
type HealthResponse struct {
	OK        bool                 `json:"ok"`
	InFlight  int                  `json:"in_flight"`
	Endpoints []rpc.EndpointHealth `json:"endpoints"`
}

// OpportunityView is the API projection of a scanned opportunity.
type OpportunityView struct {
	Path            []string  `json:"path"` // symbols, not raw mints
	Fingerprint     string    `json:"fingerprint"`
	EstimatedProfit int64     `json:"estimated_profit"`
	RequiredCapital uint64    `json:"required_capital"`
	Confidence      float64   `json:"confidence"`
	PriceImpactPct  float64   `json:"price_impact_pct"`
	DiscoveredAt    time.Time `json:"discovered_at"`
}

// ScanResponse lists the opportunities found in one scan pass.
type ScanResponse struct {
	Opportunities []OpportunityView `json:"opportunities"`
	TookMs        int64             `json:"took_ms"`
}

// ExecuteResponse reports one execution attempt.
type ExecuteResponse struct {
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
	Record     any    `json:"record,omitempty"`
	RiskLevel  string `json:"risk_level,omitempty"`
}

// FlagUpsertRequest represents a request to create or update a runtime toggle
type FlagUpsertRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// FlagUpdateRequest represents a request to update an existing toggle
type FlagUpdateRequest struct {
	Value bool `json:"value"`
}

// AskRequest represents a natural language query over execution history
type AskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"` // Optional model override
}

// AskResponse represents the response from an analyst query
type AskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}
