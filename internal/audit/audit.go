package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/signing"
)

// Sink receives execution traces and signing audit records. Implementations
// must never block the pipeline on a slow backend; failures are logged and
// swallowed.
type Sink interface {
	RecordExecution(ctx context.Context, rec *models.ExecutionRecord)
	RecordSigning(ctx context.Context, rec signing.AuditRecord)
}

// Multi fans records out to several sinks.
type Multi []Sink

func (m Multi) RecordExecution(ctx context.Context, rec *models.ExecutionRecord) {
	for _, s := range m {
		s.RecordExecution(ctx, rec)
	}
}

func (m Multi) RecordSigning(ctx context.Context, rec signing.AuditRecord) {
	for _, s := range m {
		s.RecordSigning(ctx, rec)
	}
}

// Nop discards everything. Useful in tests and dry runs.
type Nop struct{}

func (Nop) RecordExecution(context.Context, *models.ExecutionRecord) {}
func (Nop) RecordSigning(context.Context, signing.AuditRecord)       {}

// LogrusSink writes structured audit lines to the process log.
type LogrusSink struct {
	Log *logrus.Logger
}

func (s *LogrusSink) RecordExecution(_ context.Context, rec *models.ExecutionRecord) {
	s.Log.WithFields(logrus.Fields{
		"execution_id":    rec.ID,
		"fingerprint":     rec.Fingerprint,
		"state":           rec.State,
		"loan_provider":   rec.LoanProvider,
		"loan_amount":     rec.LoanAmount,
		"expected_profit": rec.ExpectedProfit,
		"risk_level":      rec.RiskLevel,
		"error_kind":      rec.ErrorKind,
		"duration_ms":     rec.DurationMs,
	}).Info("execution recorded")
}

func (s *LogrusSink) RecordSigning(_ context.Context, rec signing.AuditRecord) {
	s.Log.WithFields(logrus.Fields{
		"audit_id":     rec.ID,
		"mode":         rec.Mode,
		"signer":       rec.Signer,
		"content_hash": rec.ContentHash,
		"nonce":        rec.Nonce,
		"success":      rec.Success,
	}).Info("signing recorded")
}
