package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/signing"
)

// ClickHouseSink persists audit records for offline analysis. Insert failures
// are logged and dropped; the pipeline never stalls on the audit store.
type ClickHouseSink struct {
	conn driver.Conn
	log  *logrus.Logger
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

func NewClickHouseSink(cfg ClickHouseConfig) (*ClickHouseSink, error) {
	if cfg.Database == "" {
		cfg.Database = "arbitrage"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn, log: cfg.Logger}, nil
}

func (s *ClickHouseSink) RecordExecution(ctx context.Context, rec *models.ExecutionRecord) {
	query := `
		INSERT INTO executions (
			id, fingerprint, state, path, loan_provider, loan_amount,
			fee_amount, repay_amount, expected_profit, risk_level,
			content_hash, nonce, signature, error_kind, error,
			started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		rec.ID,
		rec.Fingerprint,
		string(rec.State),
		strings.Join(rec.Path, ">"),
		rec.LoanProvider,
		rec.LoanAmount,
		rec.FeeAmount,
		rec.RepayAmount,
		rec.ExpectedProfit,
		rec.RiskLevel,
		rec.ContentHash,
		rec.Nonce,
		rec.Signature,
		rec.ErrorKind,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
		rec.DurationMs,
	)
	if err != nil {
		s.log.WithError(err).WithField("execution_id", rec.ID).Warn("failed to persist execution record")
	}
}

func (s *ClickHouseSink) RecordSigning(ctx context.Context, rec signing.AuditRecord) {
	query := `
		INSERT INTO signing_audit (
			id, mode, signer, content_hash, nonce, success, reason, at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		rec.ID,
		string(rec.Mode),
		rec.Signer,
		rec.ContentHash,
		rec.Nonce,
		rec.Success,
		rec.Reason,
		rec.At,
	)
	if err != nil {
		s.log.WithError(err).WithField("audit_id", rec.ID).Warn("failed to persist signing audit")
	}
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
