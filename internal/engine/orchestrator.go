package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/audit"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/flashloan"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/safety"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/txbuilder"
)

// ChainExecutor is the slice of the RPC client the orchestrator drives.
type ChainExecutor interface {
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulationResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.SendOptions) (string, error)
	ConfirmTransaction(ctx context.Context, signature, commitment string, timeout time.Duration) (bool, error)
}

// TxBuilder assembles unsigned transactions.
type TxBuilder interface {
	Build(ctx context.Context, instructions []solana.Instruction, summary string) (*txbuilder.BuiltTransaction, error)
}

// Signer signs built transactions.
type Signer interface {
	Sign(ctx context.Context, bt *txbuilder.BuiltTransaction) (*solana.Transaction, error)
}

// Approver decides whether a risky-but-allowed transaction may be signed. It
// is keyed on the built transaction's content hash, so approval binds to the
// exact bytes about to be signed. When the orchestrator has no approver, only
// low-risk opportunities run.
type Approver interface {
	Approve(ctx context.Context, contentHash string, report safety.Report) bool
}

// Pauser exposes the operator pause toggle.
type Pauser interface {
	ExecutionPaused(ctx context.Context) bool
}

// Annotator produces an advisory note for a finished execution. Advisory
// only: errors and content never influence control flow.
type Annotator interface {
	Annotate(ctx context.Context, rec *models.ExecutionRecord, report *safety.Report) (string, error)
}

// Recorder persists execution records outside the audit trail, e.g. the
// recent-executions cache. Best effort.
type Recorder interface {
	RecordExecution(ctx context.Context, rec *models.ExecutionRecord) error
}

// Config for the orchestrator.
type Config struct {
	Payer solana.PublicKey

	MinProfit      uint64
	MaxSlippageBps uint16
	GasEstimate    uint64

	Commitment     string
	ConfirmTimeout time.Duration

	Logger *logrus.Logger
}

// Orchestrator runs opportunities through the full pipeline: evaluation,
// safety, build, simulate, sign, submit, confirm. One instance is safe for
// concurrent use; the guard serializes per-fingerprint.
type Orchestrator struct {
	scan      *scanner.Scanner
	source    scanner.QuoteSource
	providers []flashloan.Provider
	builder   TxBuilder
	signer    Signer
	chain     ChainExecutor
	sink      audit.Sink

	approver Approver
	pauser   Pauser
	advisor  Annotator
	recorder Recorder

	guard *Guard
	cfg   Config
	log   *logrus.Logger
}

// Deps carries the orchestrator's collaborators. Approver, Pauser, Annotator,
// and Recorder are optional.
type Deps struct {
	Scanner   *scanner.Scanner
	Source    scanner.QuoteSource
	Providers []flashloan.Provider
	Builder   TxBuilder
	Signer    Signer
	Chain     ChainExecutor
	Sink      audit.Sink

	Approver Approver
	Pauser   Pauser
	Advisor  Annotator
	Recorder Recorder
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Scanner == nil {
		return nil, fmt.Errorf("engine: scanner is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("engine: quote source is required")
	}
	if len(deps.Providers) == 0 {
		return nil, fmt.Errorf("engine: at least one flash-loan provider is required")
	}
	if deps.Builder == nil || deps.Signer == nil || deps.Chain == nil {
		return nil, fmt.Errorf("engine: builder, signer, and chain executor are required")
	}
	if cfg.Payer.IsZero() {
		return nil, fmt.Errorf("engine: payer is required")
	}
	if deps.Sink == nil {
		deps.Sink = audit.Nop{}
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 45 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Orchestrator{
		scan:      deps.Scanner,
		source:    deps.Source,
		providers: deps.Providers,
		builder:   deps.Builder,
		signer:    deps.Signer,
		chain:     deps.Chain,
		sink:      deps.Sink,
		approver:  deps.Approver,
		pauser:    deps.Pauser,
		advisor:   deps.Advisor,
		recorder:  deps.Recorder,
		guard:     NewGuard(),
		cfg:       cfg,
		log:       cfg.Logger,
	}, nil
}

// Result is the outcome of one execution attempt.
type Result struct {
	Record *models.ExecutionRecord
	Report *safety.Report

	// Skipped is set when the attempt never entered the pipeline: paused,
	// or the same opportunity already in flight. No side effects occurred.
	Skipped    bool
	SkipReason string
}

// ScanOnce runs one scan pass.
func (o *Orchestrator) ScanOnce(ctx context.Context) ([]*scanner.Opportunity, error) {
	opps, err := o.scan.Scan(ctx)
	if err != nil {
		return nil, E(KindQuoteUnavailable, err)
	}
	o.log.WithField("opportunities", len(opps)).Info("scan complete")
	return opps, nil
}

// ExecuteBest scans and executes the most profitable opportunity, if any.
func (o *Orchestrator) ExecuteBest(ctx context.Context) (*Result, error) {
	opps, err := o.ScanOnce(ctx)
	if err != nil {
		return nil, err
	}
	if len(opps) == 0 || opps[0].EstimatedProfit <= 0 {
		return &Result{Skipped: true, SkipReason: "no profitable opportunity"}, nil
	}
	return o.Execute(ctx, opps[0])
}

// Execute runs one opportunity through the pipeline. The returned Result is
// always non-nil when err is nil; rejections are reported in the record's
// terminal state, not as Go errors.
func (o *Orchestrator) Execute(ctx context.Context, opp *scanner.Opportunity) (*Result, error) {
	if opp == nil || opp.Cycle == nil || len(opp.Cycle.Legs) == 0 {
		return nil, Ef(KindInput, "opportunity has no cycle")
	}

	if o.pauser != nil && o.pauser.ExecutionPaused(ctx) {
		return &Result{Skipped: true, SkipReason: "execution paused by operator"}, nil
	}

	fp := opp.Fingerprint()
	release, ok := o.guard.Acquire(fp)
	if !ok {
		o.log.WithField("fingerprint", fp).Debug("duplicate opportunity ignored")
		return &Result{Skipped: true, SkipReason: "same opportunity already in flight"}, nil
	}
	defer release()

	rec := &models.ExecutionRecord{
		ID:             uuid.NewString(),
		Fingerprint:    fp,
		State:          models.StateDiscovered,
		Path:           opp.Cycle.Path,
		ExpectedProfit: opp.EstimatedProfit,
		StartedAt:      time.Now().UTC(),
	}
	log := o.log.WithFields(logrus.Fields{
		"execution_id": rec.ID,
		"fingerprint":  fp,
	})

	report, err := o.run(ctx, opp, rec, log)
	o.finish(ctx, rec, report)

	if err != nil && !rec.State.Terminal() {
		rec.State = models.StateFailed
	}
	return &Result{Record: rec, Report: report}, nil
}

// run advances the record through the pipeline, returning the safety report
// once produced. Failures set the record's terminal state and error fields.
func (o *Orchestrator) run(ctx context.Context, opp *scanner.Opportunity, rec *models.ExecutionRecord, log *logrus.Entry) (*safety.Report, error) {
	// Provider selection and loan economics.
	loanAmount := opp.RequiredCapital
	provider := flashloan.Select(o.providers, loanAmount)
	if provider == nil {
		return nil, o.fail(rec, KindInput, fmt.Errorf("no flash-loan provider can serve %d", loanAmount))
	}
	rec.LoanProvider = provider.Name()
	rec.LoanAmount = loanAmount

	eval, err := flashloan.Evaluate(loanAmount, provider.FeeBps(), opp.Cycle.FinalAmount(), o.cfg.MinProfit)
	if err != nil {
		return nil, o.fail(rec, KindInput, err)
	}
	rec.FeeAmount = eval.FeeAmount
	rec.RepayAmount = eval.RepayAmount
	rec.ExpectedProfit = eval.Profit
	rec.State = models.StateEvaluated

	if !eval.Profitable {
		return nil, o.fail(rec, KindSafetyRejected,
			fmt.Errorf("profit %d below minimum %d after %s fee", eval.Profit, o.cfg.MinProfit, provider.Name()))
	}

	// Safety battery.
	report := safety.Validate(safety.Params{
		InputAmount:     loanAmount,
		ExpectedOutput:  opp.Cycle.FinalAmount(),
		FlashLoanFeeBps: provider.FeeBps(),
		GasCost:         opp.EstimatedGasFee,
		SlippageBps:     o.cfg.MaxSlippageBps,
		PriceImpactPct:  opp.PriceImpactPct,
		MinimumProfit:   o.cfg.MinProfit,
	})
	rec.RiskLevel = string(report.RiskLevel)
	rec.State = models.StateSafetyChecked

	if !report.CanProceed {
		failed := report.FailedErrors()
		return &report, o.fail(rec, KindSafetyRejected,
			fmt.Errorf("safety validation failed: %s", failed[0].Detail))
	}
	if report.RiskLevel != safety.RiskLow && o.approver == nil {
		return &report, o.fail(rec, KindSafetyRejected,
			fmt.Errorf("risk level %s requires an approver", report.RiskLevel))
	}

	// Assemble: borrow, swap legs, repay.
	instructions, err := o.assemble(ctx, opp, provider, eval)
	if err != nil {
		return &report, o.fail(rec, KindOf(err), err)
	}

	summary := fmt.Sprintf("flash-loan arb %s via %s, expected profit %d",
		opp.Cycle.RouteSignature(), provider.Name(), eval.Profit)
	bt, err := o.builder.Build(ctx, instructions, summary)
	if err != nil {
		return &report, o.fail(rec, KindNetworkTransient, err)
	}
	rec.ContentHash = bt.ContentHash
	rec.Nonce = bt.Nonce
	rec.State = models.StateBuilt

	// Simulate before any key material is touched. A build that goes stale
	// before signing is rebuilt once, never reused.
	rebuilt := false
	for {
		unsigned, err := bt.Transaction()
		if err != nil {
			return &report, o.fail(rec, KindInput, err)
		}
		sim, err := o.chain.SimulateTransaction(ctx, unsigned)
		if err != nil {
			return &report, o.fail(rec, KindNetworkTransient, err)
		}
		if !sim.Success {
			return &report, o.fail(rec, KindSimulationRejected, fmt.Errorf("simulation rejected: %s", sim.Err))
		}
		rec.State = models.StateSimulated
		log.WithField("units_consumed", sim.UnitsConsumed).Debug("simulation passed")

		if !bt.Stale() || rebuilt {
			break
		}
		rebuilt = true
		log.WithField("content_hash", bt.ContentHash).Info("built transaction went stale, rebuilding")
		bt, err = o.builder.Build(ctx, instructions, summary)
		if err != nil {
			return &report, o.fail(rec, KindNetworkTransient, err)
		}
		rec.ContentHash = bt.ContentHash
		rec.Nonce = bt.Nonce
	}

	// Non-low risk blocks on approval of the exact transaction to be signed.
	if report.RiskLevel != safety.RiskLow && !o.approver.Approve(ctx, bt.ContentHash, report) {
		return &report, o.fail(rec, KindSafetyRejected,
			fmt.Errorf("risk level %s not approved", report.RiskLevel))
	}

	signed, err := o.signer.Sign(ctx, bt)
	if err != nil {
		return &report, o.fail(rec, KindSigningFailure, err)
	}
	rec.State = models.StateSigned

	sig, err := o.chain.SendTransaction(ctx, signed, nil)
	if err != nil {
		return &report, o.fail(rec, KindNetworkTransient, err)
	}
	rec.Signature = sig
	rec.State = models.StateSubmitted
	log.WithField("signature", sig).Info("transaction submitted")

	confirmed, err := o.chain.ConfirmTransaction(ctx, sig, o.cfg.Commitment, o.cfg.ConfirmTimeout)
	if err != nil {
		return &report, o.fail(rec, KindNetworkTransient, err)
	}
	if !confirmed {
		rec.State = models.StateTimedOut
		rec.ErrorKind = string(KindNetworkTransient)
		rec.Error = fmt.Sprintf("confirmation not reached within %s", o.cfg.ConfirmTimeout)
		return &report, nil
	}

	rec.State = models.StateConfirmed
	log.WithFields(logrus.Fields{
		"signature": sig,
		"profit":    eval.Profit,
	}).Info("execution confirmed")
	return &report, nil
}

// assemble builds the instruction set for one execution: provider borrow,
// the cycle's swap legs in order, provider repay.
func (o *Orchestrator) assemble(ctx context.Context, opp *scanner.Opportunity, provider flashloan.Provider, eval flashloan.Evaluation) ([]solana.Instruction, error) {
	borrow, err := provider.EncodeBorrow(o.cfg.Payer, eval.LoanAmount)
	if err != nil {
		return nil, E(KindInput, err)
	}

	instructions := []solana.Instruction{borrow}
	for i, leg := range opp.Cycle.Legs {
		legIxs, err := o.source.BuildSwapInstructions(ctx, leg, o.cfg.Payer)
		if err != nil {
			return nil, Ef(KindQuoteUnavailable, "leg %d instructions: %w", i+1, err)
		}
		instructions = append(instructions, legIxs...)
	}

	repay, err := provider.EncodeRepay(o.cfg.Payer, eval.RepayAmount)
	if err != nil {
		return nil, E(KindInput, err)
	}
	return append(instructions, repay), nil
}

// fail stamps the record with a terminal failure and returns the wrapped
// error for logging by the caller.
func (o *Orchestrator) fail(rec *models.ExecutionRecord, kind Kind, err error) error {
	rec.State = models.StateFailed
	rec.ErrorKind = string(kind)
	rec.Error = err.Error()
	return E(kind, err)
}

// finish closes out the record, ships it to the audit sink and recorder, and
// requests an advisory note. None of these can fail the execution.
func (o *Orchestrator) finish(ctx context.Context, rec *models.ExecutionRecord, report *safety.Report) {
	rec.FinishedAt = time.Now().UTC()
	rec.DurationMs = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()

	o.sink.RecordExecution(ctx, rec)
	if o.recorder != nil {
		if err := o.recorder.RecordExecution(ctx, rec); err != nil {
			o.log.WithError(err).Warn("recent-executions cache write failed")
		}
	}
	if o.advisor != nil {
		note, err := o.advisor.Annotate(ctx, rec, report)
		if err != nil {
			o.log.WithError(err).Debug("advisor annotation unavailable")
		} else if note != "" {
			o.log.WithFields(logrus.Fields{
				"execution_id": rec.ID,
				"note":         note,
			}).Info("advisor note")
		}
	}
}

// InFlight reports how many executions hold the guard right now.
func (o *Orchestrator) InFlight() int { return o.guard.InFlight() }
