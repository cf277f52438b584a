package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/safety"
)

// Config for the LLM advisor.
type Config struct {
	// OpenRouter / LLM settings.
	APIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	Logger *logrus.Logger
}

// Advisor produces short operator-facing notes about finished executions.
// Strictly advisory: nothing here ever gates an execution.
type Advisor struct {
	llm llms.Model
	log *logrus.Logger
}

func New(cfg Config) (*Advisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("advisor: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4.1-mini"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL("https://openrouter.ai/api/v1"),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("advisor: create LLM: %w", err)
	}

	cfg.Logger.WithField("model", cfg.Model).Info("initialized advisor")
	return &Advisor{llm: llm, log: cfg.Logger}, nil
}

// Annotate summarizes one execution outcome in one or two sentences for the
// operator log.
func (a *Advisor) Annotate(ctx context.Context, rec *models.ExecutionRecord, report *safety.Report) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("advisor: nil record")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "state=%s path=%s provider=%s loan=%d expected_profit=%d duration_ms=%d",
		rec.State, strings.Join(rec.Path, ">"), rec.LoanProvider, rec.LoanAmount, rec.ExpectedProfit, rec.DurationMs)
	if rec.Error != "" {
		fmt.Fprintf(&sb, " error_kind=%s error=%q", rec.ErrorKind, rec.Error)
	}
	if report != nil {
		fmt.Fprintf(&sb, " risk=%s", report.RiskLevel)
		for _, c := range report.Checks {
			if !c.Passed {
				fmt.Fprintf(&sb, " failed_check=%s(%s)", c.Name, c.Severity)
			}
		}
	}

	prompt := fmt.Sprintf(`
You are reviewing one flash-loan arbitrage execution on Solana.

Execution summary:
%s

Write one or two short sentences for the operator log: what happened and, if
it failed or timed out, the most likely cause worth checking. No preamble, no
bullet points.
`, sb.String())

	resp, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, llms.WithMaxTokens(128))
	if err != nil {
		return "", fmt.Errorf("advisor: annotation failed: %w", err)
	}
	return strings.TrimSpace(resp), nil
}
