package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/advisor"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/cache"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/constants"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/engine"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/flags"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/jupiter"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine      *engine.Orchestrator  // Opportunity pipeline (optional)
	Pool        *rpc.Pool             // RPC endpoint registry
	Cache       *cache.Store          // Redis-backed execution history
	Flags       *flags.Store          // Redis-backed runtime toggles
	Analyst     *advisor.Analyst      // NL->SQL analyst over execution history (optional)
	AnalystBase advisor.AnalystConfig // Base configuration for per-request analysts
	Jupiter     *jupiter.Client       // Jupiter Quote API client (optional)
	DevMode     bool                  // Enable detailed error responses in development
	Logger      *logrus.Logger        // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports liveness, in-flight executions, and the RPC endpoint registry.
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}
	if h.Engine != nil {
		resp.InFlight = h.Engine.InFlight()
	}
	if h.Pool != nil {
		resp.Endpoints = h.Pool.Snapshot()
	}
	return c.JSON(http.StatusOK, resp)
}

// Scan runs one scan pass and returns the opportunities found, best first.
func (h *Handlers) Scan(c echo.Context) error {
	if h.Engine == nil {
		return h.err(c, http.StatusBadRequest, "engine is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	start := time.Now()
	opps, err := h.Engine.ScanOnce(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "scan failed", map[string]any{"err": err.Error()})
	}

	// Best effort; a Redis hiccup must not fail the scan.
	if h.Cache != nil && len(opps) > 0 {
		if err := h.Cache.RecordOpportunities(ctx, opps); err != nil {
			h.Logger.WithError(err).Warn("failed to cache opportunities")
		}
	}

	views := make([]OpportunityView, 0, len(opps))
	for _, opp := range opps {
		views = append(views, opportunityView(opp))
	}
	return c.JSON(http.StatusOK, ScanResponse{Opportunities: views, TookMs: time.Since(start).Milliseconds()})
}

// RecentOpportunities returns the latest cached scan results.
func (h *Handlers) RecentOpportunities(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	opps, err := h.Cache.RecentOpportunities(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get opportunities", nil)
	}
	views := make([]OpportunityView, 0, len(opps))
	for _, opp := range opps {
		views = append(views, opportunityView(opp))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": views})
}

// Execute scans and attempts the best opportunity end to end.
func (h *Handlers) Execute(c echo.Context) error {
	if h.Engine == nil {
		return h.err(c, http.StatusBadRequest, "engine is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	res, err := h.Engine.ExecuteBest(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "execute failed", map[string]any{"err": err.Error()})
	}

	resp := ExecuteResponse{Skipped: res.Skipped, SkipReason: res.SkipReason}
	if res.Record != nil {
		resp.Record = res.Record
	}
	if res.Report != nil {
		resp.RiskLevel = string(res.Report.RiskLevel)
	}
	return c.JSON(http.StatusOK, resp)
}

// RecentExecutions returns the most recent execution records with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-100)
func (h *Handlers) RecentExecutions(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.RecentExecutions(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get executions", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsUpsert creates or updates a runtime toggle with the given key and value
// Validates key format and returns the created/updated toggle
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing runtime toggle with the given key
// Validates key format and returns the updated toggle
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a runtime toggle by its key
// Returns 404 if the toggle doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all runtime toggles in the system
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a runtime toggle by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// Ask processes natural language questions about execution history
// Supports optional model override for one-off requests
// Returns SQL query and answer with execution time
func (h *Handlers) Ask(c echo.Context) error {
	if h.Analyst == nil {
		return h.err(c, http.StatusBadRequest, "analyst is not configured", nil)
	}

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	// Use default analyst or create a temporary one with a custom model
	analyst := h.Analyst
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AnalystBase
		cfg.Model = m
		a, err := advisor.NewAnalyst(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create analyst", nil)
		}
		defer func() {
			_ = a.Close()
		}()
		analyst = a
	}

	res, err := analyst.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}

func opportunityView(opp *scanner.Opportunity) OpportunityView {
	path := make([]string, len(opp.Cycle.Path))
	for i, mint := range opp.Cycle.Path {
		path[i] = constants.Symbol(mint)
	}
	return OpportunityView{
		Path:            path,
		Fingerprint:     opp.Fingerprint(),
		EstimatedProfit: opp.EstimatedProfit,
		RequiredCapital: opp.RequiredCapital,
		Confidence:      opp.Confidence,
		PriceImpactPct:  opp.PriceImpactPct,
		DiscoveredAt:    opp.DiscoveredAt,
	}
}
