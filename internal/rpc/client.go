package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/retry"
)

// Client is a JSON-RPC client layered over the endpoint pool: every call runs
// under the retry policy and fails over to the next healthy endpoint on
// transient errors.
type Client struct {
	pool       *Pool
	httpClient *http.Client
	retryCfg   retry.Config
	log        *logrus.Logger
}

// ClientConfig holds configuration for the RPC client.
type ClientConfig struct {
	Pool    *Pool
	Timeout time.Duration
	Retry   *retry.Config
	Logger  *logrus.Logger
}

// NewClient creates a client over an endpoint pool.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("rpc: endpoint pool is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	retryCfg := retry.DefaultConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}
	retryCfg.Logger = cfg.Logger

	return &Client{
		pool: cfg.Pool,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryCfg: retryCfg,
		log:      cfg.Logger,
	}, nil
}

// Pool exposes the underlying endpoint registry (health snapshots, probes).
func (c *Client) Pool() *Pool { return c.pool }

// Call makes a JSON-RPC call against the active endpoint with retry and
// failover. The result is unmarshalled into result.
func (c *Client) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	out := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		ep := c.pool.Current()

		start := time.Now()
		resp, err := c.doRequest(ctx, ep.URL, data)
		if err != nil {
			c.pool.markFailure(ep)
			if retry.Retryable(c.retryCfg, err) {
				c.pool.Failover()
			}
			c.log.WithFields(logrus.Fields{
				"endpoint": ep.Name,
				"method":   method,
			}).WithError(err).Debug("rpc call failed")
			return err
		}
		c.pool.markSuccess(ep, time.Since(start))

		if err := json.Unmarshal(resp, result); err != nil {
			return fmt.Errorf("failed to unmarshal %s response: %w", method, err)
		}
		return nil
	})

	return out.Err
}

func (c *Client) doRequest(ctx context.Context, url string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// GetRecentFeeSamples fetches recent prioritization fee observations, in
// micro-lamports per compute unit.
func (c *Client) GetRecentFeeSamples(ctx context.Context) ([]uint64, error) {
	var resp struct {
		Result []FeeSample `json:"result"`
		Error  *RPCError   `json:"error"`
	}

	if err := c.Call(ctx, "getRecentPrioritizationFees", []any{[]string{}}, &resp); err != nil {
		return nil, fmt.Errorf("getRecentPrioritizationFees failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getRecentPrioritizationFees error: %s", resp.Error.Message)
	}

	fees := make([]uint64, 0, len(resp.Result))
	for _, s := range resp.Result {
		fees = append(fees, s.PrioritizationFee)
	}
	return fees, nil
}

// GetLatestBlockhash fetches the most recent block reference.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (BlockRef, error) {
	if commitment == "" {
		commitment = "processed"
	}

	var resp struct {
		Result struct {
			Value struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{map[string]any{"commitment": commitment}}
	if err := c.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return BlockRef{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}
	if resp.Error != nil {
		return BlockRef{}, fmt.Errorf("getLatestBlockhash error: %s", resp.Error.Message)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return BlockRef{}, fmt.Errorf("invalid blockhash format: %w", err)
	}

	return BlockRef{Hash: hash, ValidUntilHeight: resp.Result.Value.LastValidBlockHeight}, nil
}

// SimulateTransaction simulates a transaction without broadcasting it.
// Signature verification is disabled so unsigned transactions can be checked
// before any key material is touched.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encodedTx := base64.StdEncoding.EncodeToString(txBytes)

	var resp struct {
		Result struct {
			Value struct {
				Err           interface{} `json:"err"`
				Logs          []string    `json:"logs"`
				UnitsConsumed uint64      `json:"unitsConsumed,omitempty"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		encodedTx,
		map[string]any{
			"encoding":               "base64",
			"commitment":             "processed",
			"sigVerify":              false,
			"replaceRecentBlockhash": true,
		},
	}

	if err := c.Call(ctx, "simulateTransaction", params, &resp); err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("simulateTransaction error: %s", resp.Error.Message)
	}

	result := &SimulationResult{
		Logs:          resp.Result.Value.Logs,
		UnitsConsumed: resp.Result.Value.UnitsConsumed,
	}
	if resp.Result.Value.Err != nil {
		result.Err = fmt.Sprintf("%v", resp.Result.Value.Err)
		return result, nil
	}
	result.Success = true
	return result, nil
}

// SendTransaction broadcasts a signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (string, error) {
	if opts == nil {
		defaultOpts := DefaultSendOptions()
		opts = &defaultOpts
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encodedTx := base64.StdEncoding.EncodeToString(txBytes)

	options := map[string]any{
		"encoding":            "base64",
		"skipPreflight":       opts.SkipPreflight,
		"preflightCommitment": opts.PreflightCommitment,
	}
	if opts.MaxRetries != nil {
		options["maxRetries"] = *opts.MaxRetries
	}

	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}

	if err := c.Call(ctx, "sendTransaction", []any{encodedTx, options}, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction error: code=%d, message=%s", resp.Error.Code, resp.Error.Message)
	}

	return resp.Result, nil
}

// ConfirmTransaction polls signature status until the commitment level is met
// or the timeout elapses. It returns (false, nil) on timeout rather than
// blocking indefinitely.
func (c *Client) ConfirmTransaction(ctx context.Context, signature, commitment string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		confirmed, err := c.checkSignatureStatus(ctx, signature, commitment)
		if err != nil {
			return false, fmt.Errorf("failed to check signature: %w", err)
		}
		if confirmed {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return false, nil
}

func (c *Client) checkSignatureStatus(ctx context.Context, signature, commitment string) (bool, error) {
	var resp struct {
		Result struct {
			Value []*struct {
				Slot               uint64      `json:"slot"`
				Confirmations      *int        `json:"confirmations"`
				Err                interface{} `json:"err"`
				ConfirmationStatus string      `json:"confirmationStatus"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := c.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return false, err
	}
	if resp.Error != nil {
		return false, fmt.Errorf("getSignatureStatuses error: %s", resp.Error.Message)
	}

	if len(resp.Result.Value) == 0 || resp.Result.Value[0] == nil {
		return false, nil // not yet processed
	}

	status := resp.Result.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction failed: %v", status.Err)
	}

	switch commitment {
	case "processed":
		return status.ConfirmationStatus != "", nil
	case "confirmed":
		return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
	case "finalized":
		return status.ConfirmationStatus == "finalized", nil
	default:
		return status.ConfirmationStatus != "", nil
	}
}
