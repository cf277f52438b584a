package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
)

// Client talks to the Jupiter swap aggregator. It implements
// scanner.QuoteSource.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.jup.ag/swap/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// Quote fetches a single-hop quote and maps it to the scanner's domain type.
// A missing or empty route is returned as an error so cycle enumeration can
// discard the candidate.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, maxSlippageBps uint16) (*scanner.Quote, error) {
	if strings.TrimSpace(inputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(outputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.FormatUint(uint64(maxSlippageBps), 10))
	q.Set("swapMode", "ExactIn")
	q.Set("restrictIntermediateTokens", "true")

	body, err := c.get(ctx, c.BaseURL+"/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp QuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	if len(resp.RoutePlan) == 0 {
		return nil, fmt.Errorf("no route for %s -> %s", inputMint, outputMint)
	}

	return toQuote(&resp, body)
}

func toQuote(resp *QuoteResponse, raw []byte) (*scanner.Quote, error) {
	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid inAmount %q: %w", resp.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount %q: %w", resp.OutAmount, err)
	}

	impact := 0.0
	if s := strings.TrimSpace(resp.PriceImpactPct); s != "" {
		impact, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
	}

	legs := make([]scanner.RouteLeg, 0, len(resp.RoutePlan))
	for i, step := range resp.RoutePlan {
		si := step.SwapInfo
		legIn, err := strconv.ParseUint(si.InAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid leg %d inAmount %q: %w", i+1, si.InAmount, err)
		}
		legOut, err := strconv.ParseUint(si.OutAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid leg %d outAmount %q: %w", i+1, si.OutAmount, err)
		}
		legs = append(legs, scanner.RouteLeg{
			AMMKey:     si.AmmKey,
			Label:      si.Label,
			InputMint:  si.InputMint,
			OutputMint: si.OutputMint,
			InAmount:   legIn,
			OutAmount:  legOut,
		})
	}

	return &scanner.Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		RouteLegs:      legs,
		Raw:            json.RawMessage(raw),
	}, nil
}

// BuildSwapInstructions renders a previously fetched quote into executable
// instructions via /swap-instructions. Jupiter's own compute budget
// instructions are dropped; the transaction builder attaches its own.
func (c *Client) BuildSwapInstructions(ctx context.Context, quote *scanner.Quote, signer solana.PublicKey) ([]solana.Instruction, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, fmt.Errorf("quote has no venue payload")
	}

	reqBody, err := json.Marshal(map[string]any{
		"userPublicKey": signer.String(),
		"quoteResponse": quote.Raw,
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap-instructions request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/swap-instructions", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var resp SwapInstructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode swap-instructions response: %w", err)
	}
	if resp.SwapInstruction == nil {
		return nil, fmt.Errorf("swap-instructions response missing swap instruction")
	}

	var out []solana.Instruction
	for _, p := range resp.SetupInstructions {
		ix, err := decodeInstruction(p)
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	swap, err := decodeInstruction(*resp.SwapInstruction)
	if err != nil {
		return nil, err
	}
	out = append(out, swap)
	if resp.CleanupInstruction != nil {
		cleanup, err := decodeInstruction(*resp.CleanupInstruction)
		if err != nil {
			return nil, err
		}
		out = append(out, cleanup)
	}
	return out, nil
}

func decodeInstruction(p InstructionPayload) (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(p.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", p.ProgramID, err)
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid instruction data: %w", err)
	}

	accounts := make([]*solana.AccountMeta, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		key, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account pubkey %q: %w", a.Pubkey, err)
		}
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  key,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}

	return solana.NewInstruction(programID, accounts, data), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
