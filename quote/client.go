// Package quote is the client for the external liquidity-routing service.
// Every call goes through the shared rate limiter before touching the wire.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solarb/ratelimit"
)

const (
	contentTypeJSON = "application/json"

	maxRetries429  = 4
	retryBaseDelay = 500 * time.Millisecond
)

// Request holds the parameters of a quote call.
type Request struct {
	InputMint      solana.PublicKey
	OutputMint     solana.PublicKey
	Amount         uint64 // minor units
	SlippageBps    int
	OnlyDirect     bool
	MaxAccounts    int
	PlatformFeeBps int
}

// Client talks to the quoting service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// NewClient creates a new quoting service client.
func NewClient(baseURL string, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		baseURL: baseURL,
		limiter: limiter,
		logger:  logger,
	}
}

// GetQuote fetches a priced route for the given pair and amount. HTTP 429 is
// retried with exponential backoff; any other failure is hard for this call.
func (c *Client) GetQuote(ctx context.Context, req Request) (*Response, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint.String())
	params.Set("outputMint", req.OutputMint.String())
	params.Set("amount", strconv.FormatUint(req.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.OnlyDirect {
		params.Set("onlyDirectRoutes", "true")
	}
	if req.MaxAccounts > 0 {
		params.Set("maxAccounts", strconv.Itoa(req.MaxAccounts))
	}
	params.Set("platformFeeBps", strconv.Itoa(req.PlatformFeeBps))

	endpoint := c.baseURL + "/quote?" + params.Encode()

	body, err := c.getWithBackoff(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env quoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode quote response: %w", err)
	}
	outAmount, err := strconv.ParseUint(env.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount %q: %w", env.OutAmount, err)
	}

	return &Response{
		InputMint:  req.InputMint,
		OutputMint: req.OutputMint,
		InAmount:   req.Amount,
		OutAmount:  outAmount,
		Venues:     env.venues(),
		Raw:        json.RawMessage(body),
	}, nil
}

// GetSwapInstructions exchanges a quote for executable swap instructions.
// The quote response is passed back to the service verbatim.
func (c *Client) GetSwapInstructions(ctx context.Context, user solana.PublicKey, computeUnitPrice uint64, q *Response) (*SwapInstructions, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"userPublicKey":                 user.String(),
		"wrapAndUnwrapSol":              true,
		"useSharedAccounts":             true,
		"computeUnitPriceMicroLamports": computeUnitPrice,
		"quoteResponse":                 q.Raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap-instructions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("swap instruction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap instruction request returned status %d", resp.StatusCode)
	}

	var out SwapInstructions
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode swap instructions: %w", err)
	}
	if out.Swap.ProgramID == "" {
		return nil, fmt.Errorf("swap instruction missing from response")
	}
	return &out, nil
}

// getWithBackoff issues a rate-limited GET, retrying 429 responses with
// exponential backoff up to the retry ceiling.
func (c *Client) getWithBackoff(ctx context.Context, endpoint string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("quote request failed: %w", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("failed to read quote response: %w", readErr)
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries429:
			delay := retryBaseDelay * (1 << attempt)
			c.logger.Debug("Quote service throttled, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

		default:
			return nil, fmt.Errorf("quote request returned status %d", resp.StatusCode)
		}
	}
}
