package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

const (
	contentTypeJSON  = "application/json"
	methodSendBundle = "sendBundle"
)

// BundleClient submits atomic transaction bundles to the block-engine relay.
type BundleClient struct {
	httpClient *http.Client
	endpoint   string
	maxRetries int
	retryBase  time.Duration
	logger     *zap.Logger
}

// NewBundleClient creates a block-engine client.
func NewBundleClient(endpoint string, maxRetries int, retryBase time.Duration, logger *zap.Logger) *BundleClient {
	return &BundleClient{
		httpClient: &http.Client{
			Timeout: time.Second * 5,
		},
		endpoint:   endpoint,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		logger:     logger,
	}
}

type bundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type bundleResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendBundle submits the signed transactions as one atomic unit and returns
// the bundle id. Timeouts and connection errors are retried with exponential
// backoff up to the retry ceiling; an RPC-level error is terminal.
func (c *BundleClient) SendBundle(ctx context.Context, signedTxs [][]byte) (string, error) {
	encoded := make([]string, len(signedTxs))
	for i, tx := range signedTxs {
		encoded[i] = base58.Encode(tx)
	}

	payload, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  methodSendBundle,
		Params:  []interface{}{encoded},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBase * (1 << (attempt - 1))
			c.logger.Debug("Retrying bundle submission",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		id, err := c.submitOnce(ctx, payload)
		if err == nil {
			return id, nil
		}
		if !isRetryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("bundle submission exhausted %d retries: %w", c.maxRetries, lastErr)
}

func (c *BundleClient) submitOnce(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("bundle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bundle endpoint returned status %d", resp.StatusCode)
	}

	var out bundleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode bundle response: %w", err)
	}
	if out.Error != nil {
		return "", &BundleError{Code: out.Error.Code, Message: out.Error.Message}
	}
	if out.Result == "" {
		return "", fmt.Errorf("bundle response missing bundle id")
	}
	return out.Result, nil
}

// BundleError is an RPC-level rejection from the block engine. It is not
// retried.
type BundleError struct {
	Code    int
	Message string
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle rejected (code %d): %s", e.Code, e.Message)
}

// isRetryable reports whether the error is a timeout or connection failure.
func isRetryable(err error) bool {
	var bundleErr *BundleError
	if errors.As(err, &bundleErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
