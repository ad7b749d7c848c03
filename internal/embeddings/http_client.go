package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/formbricks/recommender/pkg/embeddings"
)

var (
	// ErrCircuitOpen is returned while the sidecar circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("embeddings: embedding service circuit open")
	// ErrRejected is returned when the sidecar answers with a 4xx status.
	ErrRejected = errors.New("embeddings: request rejected by embedding service")
	// ErrDimensionMismatch is returned when the sidecar returns a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embeddings: embedding dimension mismatch")
	// ErrZeroVector is returned when the sidecar returns an all-zero vector.
	ErrZeroVector = errors.New("embeddings: zero embedding")
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultHTTPRetryMax = 3
	defaultBreakerName  = "embedding-service"
	breakerFailures     = 5
	breakerOpenTimeout  = 30 * time.Second
	maxResponseBytes    = 4 << 20
)

// HTTPClientOptions configures the embedding sidecar client.
type HTTPClientOptions struct {
	// BaseURL of the sidecar; requests go to BaseURL + "/embed".
	BaseURL    string
	Dimensions int
	// RetryMax is the maximum number of retries (default: 3)
	RetryMax int
	// Timeout is the per-attempt HTTP timeout (default: 10 seconds)
	Timeout time.Duration
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts (retryablehttp defaults when zero).
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// BreakerTimeout is how long the breaker stays open before probing again (default: 30 seconds)
	BreakerTimeout time.Duration
	Logger         *slog.Logger
}

// HTTPClient calls a local embedding service over HTTP: POST /embed {"text"} -> {"vector"}.
// Calls are retried on transport errors and 5xx, and guarded by a circuit breaker.
type HTTPClient struct {
	endpoint   string
	dimensions int
	httpClient *retryablehttp.Client
	breaker    *gobreaker.CircuitBreaker[[]float32]
	logger     *slog.Logger
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// NewHTTPClient creates a sidecar client.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = defaultHTTPTimeout
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = defaultHTTPRetryMax
	}

	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = breakerOpenTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // Disable logging by default

	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}

	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}

	breaker := gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        defaultBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		// Bad input is the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding service circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPClient{
		endpoint:   strings.TrimSuffix(opts.BaseURL, "/") + "/embed",
		dimensions: opts.Dimensions,
		httpClient: retryClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// CreateEmbedding returns the unit-length embedding for input.
func (c *HTTPClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	vec, err := c.breaker.Execute(func() ([]float32, error) {
		return c.post(ctx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}

		return nil, err
	}

	return vec, nil
}

func (c *HTTPClient) post(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request: unexpected status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if c.dimensions > 0 && len(out.Vector) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(out.Vector), c.dimensions)
	}

	if !embeddings.NormalizeL2(out.Vector) {
		return nil, ErrZeroVector
	}

	return out.Vector, nil
}

var _ Client = (*HTTPClient)(nil)
