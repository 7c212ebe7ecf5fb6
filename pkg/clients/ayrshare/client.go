package ayrshare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients"
)

// DefaultBaseURL is the hosted Ayrshare API endpoint
const DefaultBaseURL = "https://api.ayrshare.com"

// PublishError reports a failed publish attempt. StatusCode is zero when the
// provider was unreachable (network error or timeout) and non-zero when the
// provider answered with a rejection; the dispatcher logs the two cases
// distinguishably even though neither is auto-retried.
type PublishError struct {
	StatusCode int
	Message    string
}

func (e *PublishError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("publish failed: provider unreachable: %s", e.Message)
	}
	return fmt.Sprintf("publish failed: provider returned status %d: %s", e.StatusCode, e.Message)
}

// Unreachable reports whether the failure was transport-level rather than a
// provider rejection
func (e *PublishError) Unreachable() bool {
	return e.StatusCode == 0
}

// PublishRequest is the provider payload for one publish call
type PublishRequest struct {
	Post      string   `json:"post"`
	Platforms []string `json:"platforms"`
	MediaURLs []string `json:"mediaUrls,omitempty"`

	// IdempotencyKey is sent as a header, not in the body. The post id is
	// used so a duplicate dispatch after a worker crash can be deduped
	// provider-side.
	IdempotencyKey string `json:"-"`
}

// PublishResponse is the provider acknowledgement
type PublishResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	RefID  string `json:"refId"`
}

// Client talks to the external social publishing provider
type Client struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
}

// Option configures the client
type Option func(*Client)

// NewClient creates a publication client with retry and a bounded timeout
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	breakerConfig := clients.DefaultCircuitBreakerConfig()
	breakerConfig.Name = "ayrshare"
	defaultConfig.CircuitBreaker = clients.NewCircuitBreaker(breakerConfig)
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: clients.DefaultTransport(),
		},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithHTTPExecutorConfig overrides retry behaviour
func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

// Publish sends one post to the provider. A non-2xx answer or transport
// failure comes back as a *PublishError.
func (c *Client) Publish(ctx context.Context, pub PublishRequest) (*PublishResponse, error) {
	url := fmt.Sprintf("%s/api/post", c.baseURL)

	jsonBody, err := json.Marshal(pub)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		if pub.IdempotencyKey != "" {
			req.Header.Set("Idempotency-Key", pub.IdempotencyKey)
		}
		return req, nil
	})
	if err != nil {
		return nil, &PublishError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return nil, &PublishError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var result PublishResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &PublishError{StatusCode: resp.StatusCode, Message: "malformed provider response: " + err.Error()}
	}
	return &result, nil
}
