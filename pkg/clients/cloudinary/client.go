package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/AbdulWasay1738/postsync-connect-flow/pkg/clients"
)

// DefaultBaseURL is the Cloudinary upload API endpoint
const DefaultBaseURL = "https://api.cloudinary.com"

// UploadError reports a failed media upload. It is surfaced to the
// submission path before any post is persisted.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upload failed: %s", e.Message)
	}
	return fmt.Sprintf("upload failed: status %d: %s", e.StatusCode, e.Message)
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

// Client uploads media files and returns their public URLs. The rest of the
// system treats the returned URL as an opaque string.
type Client struct {
	baseURL      string
	cloudName    string
	uploadPreset string
	folder       string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
}

// Option configures the client
type Option func(*Client)

// NewClient creates an upload client using unsigned upload presets
func NewClient(cloudName, uploadPreset string, opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      DefaultBaseURL,
		cloudName:    cloudName,
		uploadPreset: uploadPreset,
		folder:       "postsync",
		client: &http.Client{
			Timeout:   30 * time.Second,
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

// WithBaseURL overrides the API endpoint (tests)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithFolder overrides the destination folder
func WithFolder(folder string) Option {
	return func(c *Client) {
		if folder != "" {
			c.folder = folder
		}
	}
}

// Upload sends one file and returns its public HTTPS URL
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	url := fmt.Sprintf("%s/v1_1/%s/image/upload", c.baseURL, c.cloudName)

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	if _, err := part.Write(data); err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	_ = writer.WriteField("upload_preset", c.uploadPreset)
	_ = writer.WriteField("folder", c.folder)
	if err := writer.Close(); err != nil {
		return "", &UploadError{Message: err.Error()}
	}

	body := form.Bytes()
	contentType := writer.FormDataContentType()

	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "malformed upload response: " + err.Error()}
	}
	if result.SecureURL == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "upload response missing secure_url"}
	}
	return result.SecureURL, nil
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
