package ayrshare

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient creates a client without an executor so tests use the direct
// client.Do path and don't sit in retry backoff.
func newTestClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  "test-key",
		client:  &http.Client{},
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", "key")
	if c.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base URL, got %s", c.baseURL)
	}
	if c.client == nil || c.client.Timeout != 15*time.Second {
		t.Fatalf("expected bounded 15s timeout, got %+v", c.client)
	}
	if c.httpExecutor == nil {
		t.Fatal("expected non-nil httpExecutor")
	}
}

func TestPublish_Success(t *testing.T) {
	var gotAuth, gotIdem string
	var gotBody PublishRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(PublishResponse{Status: "success", ID: "prov-123"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Publish(context.Background(), PublishRequest{
		Post:           "Launch day!",
		Platforms:      []string{"instagram"},
		MediaURLs:      []string{"https://cdn.example.com/img.png"},
		IdempotencyKey: "post-1",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if resp.ID != "prov-123" {
		t.Fatalf("expected provider id prov-123, got %s", resp.ID)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotIdem != "post-1" {
		t.Fatalf("expected idempotency key post-1, got %q", gotIdem)
	}
	if gotBody.Post != "Launch day!" || len(gotBody.Platforms) != 1 {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
}

func TestPublish_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid platform"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Publish(context.Background(), PublishRequest{Post: "x", Platforms: []string{"instagram"}})

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected *PublishError, got %v", err)
	}
	if pubErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", pubErr.StatusCode)
	}
	if pubErr.Unreachable() {
		t.Fatal("provider rejection must not be flagged as unreachable")
	}
}

func TestPublish_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(srv.URL)
	_, err := c.Publish(context.Background(), PublishRequest{Post: "x", Platforms: []string{"instagram"}})

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected *PublishError, got %v", err)
	}
	if !pubErr.Unreachable() {
		t.Fatalf("expected transport failure, got status %d", pubErr.StatusCode)
	}
}

func TestPublish_TimeoutIsPublishError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Publish(ctx, PublishRequest{Post: "x", Platforms: []string{"instagram"}})

	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected *PublishError on timeout, got %v", err)
	}
	if !pubErr.Unreachable() {
		t.Fatal("timeout must be flagged as unreachable")
	}
}
