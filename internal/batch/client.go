// Package batch sends import batches to the remote transaction store.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// BatchPath is the endpoint path appended to the base URL.
const BatchPath = "/api/transactions/batch"

// APIKeyHeader carries the client credential.
const APIKeyHeader = "X-API-Key"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

var (
	// ErrTransport means the batch never produced a usable HTTP response.
	ErrTransport = errors.New("batch transport failed")

	// ErrUnauthorized means the endpoint rejected the credentials. It wraps ErrTransport.
	ErrUnauthorized = fmt.Errorf("%w: unauthorized", ErrTransport)

	errBaseURL = errors.New("invalid batch endpoint url")
)

// Client implements core.Submitter over HTTP JSON.
type Client struct {
	HTTPClient *http.Client
	Endpoint   *url.URL
	APIKey     string
}

// NewClient creates a client for the store at baseURL. A nil httpClient gets one with timeout.
func NewClient(httpClient *http.Client, baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", errBaseURL, baseURL)
	}

	return &Client{
		HTTPClient: httpClient,
		Endpoint:   base.JoinPath(BatchPath),
		APIKey:     apiKey,
	}, nil
}

// Submit posts rows in order and returns the store's per-row outcome.
func (c *Client) Submit(ctx context.Context, rows []core.SubmitRow) (*core.BatchResponse, error) {
	body, err := json.Marshal(core.BatchRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrTransport, resp.StatusCode, snippet(data))
	}

	var out core.BatchResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMalformedResponse, err)
	}
	if out.Imported == nil && out.Errored == nil {
		return nil, fmt.Errorf("%w: missing imported and errored", core.ErrMalformedResponse)
	}

	return &out, nil
}

func snippet(b []byte) string {
	const n = 200
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
