// Package remote talks to the remote document store that mirrors
// coaching-desk records. The store is addressed as a plain
// collection/document keyspace over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

var errMissingBaseURL = errors.New("remote base url is required")

// ClientConfig carries the remote document store endpoint settings.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client writes documents into the remote store with
// PUT {base}/collections/{collection}/{id}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("remote: invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Persist writes one document. A non-2xx response is an error so the outbox
// can schedule a retry.
func (c *Client) Persist(ctx context.Context, collection, recordID string, payloadJSON string) error {
	target := fmt.Sprintf("%s/collections/%s/%s",
		c.baseURL, url.PathEscape(collection), url.PathEscape(recordID))

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, target, strings.NewReader(payloadJSON))
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("remote: persist %s/%s: %w", collection, recordID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote: persist %s/%s: unexpected status %d", collection, recordID, response.StatusCode)
	}

	c.logger.Debug("remote document persisted",
		zap.String("collection", collection),
		zap.String("record_id", recordID))
	return nil
}
