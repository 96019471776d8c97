// Package crawl talks to the remote crawling collaborator. The shell never
// consumes crawled text directly; the call is a side-effecting signal that
// context was ingested, plus log lines for the status reporter.
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Crawler is the collaborator contract used by the pipeline.
type Crawler interface {
	Crawl(ctx context.Context, url string, maxDepth int) ([]string, error)
}

// ErrUnreachable marks a crawl that never produced a response; the service
// answering with a failure status is a different condition.
var ErrUnreachable = errors.New("crawl service unreachable")

const defaultTimeout = 90 * time.Second

// Client is an HTTP crawler client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type crawlRequest struct {
	URL      string `json:"url"`
	MaxDepth int    `json:"max_depth"`
}

type crawlResponse struct {
	Logs []string `json:"logs"`
}

// Crawl posts the URL with a depth bound and returns the collaborator's
// log lines in order.
func (c *Client) Crawl(ctx context.Context, url string, maxDepth int) ([]string, error) {
	payload, err := json.Marshal(crawlRequest{URL: url, MaxDepth: maxDepth})
	if err != nil {
		return nil, fmt.Errorf("marshal crawl request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crawl", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build crawl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crawl service returned %d", resp.StatusCode)
	}

	var body crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode crawl response: %w", err)
	}
	return body.Logs, nil
}
