package workstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgallion1/docsync/internal/workitem"
)

// Client talks to the work item service HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int // 0 for transport failures
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// BatchRequest is the body for POST /workitems/batch.
type BatchRequest struct {
	IDs    []int    `json:"ids"`
	Fields []string `json:"fields,omitempty"`
}

type batchResponse struct {
	Items []workitem.WorkItem `json:"items"`
}

// RunQuery executes a stored query and returns its raw result. An empty
// Mode is left for the caller to resolve.
func (c *Client) RunQuery(ctx context.Context, queryID string) (workitem.Result, error) {
	var res workitem.Result
	u := c.baseURL + "/queries/" + url.PathEscape(queryID) + "/run"
	if err := c.post(ctx, u, struct{}{}, &res); err != nil {
		return workitem.Result{}, fmt.Errorf("run query %s: %w", queryID, err)
	}
	return res, nil
}

// FetchItems loads work items in one batch. A nil field list asks for every
// field.
func (c *Client) FetchItems(ctx context.Context, ids []int, fields []string) (map[int]workitem.WorkItem, error) {
	out := make(map[int]workitem.WorkItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var resp batchResponse
	if err := c.post(ctx, c.baseURL+"/workitems/batch", BatchRequest{IDs: ids, Fields: fields}, &resp); err != nil {
		return nil, fmt.Errorf("fetch work items: %w", err)
	}
	for _, it := range resp.Items {
		out[it.ID] = it
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, u string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
