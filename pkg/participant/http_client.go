package participant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var _ Participant = &HTTPClient{}

// HTTPClient calls a remote participant's HTTP endpoints.
type HTTPClient struct {
	id      int
	address string
	baseURL string
	client  *http.Client
}

// NewHTTPClient accepts "host:port" or a full base URL. Per-call deadlines
// come from the caller's context.
func NewHTTPClient(id int, address string) *HTTPClient {
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &HTTPClient{
		id:      id,
		address: address,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{},
	}
}

func (c *HTTPClient) GetID() int { return c.id }

func (c *HTTPClient) GetAddress() string { return c.address }

func (c *HTTPClient) Extract(ctx context.Context, text string) (*ExtractResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, PathExtract, &ExtractRequest{Text: text})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.remoteError(status, body)
	}
	var res ExtractResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &RemoteError{ID: c.id, Code: ErrCodeInternal, Message: "malformed response: " + err.Error()}
	}
	return &res, nil
}

// Health treats a 503 carrying a health body as a valid, unhealthy answer.
func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, PathHealth, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return nil, c.remoteError(status, body)
	}
	var res HealthResponse
	if err := json.Unmarshal(body, &res); err != nil || res.Status == "" {
		return nil, c.remoteError(status, body)
	}
	return &res, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{ID: c.id, Address: c.address, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestSize))
	if err != nil {
		return 0, nil, &TransportError{ID: c.id, Address: c.address, Err: err}
	}
	return resp.StatusCode, respBody, nil
}

func (c *HTTPClient) remoteError(status int, body []byte) error {
	var errRes ErrorResponse
	if err := json.Unmarshal(body, &errRes); err == nil && errRes.Error != "" {
		return &RemoteError{ID: c.id, Code: errRes.Error, Message: errRes.Message}
	}
	return &RemoteError{ID: c.id, Code: ErrCodeInternal, Message: fmt.Sprintf("HTTP %d", status)}
}
