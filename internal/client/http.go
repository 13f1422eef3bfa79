package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/statusd/internal/model"
)

// HTTPClient implements StatusClient over the statusd HTTP/JSON API.
type HTTPClient struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	streamClient *http.Client
}

var _ StatusClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://127.0.0.1:7878"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Status(ctx context.Context) ([]model.Message, error) {
	var rows []model.Message
	if err := c.getJSON(ctx, "/v1/status", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) Usage(ctx context.Context) (*model.Usage, error) {
	var u model.Usage
	if err := c.getJSON(ctx, "/v1/usage", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Time(ctx context.Context) (*TimeResponse, error) {
	var tr TimeResponse
	if err := c.getJSON(ctx, "/v1/time", &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/v1/health", &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// getJSON performs a GET request and decodes the JSON response into result.
func (c *HTTPClient) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
