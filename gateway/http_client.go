package gateway

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
)

// ClientConfig represents configuration for the gateway HTTP client
type ClientConfig struct {
	Timeout        time.Duration
	DefaultHeaders map[string]string
}

// Request represents a standardized outbound HTTP request
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        any
}

// Response represents a standardized HTTP response. Any HTTP status,
// including 4xx/5xx, yields a Response; the transport only errors when no
// response was obtained at all.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// HTTPClient performs the outbound gateway calls. TLS peer verification is
// always on; there is no insecure fallback.
type HTTPClient struct {
	client *http.Client
}

// NewHTTPClient creates a new gateway HTTP client
func NewHTTPClient(config *ClientConfig) *HTTPClient {
	if config == nil {
		config = &ClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// SendJSON sends a JSON request and returns the response. A returned error
// is always a transport-level failure, never a gateway-reported one.
func (c *HTTPClient) SendJSON(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	fullURL, err := buildURL(req.URL, req.QueryParams)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// DecodeJSON parses the response body as JSON into the target. A body that
// is empty or not JSON leaves the target untouched; downstream mapping is
// null-safe by construction.
func (c *HTTPClient) DecodeJSON(resp *Response, target any) {
	if len(resp.Body) == 0 {
		return
	}
	_ = json.Unmarshal(resp.Body, target)
}

// JoinURL joins a base URL and a path segment with exactly one slash
func JoinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

func buildURL(rawURL string, queryParams map[string]string) (string, error) {
	if len(queryParams) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for key, value := range queryParams {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
