package rpcclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Transport performs one HTTP exchange at a time; the retry/re-bootstrap
// state machine lives one layer up in Client, which is the part that
// needs to understand 401/403 vs. other failures.
type Transport struct {
	httpClient *http.Client
}

// NewTransport builds a Transport with the given overall per-call timeout.
func NewTransport(timeout time.Duration) *Transport {
	return &Transport{httpClient: &http.Client{Timeout: timeout}}
}

// Do executes a single request attempt and returns the raw response.
func (t *Transport) Do(req *Request) (*Response, error) {
	if req.Method == "" || req.URL == "" {
		return nil, fmt.Errorf("rpcclient: method and URL are required")
	}

	start := time.Now()
	var body io.Reader
	if req.RawBody != nil {
		body = bytes.NewReader(req.RawBody)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.httpClient
	if req.Timeout > 0 {
		c := *t.httpClient
		c.Timeout = req.Timeout
		client = &c
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: read response body: %w", err)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k, values := range httpResp.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Body:       respBody,
		Duration:   time.Since(start),
	}, nil
}

// LinearBackoff implements the spec's linear retry delay: base * attempt.
func LinearBackoff(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(attempt)
}
