package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/evalgo/gphotoctl/internal/model"
)

// SessionBootstrapError is returned when the landing page does not carry
// the tagged fields a session requires.
type SessionBootstrapError struct{ Reason string }

func (e *SessionBootstrapError) Error() string {
	return fmt.Sprintf("rpcclient: session bootstrap failed: %s", e.Reason)
}

// RpcTransportError wraps a non-401/403 HTTP failure surfaced after retry
// exhaustion.
type RpcTransportError struct{ Err error }

func (e *RpcTransportError) Error() string { return fmt.Sprintf("rpcclient: transport error: %v", e.Err) }
func (e *RpcTransportError) Unwrap() error { return e.Err }

const defaultPathPrefix = "/_/PhotosUi/"

var wizTagPatterns = map[string]*regexp.Regexp{
	"account": regexp.MustCompile(`"oPEP7c":"([^"]+)"`),
	"f_sid":   regexp.MustCompile(`"FdrFJe":"([^"]+)"`),
	"bl":      regexp.MustCompile(`"cfb2h":"([^"]+)"`),
	"path":    regexp.MustCompile(`"eptZe":"([^"]+)"`),
	"at":      regexp.MustCompile(`"SNlM0e":"([^"]+)"`),
	"rapt":    regexp.MustCompile(`"Dbw5Ud":"([^"]+)"`),
}

func extractWizValue(html, key string) string {
	re, ok := wizTagPatterns[key]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	value := m[1]
	value = strings.ReplaceAll(value, `\u003d`, "=")
	value = strings.ReplaceAll(value, `\u0026`, "&")
	value = strings.ReplaceAll(value, `\/`, "/")
	return value
}

// CookieHeader builds the "name=value; name=value" Cookie header from a jar.
func CookieHeader(jar []model.Cookie) string {
	parts := make([]string, 0, len(jar))
	for _, c := range jar {
		if c.Name == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(parts, "; ")
}

// Client drives bootstrap and execute against the provider's batchexecute
// endpoint, managing retries and 401/403-triggered re-bootstrap but never
// persisting session state itself — the caller persists whatever it gets back.
type Client struct {
	transport      *Transport
	baseURL        string
	maxRetries     int
	retryBaseDelay time.Duration
}

// Config configures retry/backoff and per-call timeout.
type Config struct {
	BaseURL        string // defaults to https://photos.google.com
	MaxRetries     int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://photos.google.com"
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		transport:      NewTransport(timeout),
		baseURL:        base,
		maxRetries:     retries,
		retryBaseDelay: delay,
	}
}

// Bootstrap fetches the landing page using the cookie jar and extracts the
// six tagged fields that make up a SessionState.
func (c *Client) Bootstrap(ctx context.Context, jar []model.Cookie, sourcePath string) (*model.SessionState, error) {
	if len(jar) == 0 {
		return nil, &SessionBootstrapError{Reason: "cookie jar is empty"}
	}
	if sourcePath == "" {
		sourcePath = "/"
	}

	resp, err := c.transport.Do(&Request{
		Method:  "GET",
		URL:     c.baseURL + sourcePath,
		Headers: map[string]string{"Cookie": CookieHeader(jar)},
	})
	if err != nil {
		return nil, &SessionBootstrapError{Reason: err.Error()}
	}
	if !resp.IsSuccess() {
		return nil, &SessionBootstrapError{Reason: fmt.Sprintf("HTTP %d fetching landing page", resp.StatusCode)}
	}

	html := string(resp.Body)
	session := &model.SessionState{
		AccountTag:  extractWizValue(html, "account"),
		SessionID:   extractWizValue(html, "f_sid"),
		BuildLabel:  extractWizValue(html, "bl"),
		PathPrefix:  extractWizValue(html, "path"),
		AntiForgery: extractWizValue(html, "at"),
		ReAuthToken: extractWizValue(html, "rapt"),
	}
	if session.PathPrefix == "" {
		session.PathPrefix = defaultPathPrefix
	}
	if session.SessionID == "" || session.BuildLabel == "" || session.AntiForgery == "" {
		return nil, &SessionBootstrapError{Reason: "unable to extract required session fields (f.sid/bl/at)"}
	}
	return session, nil
}

// Execute runs a batched RPC call, retrying on failure and re-bootstrapping
// once on 401/403 before the next attempt, per the state machine in
// SPEC_FULL.md §4.1: INIT -> TRY_SEND -> (200 -> PARSE -> DONE) |
// (401/403 -> BOOTSTRAP -> TRY_SEND) | (other -> BACKOFF -> TRY_SEND).
func (c *Client) Execute(ctx context.Context, jar []model.Cookie, session *model.SessionState, rpcid string, requestData interface{}, sourcePath string) (Node, *model.SessionState, error) {
	if rpcid == "" {
		return nil, nil, fmt.Errorf("rpcclient: rpcid is required")
	}
	if sourcePath == "" {
		sourcePath = "/"
	}
	current := session

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		data, err := c.executeOnce(jar, current, rpcid, requestData, sourcePath)
		if err == nil {
			return data, current, nil
		}
		lastErr = err

		if unauthorized(err) {
			bootstrapped, bErr := c.Bootstrap(ctx, jar, sourcePath)
			if bErr == nil {
				current = bootstrapped
			} else {
				lastErr = bErr
			}
		}
		if attempt >= c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, current, ctx.Err()
		case <-time.After(LinearBackoff(c.retryBaseDelay, attempt)):
		}
	}
	return nil, current, &RpcTransportError{Err: lastErr}
}

type unauthorizedError struct{ status int }

func (e *unauthorizedError) Error() string { return fmt.Sprintf("HTTP %d", e.status) }

func unauthorized(err error) bool {
	var ue *unauthorizedError
	if e, ok := err.(*unauthorizedError); ok {
		ue = e
	}
	return ue != nil && (ue.status == 401 || ue.status == 403)
}

func (c *Client) executeOnce(jar []model.Cookie, session *model.SessionState, rpcid string, requestData interface{}, sourcePath string) (Node, error) {
	if session == nil || session.SessionID == "" || session.BuildLabel == "" || session.PathPrefix == "" || session.AntiForgery == "" {
		return nil, fmt.Errorf("rpcclient: session state missing f.sid/bl/path/at")
	}

	requestJSON, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: marshal request data: %w", err)
	}
	wrapped := []interface{}{[]interface{}{[]interface{}{rpcid, string(requestJSON), nil, "generic"}}}
	wrappedJSON, err := json.Marshal(wrapped)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: marshal wrapper: %w", err)
	}

	body := fmt.Sprintf("f.req=%s&at=%s&", url.QueryEscape(string(wrappedJSON)), url.QueryEscape(session.AntiForgery))

	q := url.Values{}
	q.Set("rpcids", rpcid)
	q.Set("source-path", sourcePath)
	q.Set("f.sid", session.SessionID)
	q.Set("bl", session.BuildLabel)
	q.Set("pageId", "none")
	q.Set("rt", "c")
	if session.ReAuthToken != "" {
		q.Set("rapt", session.ReAuthToken)
	}

	reqURL := fmt.Sprintf("%s%sdata/batchexecute?%s", c.baseURL, session.PathPrefix, q.Encode())

	resp, err := c.transport.Do(&Request{
		Method: "POST",
		URL:    reqURL,
		Headers: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded;charset=UTF-8",
			"Cookie":       CookieHeader(jar),
		},
		RawBody: []byte(body),
	})
	if err != nil {
		return nil, err
	}
	if resp.IsUnauthorized() {
		return nil, &unauthorizedError{status: resp.StatusCode}
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("rpcclient: HTTP %d", resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("rpcclient: empty response body")
	}
	return ParseWrbPayload(string(resp.Body))
}
