// Package xtream talks to an Xtream-Codes compatible panel: player_api.php
// for catalog listings and detail lookups, xmltv.php for the programme guide.
// All responses are returned as raw bytes after shape validation so callers
// can cache exactly what the wire carried.
package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fynixtv/libsync/internal/httpclient"
	"github.com/fynixtv/libsync/internal/metrics"
)

const (
	maxAttempts    = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

// Client issues authenticated requests to one provider server. Requests are
// paced by a per-client rate limiter so bulk listing and enrichment runs do
// not hammer the panel.
type Client struct {
	BaseURL  string
	Username string
	Password string

	http    *http.Client
	limiter *rate.Limiter

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// New builds a client for the given server coordinates. port is appended to
// the URL unless it is 0/80/443 or the URL already names one.
func New(serverURL, username, password string, port int, requestInterval time.Duration) *Client {
	var lim *rate.Limiter
	if requestInterval > 0 {
		lim = rate.NewLimiter(rate.Every(requestInterval), 1)
	} else {
		lim = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		BaseURL:  NormalizeBaseURL(serverURL, port),
		Username: username,
		Password: password,
		http:     httpclient.Default(),
		limiter:  lim,
		sleep:    time.Sleep,
	}
}

// NormalizeBaseURL produces the canonical base: scheme defaulted to http,
// trailing slash stripped, explicit port appended only when meaningful.
func NormalizeBaseURL(raw string, port int) string {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	raw = strings.TrimSuffix(raw, "/")
	if port == 0 || port == 80 || port == 443 {
		return raw
	}
	// Already carries a port?
	rest := raw
	if i := strings.Index(raw, "://"); i >= 0 {
		rest = raw[i+3:]
	}
	if strings.Contains(rest, ":") {
		return raw
	}
	return raw + ":" + strconv.Itoa(port)
}

// PlayerAPIURL builds a player_api.php request URL. Extra key/value pairs are
// appended in order; pairs with an empty value are dropped.
func (c *Client) PlayerAPIURL(action string, extra ...[2]string) string {
	var b strings.Builder
	b.WriteString(c.BaseURL)
	b.WriteString("/player_api.php?username=")
	b.WriteString(url.QueryEscape(c.Username))
	b.WriteString("&password=")
	b.WriteString(url.QueryEscape(c.Password))
	if action != "" {
		b.WriteString("&action=")
		b.WriteString(url.QueryEscape(action))
	}
	for _, kv := range extra {
		if kv[1] == "" {
			continue
		}
		b.WriteString("&")
		b.WriteString(kv[0])
		b.WriteString("=")
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

// GuideURL builds the xmltv.php programme guide URL.
func (c *Client) GuideURL() string {
	return c.BaseURL + "/xmltv.php?username=" + url.QueryEscape(c.Username) +
		"&password=" + url.QueryEscape(c.Password)
}

// Probe checks that the server answers the bare auth request with a JSON
// object carrying account or server markers. Cheap liveness check run once
// per sync before any listing request.
func (c *Client) Probe(ctx context.Context, timeout time.Duration) error {
	u := c.PlayerAPIURL("")
	body, err := c.get(ctx, u, timeout)
	if err != nil {
		return err
	}
	var probe struct {
		UserInfo   json.RawMessage `json:"user_info"`
		ServerInfo json.RawMessage `json:"server_info"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return &MalformedResponseError{URL: u, Detail: "auth payload is not a JSON object"}
	}
	if len(probe.UserInfo) == 0 && len(probe.ServerInfo) == 0 {
		return &AuthError{URL: u}
	}
	return nil
}

// FetchList fetches url and validates that the body is a JSON array. The raw
// body is returned untouched so it can be cached byte for byte.
func (c *Client) FetchList(ctx context.Context, u string, timeout time.Duration) ([]byte, error) {
	body, err := c.get(ctx, u, timeout)
	if err != nil {
		return nil, err
	}
	if !leadsWith(body, '[') {
		return nil, &MalformedResponseError{URL: u, Detail: "expected a JSON array"}
	}
	if !json.Valid(body) {
		return nil, &MalformedResponseError{URL: u, Detail: "invalid JSON"}
	}
	return body, nil
}

// FetchObject fetches url and validates that the body is a JSON object.
func (c *Client) FetchObject(ctx context.Context, u string, timeout time.Duration) ([]byte, error) {
	body, err := c.get(ctx, u, timeout)
	if err != nil {
		return nil, err
	}
	if !leadsWith(body, '{') {
		return nil, &MalformedResponseError{URL: u, Detail: "expected a JSON object"}
	}
	if !json.Valid(body) {
		return nil, &MalformedResponseError{URL: u, Detail: "invalid JSON"}
	}
	return body, nil
}

// FetchRaw fetches url without JSON validation. Used for the XMLTV guide.
func (c *Client) FetchRaw(ctx context.Context, u string, timeout time.Duration) ([]byte, error) {
	return c.get(ctx, u, timeout)
}

func leadsWith(body []byte, ch byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == ch
}

// get performs a paced GET with up to maxAttempts tries. Network errors and
// retryable statuses (408, 423, 429, 5xx) back off exponentially from
// initialBackoff, honoring Retry-After when the server sends one. Other 4xx
// fail immediately; 401/403 map to AuthError.
func (c *Client) get(ctx context.Context, u string, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.FetchRetries.Inc()
		}
		body, retry, err := c.attempt(ctx, u, timeout)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		wait := backoff
		if ra, ok := err.(*retryAfterError); ok && ra.wait > 0 {
			wait = ra.wait
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			c.sleep(wait)
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return nil, &TransientError{URL: u, Err: lastErr}
}

// retryAfterError wraps a retryable HTTP status, carrying the server's
// Retry-After wish when present.
type retryAfterError struct {
	status int
	wait   time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

func (c *Client) attempt(ctx context.Context, u string, timeout time.Duration) (body []byte, retry bool, err error) {
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return body, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, false, &AuthError{URL: u, Status: resp.StatusCode}
	case retryableStatus(resp.StatusCode):
		io.Copy(io.Discard, resp.Body)
		return nil, true, &retryAfterError{status: resp.StatusCode, wait: parseRetryAfter(resp)}
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("xtream: get %s: unexpected status %s", u, resp.Status)
	}
}

// retryableStatus reports whether a status is worth another attempt:
// 408 Request Timeout, 423 Locked, 429 Too Many Requests, and all 5xx.
func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusLocked ||
		code == http.StatusTooManyRequests ||
		(code >= 500 && code < 600)
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date, capped at
// maxBackoff. Returns 0 when missing or unparseable.
func parseRetryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
		d := time.Duration(sec) * time.Second
		if d > maxBackoff {
			return maxBackoff
		}
		return d
	}
	if t, err := http.ParseTime(s); err == nil {
		d := time.Until(t)
		if d <= 0 {
			return initialBackoff
		}
		if d > maxBackoff {
			return maxBackoff
		}
		return d
	}
	return 0
}
