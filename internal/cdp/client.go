// Package cdp talks to a remote Chrome DevTools endpoint that has been
// forwarded to the operator's loopback interface.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"sessionops/internal/cookie"
	"sessionops/internal/logging"
)

// ErrHostNotAllowed is returned by ValidateHost for non-allowlisted hosts.
var ErrHostNotAllowed = errors.New("cdp host not allowed")

// DefaultAllowedHosts are the loopback names a debugger may be reached on.
var DefaultAllowedHosts = []string{"127.0.0.1", "localhost", "::1"}

const (
	DefaultHTTPTimeout     = 5 * time.Second
	DefaultExchangeTimeout = 10 * time.Second
)

// ValidateHost rejects hosts outside allowed (DefaultAllowedHosts when empty).
// Callers must check this before handing a host to the Client.
func ValidateHost(host string, allowed []string) error {
	if len(allowed) == 0 {
		allowed = DefaultAllowedHosts
	}
	h := strings.Trim(strings.TrimSpace(host), "[]")
	for _, a := range allowed {
		if strings.EqualFold(h, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrHostNotAllowed, host)
}

// Target is one entry of the debugger's /json listing.
type Target struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// InjectResult reports a cookie injection batch. Failures are data, never errors.
type InjectResult struct {
	Injected int      `json:"injected"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// Client performs DevTools discovery and cookie injection.
type Client struct {
	http            *http.Client
	dialer          *websocket.Dialer
	exchangeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPTimeout bounds discovery requests.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithExchangeTimeout bounds each WebSocket request/response exchange.
func WithExchangeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.exchangeTimeout = d
		}
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: DefaultHTTPTimeout},
		dialer: &websocket.Dialer{
			Proxy:            nil,
			HandshakeTimeout: DefaultHTTPTimeout,
		},
		exchangeTimeout: DefaultExchangeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func endpoint(host string, port int, path string) string {
	return "http://" + net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port)) + path
}

func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// ListTargets returns the debugger's open targets. Discovery is best effort:
// any failure is logged and yields an empty list.
func (c *Client) ListTargets(ctx context.Context, host string, port int) []Target {
	var targets []Target
	if err := c.getJSON(ctx, endpoint(host, port, "/json"), &targets); err != nil {
		logging.CDPWarn("Failed to list CDP targets at %s:%d: %v", host, port, err)
		return []Target{}
	}
	if targets == nil {
		targets = []Target{}
	}
	logging.CDPDebug("Listed %d targets at %s:%d", len(targets), host, port)
	return targets
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// InjectCookies sets each cookie in the browser behind host:port through the
// browser-level DevTools socket. Cookies are sent strictly in order, one
// request at a time. A rejected cookie does not stop the batch; a broken
// socket marks every cookie not yet confirmed as failed.
func (c *Client) InjectCookies(ctx context.Context, host string, port int, cookies []cookie.Cookie) InjectResult {
	timer := logging.StartTimer(logging.CategoryCDP, "InjectCookies")
	defer timer.Stop()

	res := InjectResult{Errors: []string{}}

	var info versionInfo
	if err := c.getJSON(ctx, endpoint(host, port, "/json/version"), &info); err != nil {
		logging.CDPWarn("CDP discovery at %s:%d failed: %v", host, port, err)
		res.Failed = len(cookies)
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to connect to CDP at %s:%d: %v", host, port, err))
		return res
	}
	if info.WebSocketDebuggerURL == "" {
		res.Failed = len(cookies)
		res.Errors = append(res.Errors, "No webSocketDebuggerUrl in CDP response")
		return res
	}

	conn, err := c.dial(ctx, info.WebSocketDebuggerURL)
	if err != nil {
		logging.CDPWarn("WebSocket dial %s failed: %v", info.WebSocketDebuggerURL, err)
		res.Failed = len(cookies)
		res.Errors = append(res.Errors, fmt.Sprintf("WebSocket error: %v", err))
		return res
	}
	defer conn.close()

	var enableErr *ResponseError
	if _, err := conn.call(ctx, "Network.enable", nil); errors.As(err, &enableErr) {
		logging.CDPDebug("Network.enable rejected at %s:%d, continuing: %v", host, port, err)
	} else if err != nil {
		res.Failed = len(cookies)
		res.Errors = append(res.Errors, fmt.Sprintf("WebSocket error: %v", err))
		return res
	}

	for i, ck := range cookies {
		raw, err := conn.call(ctx, "Network.setCookie", ck.Param())

		var rpcErr *ResponseError
		switch {
		case errors.As(err, &rpcErr):
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to set %s for %s: %s", ck.Name, ck.Domain, rpcErr.Message))
			continue
		case err != nil:
			logging.CDPError("Injection into %s:%d aborted at cookie %d/%d: %v", host, port, i+1, len(cookies), err)
			res.Failed += len(cookies) - i
			res.Errors = append(res.Errors, fmt.Sprintf("WebSocket error: %v", err))
			return res
		}

		var out struct {
			Success bool `json:"success"`
		}
		if json.Unmarshal(raw, &out) == nil && out.Success {
			res.Injected++
			continue
		}
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to set %s for %s", ck.Name, ck.Domain))
	}

	logging.CDP("Injected %d/%d cookies into %s:%d", res.Injected, len(cookies), host, port)
	return res
}
