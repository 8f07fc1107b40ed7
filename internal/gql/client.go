// Package gql talks to the rewards portal's GraphQL endpoint: session
// bootstrap (csrf token), the auth check, the offer catalog and the
// placeOrders mutation.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint  = "https://gaming.amazon.com/graphql"
	DefaultHomeURL   = "https://gaming.amazon.com/home"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/117.0"
)

// Options configures a Client.
type Options struct {
	Endpoint          string
	HomeURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64 // mutation pacing; 0 = unlimited
	Jar               http.CookieJar
}

// Request is one GraphQL operation.
type Request struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Extensions    map[string]any `json:"extensions"`
	Query         string         `json:"query"`
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Client shares one http.Client (and its connections) across all calls.
// The csrf token is set by Bootstrap before any claims are dispatched and
// only read afterwards.
type Client struct {
	endpoint  string
	home      string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter

	mu   sync.RWMutex
	csrf string
}

// New creates a Client. Empty options fall back to the portal defaults.
func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HomeURL == "" {
		opts.HomeURL = DefaultHomeURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		endpoint:  opts.Endpoint,
		home:      opts.HomeURL,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout, Jar: opts.Jar},
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Bootstrap loads the home page and stores its csrf token for later calls.
func (c *Client) Bootstrap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.home, nil)
	if err != nil {
		return fmt.Errorf("gql: bootstrap: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gql: bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{Op: "bootstrap", Msg: fmt.Sprintf("home page returned %s", resp.Status)}
	}

	token, err := FindCSRFToken(resp.Body)
	if err != nil {
		return &ProtocolError{Op: "bootstrap", Msg: "csrf token", Err: err}
	}

	c.mu.Lock()
	c.csrf = token
	c.mu.Unlock()
	return nil
}

// CSRFToken returns the token stored by Bootstrap.
func (c *Client) CSRFToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrf
}

// Do posts r and decodes the response's data object into out.
func (c *Client) Do(ctx context.Context, r Request, out any) error {
	if r.Variables == nil {
		r.Variables = map[string]any{}
	}
	if r.Extensions == nil {
		r.Extensions = map[string]any{}
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("gql: %s: marshal: %w", r.OperationName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gql: %s: %w", r.OperationName, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	if token := c.CSRFToken(); token != "" {
		req.Header.Set("csrf-token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gql: %s: %w", r.OperationName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("gql: %s: read body: %w", r.OperationName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ProtocolError{Op: r.OperationName, Msg: fmt.Sprintf("status %s: %s", resp.Status, truncate(string(raw), 200))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &ProtocolError{Op: r.OperationName, Msg: "decode response", Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return &ProtocolError{Op: r.OperationName, Msg: "response has no data: " + strings.Join(msgs, "; ")}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &ProtocolError{Op: r.OperationName, Msg: "decode data", Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
