// Package client talks to the apix backend: the REST API for collections,
// requests, workspaces, environments and auth, and the proxy that performs
// outbound calls.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/apix/pkg/logging"
)

// DefaultBaseURL is used when no api_url is configured.
const DefaultBaseURL = "http://localhost:5000/api"

// Client is the REST client for the backend.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger

	mu      sync.RWMutex
	session *Session
}

// Option configures a Client or a Proxy.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *zap.Logger
	session    *Session
	token      func() string
	rateLimit  float64
}

// WithHTTPClient replaces the default 30 second timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger for calls and failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSession seeds the client with stored credentials.
func WithSession(s *Session) Option {
	return func(o *options) { o.session = s }
}

// WithTokenSource makes a Proxy read its bearer token from fn on every send.
func WithTokenSource(fn func() string) Option {
	return func(o *options) { o.token = fn }
}

// WithRateLimit caps proxy sends per second; zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *options) { o.rateLimit = perSecond }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	o.logger = logging.OrNop(o.logger)
	if o.session == nil {
		o.session = &Session{}
	}
	return o
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	o := buildOptions(opts)

	httpClient := *o.httpClient
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	if len(o.session.Cookies) > 0 {
		httpClient.Jar.SetCookies(u, o.session.httpCookies())
	}

	return &Client{
		baseURL: u,
		http:    &httpClient,
		logger:  o.logger.With(logging.Component("client")),
		session: o.session,
	}, nil
}

// Session returns a copy of the current credentials.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := *c.session
	s.Cookies = append([]Cookie(nil), c.session.Cookies...)
	return &s
}

// Token returns the current session token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

// LoggedIn reports whether the client holds credentials.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.LoggedIn()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one JSON call. A nil out discards the response body; fallback is
// the message used when a failure carries none.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	c.mu.RUnlock()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend call failed", logging.Method(method), logging.Path(path), zap.Error(err))
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		logging.Method(method),
		logging.Path(path),
		logging.Status(resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp, fallback)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
