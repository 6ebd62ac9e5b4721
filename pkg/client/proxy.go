package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/blackcoderx/apix/pkg/logging"
	"github.com/blackcoderx/apix/pkg/storage"
)

// Proxy posts resolved requests to the backend's POST /request endpoint,
// which performs the outbound call.
type Proxy struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	token    func() string
}

// NewProxy creates a proxy client for the service rooted at baseURL.
func NewProxy(baseURL string, opts ...Option) *Proxy {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	o := buildOptions(opts)

	limit := rate.Inf
	burst := 1
	if o.rateLimit > 0 {
		limit = rate.Limit(o.rateLimit)
		burst = int(o.rateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	token := o.token
	if token == nil {
		session := o.session
		token = func() string { return session.Token }
	}
	return &Proxy{
		endpoint: strings.TrimRight(baseURL, "/") + "/request",
		http:     o.httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   o.logger.With(logging.Component("proxy")),
		token:    token,
	}
}

// Send dispatches req. On success the set holds every step the proxy
// reported. When the proxy fails but answers with a response-shaped body,
// that body is returned alongside the error so it can be shown.
func (p *Proxy) Send(ctx context.Context, req *storage.Request) (storage.ResponseSet, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return storage.ResponseSet{}, fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(storage.NewProxyPayload(req))
	if err != nil {
		return storage.ResponseSet{}, fmt.Errorf("encode proxy payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return storage.ResponseSet{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if tok := p.token(); tok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := p.http.Do(httpReq)
	if err != nil {
		p.logger.Warn("proxy call failed", logging.RequestID(req.ID), logging.URL(req.URL), zap.Error(err))
		return storage.ResponseSet{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	p.logger.Debug("proxy call",
		logging.RequestID(req.ID),
		logging.Method(string(req.Method)),
		logging.URL(req.URL),
		logging.Status(resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp, "Request failed")
		set, decodeErr := storage.DecodeResponses(apiErr.Body)
		if decodeErr != nil {
			return storage.ResponseSet{}, apiErr
		}
		return set, apiErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.ResponseSet{}, fmt.Errorf("read proxy response: %w", err)
	}
	set, err := storage.DecodeResponses(body)
	if err != nil {
		return storage.ResponseSet{}, fmt.Errorf("proxy response: %w", err)
	}
	return set, nil
}
