// Package backend is the console's client for the ERP REST backend. Every
// response passes through the envelope adapter, so callers only ever see the
// normalized shape, and failures surface as *model.ErrorEnvelope values.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/envelope"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/model"
)

const maxResponseBytes = 10 << 20

// Request describes one backend call. Path is relative to the base URL.
// Resource labels metrics and spans.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Resource string
}

// Result is a backend answer in normalized envelope form.
type Result struct {
	Status  int
	Body    []byte
	Cookies []*http.Cookie
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records backend metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for request debugging.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTransport replaces the innermost transport. Tests use it to stub the
// network.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithCookieJar makes the client keep cookies between calls. Terminal
// clients use it; the HTTP server passes per-session cookies instead.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.jar = jar }
}

// WithUnauthorizedHook registers fn to run when the backend rejects the
// session on any call other than the login itself.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// Client talks to the backend through the envelope adapter, with retries for
// idempotent calls that never reached the server and a circuit breaker.
type Client struct {
	baseURL        *url.URL
	cfg            config.BackendConfig
	http           *http.Client
	base           http.RoundTripper
	jar            http.CookieJar
	breaker        *Breaker
	metrics        *observability.Metrics
	logger         *zap.Logger
	onUnauthorized func(ctx context.Context)
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg config.BackendConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL: base,
		cfg:     cfg,
		logger:  zap.NewNop(),
		breaker: NewBreaker(
			cfg.CircuitBreaker.FailureThreshold,
			cfg.CircuitBreaker.SuccessThreshold,
			cfg.CircuitBreaker.Timeout,
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == nil {
		c.base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxConnsPerHost:     50,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	var envOpts []envelope.Option
	if c.metrics != nil {
		envOpts = append(envOpts, envelope.WithObserver(c.metrics.RecordEnvelope))
		c.breaker.OnChange(func(s BreakerState) { c.metrics.SetCircuitBreakerState(s.gauge()) })
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.http = &http.Client{
		Timeout:   timeout,
		Jar:       c.jar,
		Transport: otelhttp.NewTransport(envelope.NewRoundTripper(c.base, envOpts...)),
	}
	return c, nil
}

// Breaker exposes the circuit breaker for diagnostics.
func (c *Client) Breaker() *Breaker { return c.breaker }

// LoginPath returns the configured login endpoint.
func (c *Client) LoginPath() string { return c.cfg.LoginPath }

// HealthCheck reports the backend unhealthy while the breaker is open.
func (c *Client) HealthCheck(context.Context) error {
	if c.breaker.State() == BreakerOpen {
		return ErrCircuitOpen
	}
	return nil
}

type credentialsKey struct{}

// WithCredentials attaches the backend cookies of the signed-in session to
// ctx. Calls made with ctx present them to the backend.
func WithCredentials(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, credentialsKey{}, cookies)
}

func credentialsFrom(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(credentialsKey{}).([]*http.Cookie)
	return cookies
}

// Do performs req and maps failures onto the error taxonomy:
// unreachable or timed-out backends, rejected sessions, and envelopes that
// reported success=false.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("backend: encoding request body: %w", err)
		}
	}

	logger := observability.RequestLogger(ctx, c.logger)
	if ce := logger.Check(zap.DebugLevel, "backend request"); ce != nil {
		fields := []zap.Field{zap.String("method", req.Method), zap.String("path", req.Path)}
		var body map[string]any
		if json.Unmarshal(payload, &body) == nil {
			fields = append(fields, zap.Any("body", observability.RedactBody(body)))
		}
		ce.Write(fields...)
	}

	res, err := c.doWithRetry(ctx, req, payload)
	if err != nil {
		var te *transportError
		if errors.As(err, &te) {
			logger.Warn("backend unreachable",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Error(te.err),
			)
			return nil, te.env
		}
		return nil, err
	}
	return c.interpret(ctx, req, res)
}

func (c *Client) doWithRetry(ctx context.Context, req Request, payload []byte) (*Result, error) {
	attempts := c.cfg.Retry.MaxAttempts
	if attempts < 1 || !isIdempotent(req.Method) {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordBackendRetry()
			}
			select {
			case <-ctx.Done():
				return nil, model.NewBackendTimeoutError()
			case <-time.After(backoff(c.cfg.Retry, attempt)):
			}
		}

		res, err := c.send(ctx, req, payload)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.logger.Debug("backend call failed, retrying",
			zap.String("path", req.Path),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

// transportError marks failures where the backend never answered.
type transportError struct {
	env *model.ErrorEnvelope
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.env }

func retryable(err error) bool {
	var te *transportError
	return errors.As(err, &te) && te.env.Code == model.ErrBackendUnavailable
}

func (c *Client) send(ctx context.Context, req Request, payload []byte) (*Result, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, model.NewBackendUnavailableError()
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("backend: building request: %w", err)
	}
	hreq.Header.Set("Accept", "application/json")
	if payload != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if id := observability.CorrelationIDFrom(ctx); id != "" {
		hreq.Header.Set("X-Correlation-Id", id)
	}
	for _, ck := range credentialsFrom(ctx) {
		hreq.AddCookie(ck)
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		c.breaker.RecordFailure()
		c.recordRequest(req, 0, start)
		if isTimeout(ctx, err) {
			return nil, &transportError{env: model.NewBackendTimeoutError(), err: err}
		}
		return nil, &transportError{env: model.NewBackendUnavailableError(), err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.breaker.RecordFailure()
		c.recordRequest(req, resp.StatusCode, start)
		return nil, &transportError{env: model.NewBackendUnavailableError(), err: err}
	}
	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	c.recordRequest(req, resp.StatusCode, start)

	res := &Result{Status: resp.StatusCode, Body: raw, Cookies: resp.Cookies()}
	if resp.Header.Get(envelope.HeaderNormalized) == "" && resp.StatusCode < 300 && !looksNormalized(raw) {
		res.Body = wrapData(raw, resp.StatusCode)
	}
	return res, nil
}

func (c *Client) recordRequest(req Request, status int, start time.Time) {
	if c.metrics == nil {
		return
	}
	resource := req.Resource
	if resource == "" {
		resource = "other"
	}
	c.metrics.RecordBackendRequest(req.Method, resource, status, time.Since(start))
}

// status carries the fields of a normalized envelope that decide failure.
type status struct {
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
}

func (c *Client) interpret(ctx context.Context, req Request, res *Result) (*Result, error) {
	var st status
	parsed := json.Unmarshal(res.Body, &st) == nil && looksNormalized(res.Body)

	if res.Status == http.StatusUnauthorized {
		msg := "Your session has expired, please sign in again"
		if c.isLogin(req) {
			msg = "Invalid username or password"
		} else if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		if parsed && st.Message != "" {
			msg = st.Message
		}
		env := model.NewUnauthorizedError(msg)
		env.Status = res.Status
		return nil, env
	}

	if parsed {
		if !st.Success {
			code := st.StatusCode
			if code == 0 {
				code = res.Status
			}
			msg := st.Message
			if msg == "" {
				msg = http.StatusText(res.Status)
			}
			return nil, model.NewApplicationError(code, msg)
		}
		return res, nil
	}

	switch {
	case res.Status == http.StatusNotFound:
		return nil, model.NewNotFoundError("The requested record does not exist")
	case res.Status == http.StatusForbidden:
		return nil, model.NewForbiddenError("You do not have permission to perform this action")
	case res.Status >= 500:
		env := model.NewBackendUnavailableError()
		env.Status = res.Status
		return nil, env
	case res.Status >= 400:
		return nil, model.NewApplicationError(res.Status, http.StatusText(res.Status))
	}
	return res, nil
}

func (c *Client) isLogin(req Request) bool {
	return req.Method == http.MethodPost &&
		strings.TrimSuffix(req.Path, "/") == strings.TrimSuffix(c.cfg.LoginPath, "/")
}

// wrapData turns a plain 2xx body into a normalized envelope whose data is
// the body itself. Bodies already in the camelCase shape are left alone.
func wrapData(raw []byte, code int) []byte {
	data := json.RawMessage("null")
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && json.Valid(trimmed) {
		data = trimmed
	}
	out, err := json.Marshal(struct {
		Data       json.RawMessage `json:"data"`
		Message    string          `json:"message"`
		Success    bool            `json:"success"`
		StatusCode int             `json:"statusCode"`
	}{data, "", true, code})
	if err != nil {
		return raw
	}
	return out
}

func looksNormalized(raw []byte) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func backoff(cfg config.RetryConfig, attempt int) time.Duration {
	initial, mult, ceiling := cfg.BackoffInitial, cfg.BackoffMultiplier, cfg.BackoffMax
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if mult <= 0 {
		mult = 2
	}
	if ceiling <= 0 {
		ceiling = 2 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if delay >= ceiling {
			return ceiling
		}
	}
	return delay
}

// Decode parses the data of a successful result.
func Decode[T any](res *Result) (model.Response[T], error) {
	return envelope.Decode[T](res.Body)
}
