// Package integration provides a reusable test harness for end-to-end
// testing of the console server. It starts the full HTTP router against a
// mock ERP backend, with real session, access and definition wiring.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/dashboard"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/internal/form"
	"github.com/pitabwire/erpconsole/internal/navigation"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/internal/transport"
	"github.com/pitabwire/erpconsole/model"
)

var signingKey = []byte("integration-signing-key-32-bytes")

// TestHarness encapsulates a fully wired console with a mock backend.
type TestHarness struct {
	t       *testing.T
	server  *httptest.Server
	backend *MockBackend
	browser *http.Client

	// Internal components exposed for advanced test scenarios.
	Config    *config.Config
	Registry  *definition.Registry
	Resolver  *access.Resolver
	Sessions  *session.Manager
	Store     session.Store
	Metrics   *observability.Metrics
	Client    *backend.Client
	MiniRedis *miniredis.Miniredis
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	definitionDirs []string
	policyFile     string
	redisSessions  bool
	handlerTimeout time.Duration
	breaker        *config.CircuitBreakerConfig
	retryAttempts  int
}

// WithDefinitions sets the definition directories to load.
func WithDefinitions(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.definitionDirs = dirs
	}
}

// WithPolicyFile sets the role policy file.
func WithPolicyFile(path string) HarnessOption {
	return func(c *harnessConfig) {
		c.policyFile = path
	}
}

// WithRedisSessions keeps sessions in an in-process Redis instead of memory.
func WithRedisSessions() HarnessOption {
	return func(c *harnessConfig) {
		c.redisSessions = true
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithCircuitBreaker overrides the backend circuit breaker settings.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = &cb
	}
}

// WithRetry sets the number of attempts for idempotent backend calls.
func WithRetry(attempts int) HarnessOption {
	return func(c *harnessConfig) {
		c.retryAttempts = attempts
	}
}

// NewTestHarness creates and starts a full console instance. The server is
// cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		retryAttempts:  1,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if len(hc.definitionDirs) == 0 {
		hc.definitionDirs = []string{filepath.Join(testdataDir(), "definitions")}
	}
	if hc.policyFile == "" {
		hc.policyFile = filepath.Join(testdataDir(), "policies.yaml")
	}

	h := &TestHarness{t: t}
	h.backend = newMockBackend(t, ERPRoutes())

	cfg := config.Defaults()
	cfg.Backend.BaseURL = h.backend.URL()
	cfg.Backend.Retry.MaxAttempts = hc.retryAttempts
	cfg.Backend.Retry.BackoffInitial = time.Millisecond
	if hc.breaker != nil {
		cfg.Backend.CircuitBreaker = *hc.breaker
	}
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Session.CookieSecure = false
	cfg.Access.PolicyFile = hc.policyFile
	cfg.Definitions.Directories = hc.definitionDirs
	cfg.Dashboard.PartTimeout = 2 * time.Second
	h.Config = cfg

	logger := zap.NewNop()
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())

	defs, err := definition.NewLoader().LoadAll(hc.definitionDirs)
	if err != nil {
		t.Fatalf("load definitions: %v", err)
	}
	h.Registry = definition.NewRegistry(defs)

	policy, err := access.NewStaticPolicy(hc.policyFile)
	if err != nil {
		t.Fatalf("load policy file: %v", err)
	}
	h.Resolver, err = access.NewResolver(policy, 100, time.Minute)
	if err != nil {
		t.Fatalf("build resolver: %v", err)
	}
	t.Cleanup(h.Resolver.Close)

	if hc.redisSessions {
		h.MiniRedis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: h.MiniRedis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		h.Store = session.NewRedisStore(rdb)
	} else {
		h.Store = session.NewMemoryStore()
	}
	h.Sessions = session.NewManager(h.Store, cfg.Session.TTL, logger)

	tokens, err := session.NewTokenCodec(signingKey)
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}

	h.Client, err = backend.NewClient(cfg.Backend, backend.WithMetrics(h.Metrics), backend.WithLogger(logger))
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: h.Metrics,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return h.Registry.Count() > 0 },
			PolicyLoaded:      func() bool { return policy.Roles() > 0 },
			SessionStore:      h.Store,
			Backend:           h.Client,
		},
		Sessions:  h.Sessions,
		Tokens:    tokens,
		Resolver:  h.Resolver,
		Backend:   h.Client,
		Auth:      backend.NewAuth(h.Client),
		Registry:  h.Registry,
		Forms:     form.NewValidator(),
		Dashboard: dashboard.NewLoader(h.Client, cfg.Dashboard, h.Metrics, logger),
		Menu:      navigation.NewBuilder(h.Registry),
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	h.browser = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

// BaseURL returns the console's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Backend returns the mock ERP backend.
func (h *TestHarness) Backend() *MockBackend {
	return h.backend
}

// SessionCookie returns the console session cookie held by the browser, or
// nil when signed out.
func (h *TestHarness) SessionCookie() *http.Cookie {
	u, _ := url.Parse(h.server.URL)
	for _, c := range h.browser.Jar.Cookies(u) {
		if c.Name == h.Config.Session.CookieName {
			return c
		}
	}
	return nil
}

// SignInAs makes the backend accept the next login as identity and signs
// in through the console.
func (h *TestHarness) SignInAs(identity map[string]any) {
	h.t.Helper()
	h.backend.OnOperation("login").RespondWithHeaders(http.StatusOK, EnvelopeFixture(identity), func(hdr http.Header) {
		hdr.Add("Set-Cookie", "backend_sid=sess-"+fmt.Sprint(identity["username"])+"; Path=/; HttpOnly")
	})
	resp := h.POST("/ui/session", map[string]string{"username": fmt.Sprint(identity["username"]), "password": "secret"})
	h.AssertStatus(h.t, resp, http.StatusOK)
	resp.Body.Close()
	h.backend.ResetOperation("login")
}

// --- HTTP client helpers ---

// GET performs a GET request with the browser's cookies.
func (h *TestHarness) GET(path string, headers ...string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, headers)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, headers ...string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, headers)
}

// PUT performs a PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, headers ...string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPut, path, body, headers)
}

// DELETE performs a DELETE request.
func (h *TestHarness) DELETE(path string, headers ...string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodDelete, path, nil, headers)
}

// doRequest sends a request. headers holds alternating names and values.
func (h *TestHarness) doRequest(method, path string, body any, headers []string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.browser.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	h.AssertStatus(t, resp, expected)
	h.ParseJSON(resp, target)
}

// --- Identities ---

// ManagerIdentity is an HR manager who may do anything with employees.
func ManagerIdentity() map[string]any {
	return map[string]any{
		"username": "manager",
		"fullName": "Hanna Manager",
		"roles":    []string{"hr_manager"},
	}
}

// ViewerIdentity may only list employees.
func ViewerIdentity() map[string]any {
	return map[string]any{
		"username": "viewer",
		"fullName": "Victor Viewer",
		"roles":    []string{"hr_viewer"},
	}
}

// --- Fixtures ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// EnvelopeFixture wraps data in a successful backend envelope.
func EnvelopeFixture(data any) map[string]any {
	return map[string]any{
		"data":       data,
		"message":    "",
		"success":    true,
		"statusCode": 200,
	}
}

// FailureFixture is a backend envelope reporting a failed operation.
func FailureFixture(status int, message string) map[string]any {
	return map[string]any{
		"data":       nil,
		"message":    message,
		"success":    false,
		"statusCode": status,
	}
}

// EmployeeFixture returns a typical employee record.
func EmployeeFixture(id, name, department string) map[string]any {
	return map[string]any{
		"id":         id,
		"code":       "NV" + id,
		"fullName":   name,
		"email":      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		"department": department,
	}
}

// PageFixture returns one page of a paginated backend collection.
func PageFixture(items []map[string]any, total, pageIndex, pageSize int) map[string]any {
	return EnvelopeFixture(model.NewPagedResult(items, total, pageIndex, pageSize))
}

// Envelope is the console's response shape as seen by a client.
type Envelope[T any] struct {
	Data            T                  `json:"data"`
	Message         string             `json:"message"`
	Success         bool               `json:"success"`
	StatusCode      int                `json:"statusCode"`
	Code            string             `json:"code"`
	Errors          []model.FieldError `json:"errors"`
	Redirect        string             `json:"redirect"`
	RedirectAfterMs int64              `json:"redirectAfterMs"`
}
