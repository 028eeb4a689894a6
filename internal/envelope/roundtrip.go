package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pitabwire/erpconsole/model"
)

// HeaderNormalized is set on responses whose body was rewritten.
const HeaderNormalized = "X-Envelope-Normalized"

// Option configures a RoundTripper.
type Option func(*RoundTripper)

// WithObserver registers a callback invoked once per JSON response with
// whether the body was a backend envelope.
func WithObserver(fn func(normalized bool)) Option {
	return func(rt *RoundTripper) { rt.observe = fn }
}

// RoundTripper rewrites backend envelopes in JSON response bodies before the
// caller reads them.
type RoundTripper struct {
	base    http.RoundTripper
	observe func(bool)
}

// NewRoundTripper wraps base. A nil base uses http.DefaultTransport.
func NewRoundTripper(base http.RoundTripper, opts ...Option) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := &RoundTripper{base: base}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.base.RoundTrip(req)
	if err != nil || resp.Body == nil || !isJSON(resp.Header.Get("Content-Type")) {
		return resp, err
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("envelope: reading response body: %w", err)
	}

	out, normalized := Rewrite(raw)
	if rt.observe != nil && len(bytes.TrimSpace(raw)) > 0 {
		rt.observe(normalized)
	}
	if normalized {
		resp.Header.Set(HeaderNormalized, "true")
		resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
		resp.ContentLength = int64(len(out))
	}
	resp.Body = io.NopCloser(bytes.NewReader(out))
	return resp, nil
}

// Rewrite normalizes a raw JSON document. It returns the input unchanged and
// false when the document is not a backend envelope or cannot be parsed.
func Rewrite(raw []byte) ([]byte, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return raw, false
	}
	if !IsEnvelope(body) {
		return raw, false
	}
	out, err := json.Marshal(Normalize(body))
	if err != nil {
		return raw, false
	}
	return out, true
}

// Decode parses a normalized body into a typed response.
func Decode[T any](raw []byte) (model.Response[T], error) {
	var resp model.Response[T]
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("envelope: decoding response: %w", err)
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "/json") || strings.Contains(ct, "+json")
}
