// Package session keeps track of who is signed in: server-side session
// records and their stores, the signed cookie that points at them, the
// in-process identity holder used by terminal clients, and the redirect to
// the sign-in view after the backend rejects a session.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pitabwire/erpconsole/model"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

// Cookie is a backend cookie held on behalf of the browser.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is one signed-in browser session.
type Record struct {
	ID             string         `json:"id"`
	Identity       model.Identity `json:"identity"`
	BackendCookies []Cookie       `json:"backendCookies,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt"`
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// HTTPCookies converts the stored backend cookies for use on a request.
func (r Record) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(r.BackendCookies))
	for _, c := range r.BackendCookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// CookiesFrom keeps the name and value of each cookie.
func CookiesFrom(cookies []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Store persists session records. Implementations must not return records
// whose ExpiresAt has passed.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
}
