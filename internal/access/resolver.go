package access

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/pitabwire/erpconsole/model"
)

// PolicySource expands role names into permissions.
type PolicySource interface {
	Permissions(roles []string) model.PermissionSet
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheObserver registers a callback for cache hits and misses.
func WithCacheObserver(fn func(hit bool)) ResolverOption {
	return func(r *Resolver) { r.observe = fn }
}

// Resolver merges the permissions an identity was issued by the backend with
// those its roles grant under the local policy. Role expansions are cached
// per distinct role set.
type Resolver struct {
	policy  PolicySource
	ttl     time.Duration
	cache   *ristretto.Cache[string, model.PermissionSet]
	observe func(bool)
}

// NewResolver creates a Resolver caching up to maxEntries role sets for ttl.
func NewResolver(policy PolicySource, maxEntries int64, ttl time.Duration, opts ...ResolverOption) (*Resolver, error) {
	if maxEntries < 1 {
		maxEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, model.PermissionSet]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("access: creating permission cache: %w", err)
	}
	r := &Resolver{policy: policy, ttl: ttl, cache: cache}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns a copy of id whose permission set also contains every
// permission granted by its roles.
func (r *Resolver) Resolve(id *model.Identity) *model.Identity {
	if id == nil {
		return nil
	}
	out := id.Clone()
	out.Permissions = id.Permissions.Union(r.Expand(id.Roles))
	return out
}

// Expand returns the permissions granted by roles.
func (r *Resolver) Expand(roles []string) model.PermissionSet {
	if len(roles) == 0 {
		return model.PermissionSet{}
	}
	key := roleKey(roles)
	if perms, ok := r.cache.Get(key); ok {
		r.record(true)
		return perms
	}
	r.record(false)

	perms := r.policy.Permissions(roles)
	if r.ttl > 0 {
		r.cache.SetWithTTL(key, perms, 1, r.ttl)
	} else {
		r.cache.Set(key, perms, 1)
	}
	r.cache.Wait()
	return perms
}

// Invalidate drops every cached expansion. It is called after the policy is
// reloaded.
func (r *Resolver) Invalidate() {
	r.cache.Clear()
}

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

func (r *Resolver) record(hit bool) {
	if r.observe != nil {
		r.observe(hit)
	}
}

func roleKey(roles []string) string {
	sorted := slices.Clone(roles)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), "\x00")
}
