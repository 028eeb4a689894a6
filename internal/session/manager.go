package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/model"
)

// Manager creates, reads and ends sessions on top of a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewManager returns a Manager issuing sessions that live for ttl.
func NewManager(store Store, ttl time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// TTL returns the lifetime of new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create starts a session for identity, remembering the backend cookies
// that authenticate it.
func (m *Manager) Create(ctx context.Context, identity model.Identity, cookies []Cookie) (Record, error) {
	if err := identity.Validate(); err != nil {
		return Record{}, fmt.Errorf("session: %w", err)
	}
	now := m.now().UTC()
	rec := Record{
		ID:             uuid.NewString(),
		Identity:       *identity.Clone(),
		BackendCookies: cookies,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	m.logger.Debug("session created",
		zap.String("session_id", rec.ID),
		zap.String("username", identity.Username),
	)
	return rec, nil
}

// Get returns the live session with id.
func (m *Manager) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, ErrNotFound
	}
	rec, err := m.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Refresh replaces the identity held by a session, keeping its expiry.
func (m *Manager) Refresh(ctx context.Context, id string, identity model.Identity) (Record, error) {
	rec, err := m.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if err := identity.Validate(); err != nil {
		return Record{}, fmt.Errorf("session: %w", err)
	}
	rec.Identity = *identity.Clone()
	if err := m.store.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Clear ends the session. Clearing an unknown session is not an error.
func (m *Manager) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	m.logger.Debug("session cleared", zap.String("session_id", id))
	return nil
}
