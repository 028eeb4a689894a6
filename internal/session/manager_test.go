package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/erpconsole/model"
)

func TestManager_lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour, nil)

	id := model.Identity{Username: "alice", Roles: []string{"sales"}}
	rec, err := m.Create(ctx, id, []Cookie{{Name: "sid", Value: "x"}})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.WithinDuration(t, rec.CreatedAt.Add(time.Hour), rec.ExpiresAt, time.Second)

	got, err := m.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identity.Username)

	refreshed, err := m.Refresh(ctx, rec.ID, model.Identity{
		Username:    "alice",
		Roles:       []string{"sales", "accountant"},
		Permissions: model.NewPermissionSet("contracts:view"),
	})
	require.NoError(t, err)
	assert.Equal(t, rec.ExpiresAt, refreshed.ExpiresAt)
	assert.True(t, refreshed.Identity.Permissions.Has("contracts:view"))

	require.NoError(t, m.Clear(ctx, rec.ID))
	_, err = m.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_createRequiresUsername(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, nil)
	_, err := m.Create(context.Background(), model.Identity{}, nil)
	assert.Error(t, err)
}

func TestManager_expired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, time.Minute, nil)
	now := time.Now()
	m.now = func() time.Time { return now }

	rec, err := m.Create(ctx, model.Identity{Username: "bob"}, nil)
	require.NoError(t, err)

	m.now = func() time.Time { return now.Add(time.Hour) }
	_, err = m.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_emptyID(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, nil)
	_, err := m.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Clear(context.Background(), ""))
}
