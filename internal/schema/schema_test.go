package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/erpconsole/model"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Load(context.Background(), "testdata/backend.yaml")
	require.NoError(t, err)
	return reg
}

func TestLoad(t *testing.T) {
	reg := loadTestRegistry(t)
	assert.Equal(t, []string{"Employee", "Product"}, reg.Names())
	assert.True(t, reg.Has("Employee"))
	assert.False(t, reg.Has("Invoice"))
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(context.Background(), "testdata/nope.yaml")
	assert.Error(t, err)
}

func TestRegistry_check(t *testing.T) {
	reg := loadTestRegistry(t)
	mismatches, err := reg.Check("Employee", []any{
		map[string]any{"id": float64(1), "fullName": "Jane"},
		map[string]any{"id": "two", "fullName": "John"},
		map[string]any{"id": float64(3)},
	})
	require.NoError(t, err)
	require.Len(t, mismatches, 2)
	assert.Equal(t, 1, mismatches[0].Index)
	assert.Equal(t, 2, mismatches[1].Index)

	_, err = reg.Check("Invoice", nil)
	assert.Error(t, err)
}

func TestValidator_modes(t *testing.T) {
	reg := loadTestRegistry(t)
	bad := []any{map[string]any{"id": float64(1), "name": "Widget", "price": float64(-1)}}

	var observed []string
	warn, err := NewValidator(reg, ModeWarn, nil, func(s string) { observed = append(observed, s) })
	require.NoError(t, err)
	assert.NoError(t, warn.ValidateItems(context.Background(), "Product", bad))
	assert.Equal(t, []string{"Product"}, observed)

	strict, err := NewValidator(reg, ModeStrict, nil, nil)
	require.NoError(t, err)
	err = strict.ValidateItems(context.Background(), "Product", bad)
	env, ok := model.AsErrorEnvelope(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrInternalError, env.Code)
	assert.Equal(t, 502, env.Status)

	assert.NoError(t, strict.ValidateItems(context.Background(), "Unknown", bad))

	off, err := NewValidator(reg, "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeOff, off.Mode())
	assert.NoError(t, off.ValidateItems(context.Background(), "Product", bad))
}

func TestNewValidator_unknownMode(t *testing.T) {
	_, err := NewValidator(nil, "loud", nil, nil)
	assert.Error(t, err)
}
