package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "records")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte(`[{"title":"a"}]`)
	require.NoError(t, m.Set(ctx, "records", value))

	// caller mutation must not leak into the store
	value[0] = 'X'
	got, err := m.Get(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"a"}]`, string(got))
	assert.Equal(t, 1, m.Sets())

	require.NoError(t, m.Delete(ctx, "records"))
	require.NoError(t, m.Delete(ctx, "records"))
	_, err = m.Get(ctx, "records")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("disk full")

	m.FailWith(boom)
	assert.ErrorIs(t, m.Set(ctx, "k", []byte("v")), boom)
	assert.Equal(t, 0, m.Sets())

	m.FailWith(nil)
	assert.NoError(t, m.Set(ctx, "k", []byte("v")))
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Close())

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", nil), ErrClosed)
	assert.ErrorIs(t, m.Delete(ctx, "k"), ErrClosed)
}

func TestWithQuota(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		quota   int64
		value   string
		wantErr bool
	}{
		{name: "fits", quota: 16, value: "hello", wantErr: false},
		{name: "exact", quota: 6, value: "hello", wantErr: false},
		{name: "too big", quota: 5, value: "hello", wantErr: true},
		{name: "disabled", quota: 0, value: "hello world", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := NewMemory()
			s := WithQuota(inner, tt.quota)

			err := s.Set(ctx, "k", []byte(tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrQuotaExceeded)
				_, getErr := inner.Get(ctx, "k")
				assert.ErrorIs(t, getErr, ErrNotFound)
				return
			}
			require.NoError(t, err)
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, tt.value, string(got))
		})
	}
}
