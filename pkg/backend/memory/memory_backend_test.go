package memory

import (
	"context"
	"testing"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/store"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	assert.NotNil(t, backend)
	assert.False(t, backend.Exists())
	assert.Equal(t, "memory", backend.Name())
}

func TestMemoryBackend_PersistThenLoad(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	book := core.NewLiveBook()
	o, err := core.NewOrder("Y", 10, fpdecimal.FromInt(5), core.Buy, core.KindLimit, "b1")
	require.NoError(t, err)
	book.Add(*o)
	snap := core.ToSnapshot(book)

	require.NoError(t, backend.Persist(ctx, snap))
	assert.True(t, backend.Exists())

	loaded, err := backend.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	// mutating what was loaded does not touch the stored copy
	for k := range loaded.Buy {
		loaded.Buy[k][0].Quantity = 1
	}
	again, err := backend.LoadOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestMemoryBackend_Reset(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	require.NoError(t, backend.Persist(ctx, core.NewSnapshot()))

	msg, err := backend.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.MsgResetDone, msg)
	assert.False(t, backend.Exists())

	msg, err = backend.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.MsgResetMissing, msg)
	assert.False(t, backend.Exists())
}

func TestMemoryBackend_WithData(t *testing.T) {
	backend := NewMemoryBackendWithData([]byte("   "))
	snap, err := backend.LoadOrCreate(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())

	backend = NewMemoryBackendWithData([]byte("{broken"))
	_, err = backend.LoadOrCreate(context.Background())
	assert.ErrorIs(t, err, core.ErrCorruptState)
	assert.Equal(t, []byte("{broken"), backend.Bytes())
}
