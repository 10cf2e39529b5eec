package memory

import (
	"context"
	"sync"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/store"
)

// MemoryBackend keeps the encoded snapshot in process memory. It goes through
// the same codec as the durable backends, so a stored snapshot never aliases
// the caller's book.
type MemoryBackend struct {
	sync.RWMutex
	data   []byte
	exists bool
}

// NewMemoryBackend creates a new in-memory backend with no stored snapshot
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWithData creates a backend holding raw document bytes, as
// if a file with that content already existed.
func NewMemoryBackendWithData(data []byte) *MemoryBackend {
	return &MemoryBackend{data: append([]byte(nil), data...), exists: true}
}

// Name implements store.Store
func (b *MemoryBackend) Name() string {
	return "memory"
}

// LoadOrCreate implements store.Store
func (b *MemoryBackend) LoadOrCreate(ctx context.Context) (*core.Snapshot, error) {
	b.RLock()
	defer b.RUnlock()

	if !b.exists {
		return core.NewSnapshot(), nil
	}
	return store.Unmarshal(b.Name(), b.data)
}

// Persist implements store.Store
func (b *MemoryBackend) Persist(ctx context.Context, snap *core.Snapshot) error {
	data, err := store.Marshal(snap)
	if err != nil {
		return err
	}

	b.Lock()
	defer b.Unlock()
	b.data = data
	b.exists = true
	return nil
}

// Reset implements store.Store
func (b *MemoryBackend) Reset(ctx context.Context) (string, error) {
	b.Lock()
	defer b.Unlock()

	if !b.exists {
		return store.MsgResetMissing, nil
	}
	b.data = nil
	b.exists = false
	return store.MsgResetDone, nil
}

// Exists reports whether a snapshot is currently stored
func (b *MemoryBackend) Exists() bool {
	b.RLock()
	defer b.RUnlock()
	return b.exists
}

// Bytes returns a copy of the stored document
func (b *MemoryBackend) Bytes() []byte {
	b.RLock()
	defer b.RUnlock()
	return append([]byte(nil), b.data...)
}

var _ store.Store = (*MemoryBackend)(nil)
