package file

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/store"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultPath is the snapshot file used when none is configured
const DefaultPath = "orderbook.json"

// FileBackend keeps the snapshot in a single JSON file. Writes go to a
// temporary file in the same directory which is then renamed over the
// target, so a reader sees either the old or the new snapshot.
type FileBackend struct {
	fs     afero.Fs
	path   string
	logger zerolog.Logger
}

// Option configures a FileBackend
type Option func(*FileBackend)

// WithFs replaces the filesystem, e.g. with afero.NewMemMapFs() in tests
func WithFs(fsys afero.Fs) Option {
	return func(b *FileBackend) {
		b.fs = fsys
	}
}

// WithLogger sets the backend logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *FileBackend) {
		b.logger = logger
	}
}

// NewFileBackend creates a backend for the snapshot at path on the OS
// filesystem unless WithFs says otherwise.
func NewFileBackend(path string, opts ...Option) *FileBackend {
	if path == "" {
		path = DefaultPath
	}
	b := &FileBackend{
		fs:     afero.NewOsFs(),
		path:   path,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements store.Store
func (b *FileBackend) Name() string {
	return "file:" + b.path
}

// Path returns the snapshot file path
func (b *FileBackend) Path() string {
	return b.path
}

// LoadOrCreate implements store.Store
func (b *FileBackend) LoadOrCreate(ctx context.Context) (*core.Snapshot, error) {
	data, err := afero.ReadFile(b.fs, b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.logger.Debug().Str("path", b.path).Msg("Snapshot file absent, starting empty")
			return core.NewSnapshot(), nil
		}
		return nil, &core.IOError{Op: "read", Resource: b.path, Err: err}
	}
	return store.Unmarshal(b.path, data)
}

// Persist implements store.Store
func (b *FileBackend) Persist(ctx context.Context, snap *core.Snapshot) error {
	data, err := store.Marshal(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := b.fs.MkdirAll(dir, 0o755); err != nil {
		return &core.IOError{Op: "mkdir", Resource: dir, Err: err}
	}

	tmp, err := afero.TempFile(b.fs, dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return &core.IOError{Op: "create", Resource: dir, Err: err}
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		_ = b.fs.Remove(tmpName)
		return &core.IOError{Op: "write", Resource: tmpName, Err: err}
	}
	if err := b.fs.Rename(tmpName, b.path); err != nil {
		_ = b.fs.Remove(tmpName)
		return &core.IOError{Op: "rename", Resource: b.path, Err: err}
	}

	b.logger.Debug().Str("path", b.path).Int("bytes", len(data)).Msg("Snapshot persisted")
	return nil
}

func writeAndClose(f afero.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Reset implements store.Store
func (b *FileBackend) Reset(ctx context.Context) (string, error) {
	if err := b.fs.Remove(b.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.logger.Info().Str("path", b.path).Msg("Reset requested but snapshot file is absent")
			return store.MsgResetMissing, nil
		}
		return "", &core.IOError{Op: "delete", Resource: b.path, Err: err}
	}
	b.logger.Info().Str("path", b.path).Msg("Snapshot file deleted")
	return store.MsgResetDone, nil
}

var _ store.Store = (*FileBackend)(nil)
