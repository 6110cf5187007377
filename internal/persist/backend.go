package persist

import (
	"os"
	"path/filepath"
)

// Backend is the durable storage a document store flushes to. Every
// mutation rewrites the whole document, matching the on-disk layout of
// config.json / mutes.json / bans.json.
type Backend interface {
	Load() ([]byte, error)
	Flush(data []byte) error
}

type FileBackend struct {
	path string
}

func NewFile(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load returns nil data for a missing file so a fresh deployment starts
// from defaults.
func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *FileBackend) Flush(data []byte) error {
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(b.path, data, 0o644)
}

// MemoryBackend keeps the document in memory. Tests use it to run the
// stores without file I/O and to inject flush failures.
type MemoryBackend struct {
	data     []byte
	FlushErr error
	Flushes  int
}

func NewMemory() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load() ([]byte, error) {
	return b.data, nil
}

func (b *MemoryBackend) Flush(data []byte) error {
	if b.FlushErr != nil {
		return b.FlushErr
	}
	b.data = append([]byte(nil), data...)
	b.Flushes++
	return nil
}
