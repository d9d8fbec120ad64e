package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryVault keeps everything in process memory. It is safe for
// concurrent use and backs the "memory" vault type and tests.
type MemoryVault struct {
	name     string
	mu       sync.RWMutex
	content  map[string][]byte
	snaps    map[string][]byte
	versions map[string]int64
}

func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		content:  make(map[string][]byte),
		snaps:    make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func snapshotKey(deviceID, name string) string {
	return deviceID + "/" + name
}

func (m *MemoryVault) Name() string { return m.name }

func (m *MemoryVault) PutContent(_ context.Context, checksum string, r io.Reader, size int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.content[checksum]; !ok {
		m.content[checksum] = data
	}
	return nil
}

func (m *MemoryVault) GetContent(_ context.Context, checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[checksum]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("content %s: %w", checksum, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryVault) HasContent(_ context.Context, checksum string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[checksum]
	return ok, nil
}

func (m *MemoryVault) PutSnapshot(_ context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	data, err := readSized(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := snapshotKey(deviceID, name)
	m.snaps[key] = data
	m.versions[key] = version
	return nil
}

func (m *MemoryVault) GetSnapshot(_ context.Context, deviceID, name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.snaps[snapshotKey(deviceID, name)]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("snapshot %q for device %s: %w", name, deviceID, ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (m *MemoryVault) SnapshotVersion(_ context.Context, deviceID, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[snapshotKey(deviceID, name)], nil
}

func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// readSized reads r fully and checks that exactly size bytes arrived.
func readSized(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

var _ Vault = (*MemoryVault)(nil)
