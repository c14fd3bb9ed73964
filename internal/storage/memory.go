package storage

import (
	"sync"
	"time"
)

// MemoryStorage is an in-memory storage backend, used in tests and
// when snapshot persistence is disabled.
type MemoryStorage struct {
	snapshots []*Snapshot
	selected  SelectedSnapshot
	nextID    int64
	mu        sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextID: 1}
}

// SaveSnapshot appends a snapshot and returns its id.
func (m *MemoryStorage) SaveSnapshot(grubConfig string, selectedKernel *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		ID:         m.nextID,
		GrubConfig: grubConfig,
		Created:    time.Now().UTC(),
	}
	if selectedKernel != nil {
		kernel := *selectedKernel
		snap.SelectedKernel = &kernel
	}
	m.nextID++
	m.snapshots = append(m.snapshots, snap)
	return snap.ID, nil
}

// LatestSnapshot returns the most recently created snapshot.
func (m *MemoryStorage) LatestSnapshot() (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshots) == 0 {
		return nil, ErrNotFound
	}
	snap := *m.snapshots[len(m.snapshots)-1]
	return &snap, nil
}

// GetSnapshot returns the snapshot with the given id.
func (m *MemoryStorage) GetSnapshot(id int64) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, snap := range m.snapshots {
		if snap.ID == id {
			copied := *snap
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ListSnapshots returns all snapshots in ascending id order.
func (m *MemoryStorage) ListSnapshots() ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make([]*Snapshot, len(m.snapshots))
	for i, snap := range m.snapshots {
		copied := *snap
		snapshots[i] = &copied
	}
	return snapshots, nil
}

// DeleteSnapshot removes the snapshot with the given id.
func (m *MemoryStorage) DeleteSnapshot(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, snap := range m.snapshots {
		if snap.ID == id {
			m.snapshots = append(m.snapshots[:i], m.snapshots[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// SelectedSnapshot returns the selection state row.
func (m *MemoryStorage) SelectedSnapshot() (*SelectedSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sel := SelectedSnapshot{}
	if m.selected.GrubSnapshotID != nil {
		id := *m.selected.GrubSnapshotID
		sel.GrubSnapshotID = &id
	}
	return &sel, nil
}

// SetSelectedSnapshot updates the selection state row.
func (m *MemoryStorage) SetSelectedSnapshot(id *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == nil {
		m.selected.GrubSnapshotID = nil
		return nil
	}
	copied := *id
	m.selected.GrubSnapshotID = &copied
	return nil
}

// Close closes the storage backend.
func (m *MemoryStorage) Close() error {
	return nil
}
