// Package storage implements snapshot storage backends for the daemon.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is an immutable historical copy of the GRUB config text
// plus the kernel selection active when it was saved.
type Snapshot struct {
	ID             int64     `json:"id"`
	GrubConfig     string    `json:"grub_config"`
	SelectedKernel *string   `json:"selected_kernel"`
	Created        time.Time `json:"created"`
}

// SelectedSnapshot is the single-row selection state. A nil
// GrubSnapshotID means the live/latest configuration is authoritative,
// not that no snapshot exists.
type SelectedSnapshot struct {
	GrubSnapshotID *int64 `json:"grub2_snapshot_id"`
}

// Backend defines the interface for snapshot storage backends.
type Backend interface {
	// SaveSnapshot appends a snapshot and returns its id.
	SaveSnapshot(grubConfig string, selectedKernel *string) (int64, error)

	// LatestSnapshot returns the most recently created snapshot.
	// Returns ErrNotFound when no snapshots exist.
	LatestSnapshot() (*Snapshot, error)

	// GetSnapshot returns the snapshot with the given id.
	// Returns ErrNotFound when it does not exist.
	GetSnapshot(id int64) (*Snapshot, error)

	// ListSnapshots returns all snapshots in ascending id order.
	ListSnapshots() ([]*Snapshot, error)

	// DeleteSnapshot removes the snapshot with the given id.
	// Returns ErrNotFound when it does not exist.
	DeleteSnapshot(id int64) error

	// SelectedSnapshot returns the selection state row.
	SelectedSnapshot() (*SelectedSnapshot, error)

	// SetSelectedSnapshot updates the selection state row. A nil id
	// resets selection to the live/latest configuration.
	SetSelectedSnapshot(id *int64) error

	// Close closes the storage backend.
	Close() error
}
