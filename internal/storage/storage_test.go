package storage

import (
	"path/filepath"
	"testing"
)

// backends returns a fresh instance of every backend implementation.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

// TestSnapshotLifecycle verifies save, fetch, list, and delete across
// all backends.
func TestSnapshotLifecycle(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.LatestSnapshot(); err != ErrNotFound {
				t.Errorf("LatestSnapshot on empty store = %v, want ErrNotFound", err)
			}

			kernel := "openSUSE Tumbleweed"
			id1, err := b.SaveSnapshot("GRUB_TIMEOUT=5\n", nil)
			if err != nil {
				t.Fatalf("SaveSnapshot failed: %v", err)
			}
			id2, err := b.SaveSnapshot("GRUB_TIMEOUT=8\n", &kernel)
			if err != nil {
				t.Fatalf("SaveSnapshot failed: %v", err)
			}
			if id2 <= id1 {
				t.Errorf("ids not increasing: %d then %d", id1, id2)
			}

			latest, err := b.LatestSnapshot()
			if err != nil {
				t.Fatalf("LatestSnapshot failed: %v", err)
			}
			if latest.ID != id2 || latest.GrubConfig != "GRUB_TIMEOUT=8\n" {
				t.Errorf("latest = %+v, want id %d", latest, id2)
			}
			if latest.SelectedKernel == nil || *latest.SelectedKernel != kernel {
				t.Errorf("latest kernel = %v, want %q", latest.SelectedKernel, kernel)
			}
			if latest.Created.IsZero() {
				t.Error("latest.Created should be set")
			}

			first, err := b.GetSnapshot(id1)
			if err != nil {
				t.Fatalf("GetSnapshot failed: %v", err)
			}
			if first.SelectedKernel != nil {
				t.Errorf("first kernel = %v, want nil", first.SelectedKernel)
			}

			list, err := b.ListSnapshots()
			if err != nil {
				t.Fatalf("ListSnapshots failed: %v", err)
			}
			if len(list) != 2 || list[0].ID != id1 || list[1].ID != id2 {
				t.Errorf("list = %+v, want ascending ids %d, %d", list, id1, id2)
			}

			if err := b.DeleteSnapshot(id1); err != nil {
				t.Fatalf("DeleteSnapshot failed: %v", err)
			}
			if _, err := b.GetSnapshot(id1); err != ErrNotFound {
				t.Errorf("GetSnapshot after delete = %v, want ErrNotFound", err)
			}
			if err := b.DeleteSnapshot(id1); err != ErrNotFound {
				t.Errorf("DeleteSnapshot of missing id = %v, want ErrNotFound", err)
			}
		})
	}
}

// TestSelectedSnapshotRow verifies the single-row selection state.
func TestSelectedSnapshotRow(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			sel, err := b.SelectedSnapshot()
			if err != nil {
				t.Fatalf("SelectedSnapshot failed: %v", err)
			}
			if sel.GrubSnapshotID != nil {
				t.Errorf("initial selection = %v, want unset", *sel.GrubSnapshotID)
			}

			id, err := b.SaveSnapshot("GRUB_TIMEOUT=5\n", nil)
			if err != nil {
				t.Fatalf("SaveSnapshot failed: %v", err)
			}

			if err := b.SetSelectedSnapshot(&id); err != nil {
				t.Fatalf("SetSelectedSnapshot failed: %v", err)
			}
			sel, err = b.SelectedSnapshot()
			if err != nil {
				t.Fatalf("SelectedSnapshot failed: %v", err)
			}
			if sel.GrubSnapshotID == nil || *sel.GrubSnapshotID != id {
				t.Errorf("selection = %v, want %d", sel.GrubSnapshotID, id)
			}

			if err := b.SetSelectedSnapshot(nil); err != nil {
				t.Fatalf("SetSelectedSnapshot(nil) failed: %v", err)
			}
			sel, err = b.SelectedSnapshot()
			if err != nil {
				t.Fatalf("SelectedSnapshot failed: %v", err)
			}
			if sel.GrubSnapshotID != nil {
				t.Errorf("selection after reset = %v, want unset", *sel.GrubSnapshotID)
			}
		})
	}
}
