package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage is a SQLite storage backend.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// init creates the necessary tables.
func (s *SQLiteStorage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS grub2_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			grub_config TEXT NOT NULL,
			selected_kernel TEXT,
			created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS selected_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			grub2_snapshot_id INTEGER REFERENCES grub2_snapshot(id)
		);
	`)
	return err
}

// SaveSnapshot appends a snapshot and returns its id.
func (s *SQLiteStorage) SaveSnapshot(grubConfig string, selectedKernel *string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO grub2_snapshot (grub_config, selected_kernel)
		VALUES (?, ?)
	`, grubConfig, selectedKernel)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestSnapshot returns the most recently created snapshot.
func (s *SQLiteStorage) LatestSnapshot() (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, grub_config, selected_kernel, created
		FROM grub2_snapshot ORDER BY id DESC LIMIT 1
	`)
	return scanSnapshot(row)
}

// GetSnapshot returns the snapshot with the given id.
func (s *SQLiteStorage) GetSnapshot(id int64) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, grub_config, selected_kernel, created
		FROM grub2_snapshot WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.GrubConfig, &snap.SelectedKernel, &snap.Created)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots returns all snapshots in ascending id order.
func (s *SQLiteStorage) ListSnapshots() ([]*Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, grub_config, selected_kernel, created
		FROM grub2_snapshot ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.GrubConfig, &snap.SelectedKernel, &snap.Created); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, &snap)
	}

	return snapshots, rows.Err()
}

// DeleteSnapshot removes the snapshot with the given id.
func (s *SQLiteStorage) DeleteSnapshot(id int64) error {
	res, err := s.db.Exec("DELETE FROM grub2_snapshot WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SelectedSnapshot returns the selection state row. An absent row
// reads as an unset selection.
func (s *SQLiteStorage) SelectedSnapshot() (*SelectedSnapshot, error) {
	var sel SelectedSnapshot
	err := s.db.QueryRow(`
		SELECT grub2_snapshot_id FROM selected_snapshot WHERE id = 1
	`).Scan(&sel.GrubSnapshotID)
	if err == sql.ErrNoRows {
		return &SelectedSnapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// SetSelectedSnapshot updates the selection state row.
func (s *SQLiteStorage) SetSelectedSnapshot(id *int64) error {
	_, err := s.db.Exec(`
		INSERT INTO selected_snapshot (id, grub2_snapshot_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET grub2_snapshot_id = excluded.grub2_snapshot_id
	`, id)
	return err
}

// Close closes the storage backend.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
