package snapshot

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/zot/bootconfd/internal/config"
	"github.com/zot/bootconfd/internal/grub"
	"github.com/zot/bootconfd/internal/storage"
)

// ConfigData is the result of GetConfig.
type ConfigData struct {
	ValueMap       map[string]*grub.KeyValue `json:"value_map"`
	ValueList      []grub.Line               `json:"value_list"`
	ConfigDiff     *string                   `json:"config_diff"`
	SelectedKernel *string                   `json:"selected_kernel"`
}

// BootEntryData is the result of GetEntries.
type BootEntryData struct {
	Entries        []grub.MenuEntry `json:"entries"`
	SelectedKernel *string          `json:"selected_kernel"`
}

// SnapshotEntry is one snapshot plus its diff against the current
// on-disk config. Diff is nil when the texts match.
type SnapshotEntry struct {
	Snapshot *storage.Snapshot `json:"snapshot"`
	Diff     *string           `json:"diff"`
}

// SnapshotList is the result of ListSnapshots.
type SnapshotList struct {
	Snapshots []SnapshotEntry           `json:"snapshots"`
	Selected  *storage.SelectedSnapshot `json:"selected"`
}

// Service coordinates the GRUB file, the boot menu, external tools,
// and the snapshot store. Write operations mutate shared on-disk and
// persisted state with no optimistic-concurrency check, so every
// operation holds the service mutex for its full duration.
type Service struct {
	cfg   *config.Config
	store storage.Backend
	run   Runner
	mu    sync.Mutex
}

// New creates a service over the given storage backend and tool runner.
func New(cfg *config.Config, store storage.Backend, run Runner) *Service {
	return &Service{cfg: cfg, store: store, run: run}
}

// Initialize seeds the store on first run: one snapshot of the live
// on-disk configuration and an unset selection row.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.store.LatestSnapshot()
	if err == nil {
		return nil
	}
	if err != storage.ErrNotFound {
		return err
	}

	text, err := os.ReadFile(s.cfg.Grub.ConfigPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.cfg.Grub.ConfigPath, err)
	}
	if _, err := s.store.SaveSnapshot(string(text), nil); err != nil {
		return err
	}
	if err := s.store.SetSelectedSnapshot(nil); err != nil {
		return err
	}

	s.cfg.Log(0, "seeded initial snapshot from %s", s.cfg.Grub.ConfigPath)
	return nil
}

// GetConfig reads the current on-disk configuration, the boot menu
// selection, and the diff against the latest stored snapshot.
func (s *Service) GetConfig() (*ConfigData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := grub.ParseFile(s.cfg.Grub.ConfigPath)
	if err != nil {
		return nil, err
	}

	menu, err := grub.LoadMenu(s.cfg.Grub.MenuPath, s.cfg.Grub.EnvPath)
	if err != nil {
		return nil, err
	}

	latest, err := s.store.LatestSnapshot()
	if err != nil {
		return nil, err
	}

	diff, err := unifiedDiff(latest.GrubConfig, file.Render())
	if err != nil {
		return nil, err
	}

	return &ConfigData{
		ValueMap:       file.KeyValues(),
		ValueList:      file.Lines(),
		ConfigDiff:     diff,
		SelectedKernel: menu.SelectedTitle(),
	}, nil
}

// GetEntries reads the current boot menu entries and selection.
func (s *Service) GetEntries() (*BootEntryData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	menu, err := grub.LoadMenu(s.cfg.Grub.MenuPath, s.cfg.Grub.EnvPath)
	if err != nil {
		return nil, err
	}

	return &BootEntryData{
		Entries:        menu.Entries,
		SelectedKernel: menu.SelectedTitle(),
	}, nil
}

// SaveConfig validates the requested kernel against the boot menu,
// writes the configuration, regenerates the menu, optionally sets the
// default entry, and records a snapshot. A failure after the file
// write leaves the file changed; no rollback is performed.
func (s *Service) SaveConfig(lines []grub.Line, selectedKernel *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := grub.FromLines(lines)

	if selectedKernel != nil {
		menu, err := grub.LoadMenu(s.cfg.Grub.MenuPath, s.cfg.Grub.EnvPath)
		if err != nil {
			return err
		}
		if !menu.HasTitle(*selectedKernel) {
			return &UnknownKernelError{Name: *selectedKernel}
		}
		// GRUB only honors grub2-set-default when GRUB_DEFAULT=saved
		file.Set("GRUB_DEFAULT", "saved")
	}

	if err := s.writeAndRegenerate(file.Render(), selectedKernel); err != nil {
		return err
	}

	if _, err := s.store.SaveSnapshot(file.Render(), selectedKernel); err != nil {
		return err
	}
	return s.store.SetSelectedSnapshot(nil)
}

// ListSnapshots diffs every stored snapshot against the current
// on-disk config and reports the selection state.
func (s *Service) ListSnapshots() (*SnapshotList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := os.ReadFile(s.cfg.Grub.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.cfg.Grub.ConfigPath, err)
	}

	snapshots, err := s.store.ListSnapshots()
	if err != nil {
		return nil, err
	}

	selected, err := s.store.SelectedSnapshot()
	if err != nil {
		return nil, err
	}

	list := &SnapshotList{Selected: selected, Snapshots: make([]SnapshotEntry, 0, len(snapshots))}
	for _, snap := range snapshots {
		diff, err := unifiedDiff(snap.GrubConfig, string(current))
		if err != nil {
			return nil, err
		}
		list.Snapshots = append(list.Snapshots, SnapshotEntry{Snapshot: snap, Diff: diff})
	}

	return list, nil
}

// RemoveSnapshot deletes a snapshot. The effectively selected snapshot
// (the pinned one, or the latest when unpinned) cannot be removed.
func (s *Service) RemoveSnapshot(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, ok, err := s.effectiveSelectedID()
	if err != nil {
		return err
	}
	if ok && id == selected {
		return ErrSnapshotSelected
	}

	return s.store.DeleteSnapshot(id)
}

// SelectSnapshot activates a stored snapshot: rewrites the config from
// its text, reruns menu regeneration and default-entry selection, and
// pins the selection state to it.
func (s *Service) SelectSnapshot(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, ok, err := s.effectiveSelectedID()
	if err != nil {
		return err
	}
	if ok && id == selected {
		return ErrAlreadySelected
	}

	snap, err := s.store.GetSnapshot(id)
	if err != nil {
		return err
	}

	file, err := grub.Parse(snap.GrubConfig)
	if err != nil {
		return err
	}

	if err := s.writeAndRegenerate(file.Render(), snap.SelectedKernel); err != nil {
		return err
	}

	return s.store.SetSelectedSnapshot(&id)
}

// effectiveSelectedID resolves the pinned snapshot id, falling back to
// the latest snapshot's id. ok is false when no snapshots exist.
func (s *Service) effectiveSelectedID() (int64, bool, error) {
	selected, err := s.store.SelectedSnapshot()
	if err != nil {
		return 0, false, err
	}
	if selected.GrubSnapshotID != nil {
		return *selected.GrubSnapshotID, true, nil
	}

	latest, err := s.store.LatestSnapshot()
	if err == storage.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return latest.ID, true, nil
}

// writeAndRegenerate overwrites the config file, regenerates the boot
// menu, and sets the default entry when a kernel is given. The write
// triggers the file-change notification; watchers must not treat it
// as a separate user edit.
func (s *Service) writeAndRegenerate(text string, selectedKernel *string) error {
	if err := os.WriteFile(s.cfg.Grub.ConfigPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.cfg.Grub.ConfigPath, err)
	}
	s.cfg.Log(1, "config written to %s", s.cfg.Grub.ConfigPath)

	out, err := s.run.Run(s.cfg.Grub.MkconfigCmd, "-o", s.cfg.Grub.MenuPath)
	s.cfg.Log(1, "%s output: %s", s.cfg.Grub.MkconfigCmd, out)
	if err != nil {
		return err
	}

	if selectedKernel != nil {
		out, err := s.run.Run(s.cfg.Grub.SetDefault, *selectedKernel)
		s.cfg.Log(1, "%s output: %s", s.cfg.Grub.SetDefault, out)
		if err != nil {
			return err
		}
	}

	return nil
}

// unifiedDiff returns a line-based unified diff from a to b, or nil
// when the diff is empty after trimming.
func unifiedDiff(a, b string) (*string, error) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "snapshot",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return &text, nil
}
