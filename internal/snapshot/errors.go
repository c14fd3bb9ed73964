// Package snapshot orchestrates GRUB config writes, menu regeneration,
// and snapshot history over a storage backend.
package snapshot

import (
	"errors"
	"fmt"
)

// ErrSnapshotSelected is returned when removing the effectively
// selected snapshot.
var ErrSnapshotSelected = errors.New("cannot remove the currently selected snapshot")

// ErrAlreadySelected is returned when selecting the effectively
// selected snapshot again.
var ErrAlreadySelected = errors.New("snapshot is already selected")

// UnknownKernelError is returned when a requested kernel title does
// not exist in the current boot menu.
type UnknownKernelError struct {
	Name string
}

func (e *UnknownKernelError) Error() string {
	return fmt.Sprintf("kernel entry '%s' is not found from grub configs", e.Name)
}
