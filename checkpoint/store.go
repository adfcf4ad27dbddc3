package checkpoint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"shapenet/ann"
)

var (
	ErrNotFound    = errors.New("checkpoint not found")
	ErrStorage     = errors.New("checkpoint storage failure")
	ErrInvalidSlot = errors.New("invalid checkpoint slot")
)

// Store is a durable mapping from (slot, epoch) to a network snapshot.
// Checkpoints under different keys are independent; a Save and a Load of the
// same key never observe a partially written snapshot.
type Store interface {
	// Save persists net under (slot, epoch), replacing any earlier snapshot
	// with the same key.
	Save(slot string, epoch int, net *ann.Network) error
	// Load rebuilds the network saved under (slot, epoch). It returns an
	// error matching ErrNotFound when no such checkpoint exists.
	Load(slot string, epoch int) (*ann.Network, error)
	// List returns the epochs saved under slot in ascending order.
	List(slot string) ([]int, error)
}

// SlotLister is implemented by stores that can enumerate their slots.
type SlotLister interface {
	Slots() ([]string, error)
}

// StorageError reports an I/O or decoding failure of a single checkpoint.
type StorageError struct {
	Op    string
	Slot  string
	Epoch int
	Err   error
}

func (e *StorageError) Error() string {
	if e.Epoch < 0 {
		return fmt.Sprintf("%s checkpoints of %q: %v", e.Op, e.Slot, e.Err)
	}
	return fmt.Sprintf("%s checkpoint %q epoch %d: %v", e.Op, e.Slot, e.Epoch, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func notFound(slot string, epoch int) error {
	return fmt.Errorf("slot %q epoch %d: %w", slot, epoch, ErrNotFound)
}

// SnapshotName is the human-readable reference of a checkpoint, used in
// run logs.
func SnapshotName(slot string, epoch int) string {
	return slot + "/" + epochFile(epoch)
}

func validate(slot string, epoch int) error {
	if slot == "" || slot == "." || slot == ".." || filepath.Base(slot) != slot || strings.ContainsAny(slot, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	if epoch < 0 {
		return fmt.Errorf("negative epoch %d", epoch)
	}
	return nil
}
