package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"shapenet/ann"
)

const (
	filePrefix = "epoch_"
	fileSuffix = ".ckpt"
)

func epochFile(epoch int) string {
	return filePrefix + strconv.Itoa(epoch) + fileSuffix
}

// FileStore keeps one file per checkpoint under <root>/<slot>/epoch_<n>.ckpt.
// Snapshots are written to a temporary file and renamed into place, so a
// concurrent Load sees either the old or the new snapshot, never a torn one.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(slot string, epoch int) string {
	return filepath.Join(s.root, slot, epochFile(epoch))
}

func (s *FileStore) Save(slot string, epoch int, net *ann.Network) error {
	if err := validate(slot, epoch); err != nil {
		return err
	}
	dir := filepath.Join(s.root, slot)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}

	f, err := os.CreateTemp(dir, ".epoch-*.tmp")
	if err != nil {
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}

	if err := Encode(f, net); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}
	if err := os.Rename(tmp, s.path(slot, epoch)); err != nil {
		os.Remove(tmp)
		return &StorageError{Op: "save", Slot: slot, Epoch: epoch, Err: err}
	}
	return nil
}

func (s *FileStore) Load(slot string, epoch int) (*ann.Network, error) {
	if err := validate(slot, epoch); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(slot, epoch))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(slot, epoch)
	}
	if err != nil {
		return nil, &StorageError{Op: "load", Slot: slot, Epoch: epoch, Err: err}
	}
	defer f.Close()

	net, err := Decode(f)
	if err != nil {
		return nil, &StorageError{Op: "load", Slot: slot, Epoch: epoch, Err: err}
	}
	return net, nil
}

func (s *FileStore) List(slot string) ([]int, error) {
	if err := validate(slot, 0); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "list", Slot: slot, Epoch: -1, Err: err}
	}

	var epochs []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		epoch, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil || epoch < 0 {
			continue
		}
		epochs = append(epochs, epoch)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// Slots lists every slot that has a directory under the store root.
func (s *FileStore) Slots() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint root: %w", err)
	}
	var slots []string
	for _, e := range entries {
		if e.IsDir() {
			slots = append(slots, e.Name())
		}
	}
	return slots, nil
}
