package marker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps each marker as an empty flag file <dir>/<key>.
//
// Creation is durable: the flag file and its directory are synced before
// Create returns.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Create.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("marker: dir is required")
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the flag files.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the flag file path for key.
func (s *FileStore) Path(key Key) string {
	return filepath.Join(s.dir, string(key))
}

func (s *FileStore) Exists(_ context.Context, key Key) (bool, error) {
	if err := validate(key); err != nil {
		return false, fmt.Errorf("%w: %q", err, key)
	}
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) Create(_ context.Context, key Key) error {
	if err := validate(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("marker dir: %w", err)
	}
	f, err := os.OpenFile(s.Path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("create marker %s: %w", key, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync marker %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close marker %s: %w", key, err)
	}
	return fsyncDir(s.dir)
}

// List returns the keys of all flag files in the directory that carry the
// marker prefix. A missing directory yields no keys.
func (s *FileStore) List(_ context.Context) ([]Key, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var keys []Key
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		keys = append(keys, Key(e.Name()))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

var _ Store = (*FileStore)(nil)
