package reportstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps reports under a local directory.
type FileStore struct {
	root string
}

// NewFileStore constructs a store rooted at dir, creating it when missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("reportstore: empty dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: dir}, nil
}

// Put writes data under key, replacing any previous report.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_ = ctx
	_ = contentType
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Get reads the report stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrReportNotFound
	}
	return data, err
}

func (s *FileStore) path(key string) (string, error) {
	if s == nil || s.root == "" {
		return "", errors.New("reportstore: nil store")
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
