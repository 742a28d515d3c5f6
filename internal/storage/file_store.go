package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore saves avatars to disk under a base directory. The server
// exposes that directory at /uploads/.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Dir returns the directory served at /uploads/.
func (f *FileStore) Dir() string {
	return f.basePath
}

// Put writes an avatar file under the base directory.
func (f *FileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target := filepath.Join(f.basePath, safeKey(key))
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// URL maps a key to its public path.
func (f *FileStore) URL(_ context.Context, key string) (string, error) {
	return "/uploads/" + safeKey(key), nil
}

// Delete removes an avatar file. Missing files are not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(f.basePath, safeKey(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func safeKey(key string) string {
	key = filepath.Base(key)
	key = strings.TrimSpace(key)
	if key == "" || key == "." {
		return "avatar"
	}
	return key
}
