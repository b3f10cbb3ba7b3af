package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemBackend stores objects as files under a base directory.
// Keys map to {basePath}/{key}.
type FilesystemBackend struct {
	basePath string
}

// NewFilesystemBackend creates a filesystem backend rooted at basePath.
func NewFilesystemBackend(basePath string) *FilesystemBackend {
	return &FilesystemBackend{basePath: basePath}
}

// resolve validates the key and maps it to a path inside basePath.
func (f *FilesystemBackend) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("invalid key: empty")
	}
	if strings.Contains(key, "\x00") {
		return "", fmt.Errorf("invalid key: null byte not allowed")
	}
	if filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid key: absolute paths not allowed")
	}

	clean := filepath.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: path traversal not allowed")
	}

	full := filepath.Join(f.basePath, clean)
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(f.basePath)) {
		return "", fmt.Errorf("invalid key: escapes base directory")
	}

	return full, nil
}

// Put writes the object, creating parent directories as needed.
func (f *FilesystemBackend) Put(ctx context.Context, key string, r io.Reader) error {
	full, err := f.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	file, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// Get opens the object for reading. The caller must close it.
func (f *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := f.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}

	return file, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (f *FilesystemBackend) Delete(ctx context.Context, key string) error {
	full, err := f.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}

	return nil
}

// Exists reports whether the object is present.
func (f *FilesystemBackend) Exists(ctx context.Context, key string) (bool, error) {
	full, err := f.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking file: %w", err)
	}

	return true, nil
}
