// Package fsutil provides lock-protected file operations shared by every
// component that writes into a project's state directory.
package fsutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteFileWithLock replaces the content of path while holding an exclusive
// lock on it. Readers going through ReadFileWithLock never observe a partial
// write. When the file already holds data the write is skipped, so the
// modification time only moves when the content changes.
//
// It reports whether the file was written.
func WriteFileWithLock(path string, data []byte) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	lock := flock.New(path, flock.SetPermissions(0644))
	if err := lock.Lock(); err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	current, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// ReadFileWithLock reads path under a shared lock
func ReadFileWithLock(path string) ([]byte, error) {
	if !Exists(path) {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}

	lock := flock.New(path)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	return os.ReadFile(path)
}

// WriteExecutable writes a script and marks it executable
func WriteExecutable(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, 0755)
}

// Exists checks if a path exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RemoveIfExists deletes path, treating a missing file as success
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// FileHash returns the hex sha256 of a file's content
func FileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashString returns the hex sha256 of s
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
