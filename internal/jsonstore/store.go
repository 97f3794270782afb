// Package jsonstore reads and writes whole JSON documents at fixed file paths.
//
// Absent or empty files read as the caller's default. A file that exists but
// does not parse also yields the default, together with an error wrapping
// ErrCorrupt, so callers can preserve the bad bytes before overwriting them.
// Writes go through a temp file in the same directory followed by a rename,
// so a reader never observes a truncated document.
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrCorrupt marks a document that exists on disk but is not valid JSON.
var ErrCorrupt = errors.New("corrupt json document")

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// EnsurePathExists creates the parent directory and an empty "{}" document
// when path does not exist yet. It is a no-op for existing files.
func EnsurePathExists(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString("{}\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("seed %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Read decodes the document at path into a new T. Missing and empty files
// return def with a nil error.
func Read[T any](path string, def T) (T, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return def, nil
		}
		return def, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return def, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return def, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}
	return out, nil
}

// Write marshals obj and atomically replaces the document at path.
func Write(path string, obj any) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

// Backup copies the document at path to "<path>.corrupt-<suffix>" and
// returns the backup location.
func Backup(path, suffix string) (string, error) {
	// #nosec G304 -- path comes from operator configuration.
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close() //nolint:errcheck // read-only handle

	dest := fmt.Sprintf("%s.corrupt-%s", path, suffix)
	dst, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	return dest, nil
}

// syncDir is best-effort; some platforms refuse fsync on directories.
func syncDir(dir string) {
	f, err := os.Open(dir) // #nosec G304 -- parent of a configured path.
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
