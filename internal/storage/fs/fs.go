package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps media files on the local disk under a single root.
// All paths passed in are prefixes produced by the mediapath package,
// relative to that root.
type Storage struct {
	rootPath string
}

func New(rootPath string) (*Storage, error) {
	// Use filepath.Clean to prevent path traversal issues like "media/../"
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}

	return &Storage{rootPath: p}, nil
}

// fullPath joins a relative path to the root, refusing anything that would
// escape it.
func (s *Storage) fullPath(relativePath string) (string, error) {
	full := filepath.Join(s.rootPath, filepath.FromSlash(relativePath))
	if full != s.rootPath && !strings.HasPrefix(full, s.rootPath+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes storage root: %s", relativePath)
	}
	return full, nil
}

// Save writes a file at the given relative path, lazily creating the
// directory chain above it.
func (s *Storage) Save(fileData io.Reader, relativePath string) error {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create subdirectories: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, fileData); err != nil {
		// If the copy fails, clean up the partial file. Best effort.
		os.Remove(fullPath)
		return fmt.Errorf("failed to copy file data: %w", err)
	}

	return nil
}

// Read opens a file for reading given its relative path.
func (s *Storage) Read(relativePath string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("media file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists reports whether a file is present at the relative path.
func (s *Storage) Exists(relativePath string) (bool, error) {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat file: %w", err)
}

// DeleteFile removes a single file. A file that is already gone is not an
// error: pruning must stay idempotent under re-delivery.
func (s *Storage) DeleteFile(relativePath string) error {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DeletePrefix removes everything under a path prefix (one attachment's
// directory, or its responsive-images sub-directory).
func (s *Storage) DeletePrefix(relativePath string) error {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete directory: %w", err)
	}
	return nil
}
