package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists job file payloads on disk.
//
// Uploaded bytes always land in the incoming area first, outside any
// database transaction; only after the bytes are safely on disk does the
// state machine commit a transition referencing them. Finalized files are
// moved (promoted) to their permanent location by the job type handlers.
type Store struct {
	root string
}

// NewStore creates a file store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create file store root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Abs resolves a store-relative path to an absolute one.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// SaveIncoming streams an uploaded file into the incoming area of a job
// and returns its store-relative path.
func (s *Store) SaveIncoming(jobUUID, filename string, r io.Reader) (string, error) {
	base := sanitize(filepath.Base(filename))
	if base == "" || base == "." {
		return "", fmt.Errorf("invalid upload filename %q", filename)
	}

	rel := filepath.ToSlash(filepath.Join("incoming", jobUUID, base))
	dst := s.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create incoming directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create incoming file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write incoming file: %w", err)
	}
	return rel, nil
}

// Promote moves an incoming file to its permanent location and returns the
// new store-relative path.
func (s *Store) Promote(rel, destRel string) (string, error) {
	destRel = filepath.ToSlash(destRel)
	dst := s.Abs(destRel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.Rename(s.Abs(rel), dst); err != nil {
		return "", fmt.Errorf("failed to promote file: %w", err)
	}
	return destRel, nil
}

// Remove deletes a store-relative file or directory tree.
func (s *Store) Remove(rel string) error {
	return os.RemoveAll(s.Abs(rel))
}

// RemoveIncoming deletes all incoming files of a job. Called when a job
// reaches a terminal state or is re-armed.
func (s *Store) RemoveIncoming(jobUUID string) error {
	return os.RemoveAll(filepath.Join(s.root, "incoming", jobUUID))
}

// sanitize strips path separators and parent references from a filename.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
