// Package images keeps product pictures on the local filesystem.
package images

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideStore rejects references that do not point into the image
// directory.
var ErrOutsideStore = errors.New("image reference is outside the image directory")

// FileStore writes images under dir. References handed out are paths joined
// with dir; placeholder is the shared default picture and is never removed.
type FileStore struct {
	dir         string
	placeholder string
}

func NewFileStore(dir, placeholder string) *FileStore {
	return &FileStore{dir: dir, placeholder: placeholder}
}

func (s *FileStore) Placeholder() string {
	return s.placeholder
}

// Save copies r into a new uniquely named file and returns its reference.
func (s *FileStore) Save(r io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ref := filepath.Join(s.dir, uuid.NewString()+ext)

	f, err := os.OpenFile(ref, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(ref)
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(ref)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return ref, nil
}

// Owns reports whether ref is the placeholder or a file directly managed
// under the image directory.
func (s *FileStore) Owns(ref string) bool {
	if ref == "" {
		return false
	}
	if filepath.Clean(ref) == filepath.Clean(s.placeholder) {
		return true
	}
	return s.inside(ref)
}

func (s *FileStore) inside(ref string) bool {
	rel, err := filepath.Rel(filepath.Clean(s.dir), filepath.Clean(ref))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Release removes the file behind ref. The placeholder, an empty reference
// and an already missing file are all no-ops. Anything outside the image
// directory is refused with ErrOutsideStore.
func (s *FileStore) Release(ref string) error {
	if ref == "" || filepath.Clean(ref) == filepath.Clean(s.placeholder) {
		return nil
	}
	if !s.inside(ref) {
		return fmt.Errorf("release %s: %w", ref, ErrOutsideStore)
	}

	if err := os.Remove(ref); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

// Resolve maps an empty reference to the placeholder.
func (s *FileStore) Resolve(ref string) string {
	if ref == "" {
		return s.placeholder
	}
	return ref
}
