package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tour-engine/internal/tour/models"
)

// ============================================================
// File Storage
// ============================================================

var ErrInvalidRef = errors.New("invalid asset reference")

// Store keeps panoramas, models and thumbnails under one root directory.
// References are slash-separated paths relative to the root.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// Path resolves a reference inside the root, rejecting escapes.
func (s *Store) Path(ref string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(strings.TrimPrefix(ref, "/")))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("%q: %w", ref, ErrInvalidRef)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *Store) PanoramaRef(propertyID, roomID, ext string) string {
	return filepath.ToSlash(filepath.Join(propertyID, "panoramas", roomID+ext))
}

func (s *Store) ModelRef(propertyID, modelID, ext string) string {
	return filepath.ToSlash(filepath.Join(propertyID, "models", modelID+ext))
}

func (s *Store) ThumbnailRef(propertyID, modelID string) string {
	return filepath.ToSlash(filepath.Join(propertyID, "thumbnails", modelID+".jpg"))
}

func (s *Store) EnsureDir(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir asset dir: %w", err)
	}
	return nil
}

func (s *Store) Read(ref string) ([]byte, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("asset %s: %w", ref, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", ref, err)
	}
	return data, nil
}

func (s *Store) Exists(ref string) bool {
	path, err := s.Path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Store) SaveFile(ref string, data []byte) error {
	if err := s.EnsureDir(ref); err != nil {
		return err
	}
	path, _ := s.Path(ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write asset %s: %w", ref, err)
	}
	return nil
}
