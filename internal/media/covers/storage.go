// Package covers extracts embedded cover art from audio files and stores it
// on disk alongside a BlurHash placeholder.
package covers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Storage manages cover files under one directory. Thread-safe.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates cover storage under {basePath}/covers.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	storagePath := filepath.Join(basePath, "covers")
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers directory: %w", err)
	}
	return &Storage{basePath: storagePath}, nil
}

// Path returns the cover file path for a book.
func (s *Storage) Path(bookID string) string {
	return filepath.Join(s.basePath, bookID+".jpg")
}

// Save stores cover data for a book.
func (s *Storage) Save(bookID string, data []byte) error {
	if bookID == "" {
		return fmt.Errorf("book ID cannot be empty")
	}
	if len(data) == 0 {
		return fmt.Errorf("cover data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.Path(bookID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cover file: %w", err)
	}
	return nil
}

// Get retrieves cover data for a book.
func (s *Storage) Get(bookID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.Path(bookID))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover file: %w", err)
	}
	return data, nil
}

// Exists reports whether a cover is stored for a book.
func (s *Storage) Exists(bookID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.Path(bookID))
	return err == nil
}

// Hash returns the SHA256 of the stored cover, for cache validation.
func (s *Storage) Hash(bookID string) (string, error) {
	data, err := s.Get(bookID)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
