package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"visareview/internal"
)

// DocumentStore keeps uploaded scans under their content hash so the same
// file uploaded twice maps to the same cache entry.
type DocumentStore struct {
	dir string
}

func NewDocumentStore(dir string) *DocumentStore {
	return &DocumentStore{dir: dir}
}

func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *DocumentStore) Store(name string, content []byte) (internal.DocumentRow, error) {
	hash := HashContent(content)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return internal.DocumentRow{}, err
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".pdf"
	}
	path := filepath.Join(s.dir, hash+ext)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return internal.DocumentRow{}, err
		}
	}

	return internal.DocumentRow{Hash: hash, Name: name, Path: path}, nil
}

// Remove deletes stored files. Missing files are ignored.
func (s *DocumentStore) Remove(paths []string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
