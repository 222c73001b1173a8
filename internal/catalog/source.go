package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Source supplies the authoritative catalog and a cheap freshness check.
type Source interface {
	// Catalog fetches the full catalog and the stamp of the version it
	// decoded, which may be newer than an earlier VersionStamp result.
	Catalog(ctx context.Context) (*Catalog, string, error)

	// VersionStamp identifies the current catalog version. Two equal stamps
	// mean the catalog has not changed.
	VersionStamp(ctx context.Context) (string, error)
}

// FileSource reads the catalog from a JSON or CUE file on disk.
// The version stamp is the SHA-256 of the file content.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Catalog reads the file once, then decodes and hashes the same bytes.
func (s *FileSource) Catalog(ctx context.Context) (*Catalog, string, error) {
	data, err := s.read(ctx)
	if err != nil {
		return nil, "", err
	}
	cat, err := Decode(data, s.Path)
	if err != nil {
		return nil, "", err
	}
	return cat, stampOf(data), nil
}

// VersionStamp hashes the file content.
func (s *FileSource) VersionStamp(ctx context.Context) (string, error) {
	data, err := s.read(ctx)
	if err != nil {
		return "", err
	}
	return stampOf(data), nil
}

func (s *FileSource) read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return data, nil
}

func stampOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
