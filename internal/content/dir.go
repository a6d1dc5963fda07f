package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/formledger/formledger/internal/registry"
)

// DirStore persists documents as files in a directory, one file per
// reference, sharded by the first two digest characters. Writes go through
// a temp file and rename so a crash never leaves a partial document behind
// a valid reference.
type DirStore struct {
	root string
}

// NewDirStore creates a directory-backed content store rooted at root.
func NewDirStore(root string) (*DirStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("content store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create content store root: %w", err)
	}
	return &DirStore{root: filepath.Clean(root)}, nil
}

// Put stores a document and returns its content-derived reference.
func (s *DirStore) Put(ctx context.Context, data []byte) (registry.Reference, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := Ref(data)
	digest, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	path := s.path(digest)
	if _, err := os.Stat(path); err == nil {
		// Content-addressed: identical bytes are already on disk.
		return ref, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "put-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("commit document: %w", err)
	}
	return ref, nil
}

// Get retrieves a document by reference.
func (s *DirStore) Get(ctx context.Context, ref registry.Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	digest, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (s *DirStore) path(digest string) string {
	return filepath.Join(s.root, digest[:2], digest)
}

var _ Store = (*DirStore)(nil)
