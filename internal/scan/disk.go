// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package scan

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore is a BlobStore backed by a local uploads directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates a disk-backed blob store rooted at dir, creating the
// directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("uploads directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &DiskStore{root: dir}, nil
}

// resolve maps an object key onto a path under the root, rejecting keys that
// would escape it.
func (d *DiskStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	p := filepath.Join(d.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

func (d *DiskStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	// Write to a temp file in the same directory, then rename: a crashed
	// upload never leaves a partial object visible under the final key.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("publish object: %w", err)
	}
	return nil
}

func (d *DiskStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}
