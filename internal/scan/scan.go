// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package scan persists uploaded body-scan images and the product
// preferences submitted with them. Image bytes go to a BlobStore (local disk
// or S3); metadata rows go to a ScanStore.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyScan is returned when no scan file was submitted.
	ErrEmptyScan = errors.New("no scan file submitted")

	// ErrUnsupportedFormat is returned for scan files that are not PNG or JPEG.
	ErrUnsupportedFormat = errors.New("unsupported scan format")

	// ErrScanNotFound is returned when a scan record does not exist.
	ErrScanNotFound = errors.New("scan not found")
)

// Preferences is the fixed product-preference record attached to a scan.
// Each field is free-form text and may be empty.
type Preferences struct {
	Style    string `json:"style,omitempty"`
	Color    string `json:"color,omitempty"`
	Material string `json:"material,omitempty"`
	Features string `json:"features,omitempty"`
}

// Scan is one uploaded body scan with its preferences.
type Scan struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ObjectKey string    `json:"object_key"`

	// ModelKey points at a generated 3D model for this scan. Model
	// generation happens outside this service; the key stays empty here.
	ModelKey string `json:"model_key,omitempty"`

	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ScanStore persists scan metadata.
type ScanStore interface {
	// Create inserts a new scan record.
	Create(ctx context.Context, s *Scan) error

	// ListByUser returns a user's scans, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Scan, error)
}

// BlobStore persists raw scan image bytes under opaque object keys.
type BlobStore interface {
	// Put stores the object, overwriting any previous content for key.
	Put(ctx context.Context, key string, contentType string, body io.Reader) error

	// Open streams the object back. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Service coordinates scan submission.
type Service struct {
	scans ScanStore
	blobs BlobStore
}

// NewService creates a scan service.
func NewService(scans ScanStore, blobs BlobStore) (*Service, error) {
	if scans == nil {
		return nil, fmt.Errorf("scan store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	return &Service{scans: scans, blobs: blobs}, nil
}

// Submit stores an uploaded scan image under a fresh UUID object key and
// records the associated preferences. The original client filename is used
// only to derive the format; the stored name is server-chosen.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, filename string, body io.Reader, prefs Preferences) (*Scan, error) {
	if filename == "" || body == nil {
		return nil, ErrEmptyScan
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := contentTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	id := uuid.New()
	now := time.Now().UTC()
	record := &Scan{
		ID:          id,
		UserID:      userID,
		ObjectKey:   fmt.Sprintf("scans/%s/%s%s", userID, id, ext),
		Preferences: prefs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.blobs.Put(ctx, record.ObjectKey, contentType, body); err != nil {
		return nil, fmt.Errorf("store scan image: %w", err)
	}
	if err := s.scans.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store scan record: %w", err)
	}
	return record, nil
}

// List returns the user's scans, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Scan, error) {
	return s.scans.ListByUser(ctx, userID)
}

// MemoryScanStore is an in-memory ScanStore for development and testing.
type MemoryScanStore struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID][]*Scan
}

// NewMemoryScanStore creates an empty in-memory scan store.
func NewMemoryScanStore() *MemoryScanStore {
	return &MemoryScanStore{byUser: make(map[uuid.UUID][]*Scan)}
}

func (s *MemoryScanStore) Create(ctx context.Context, scan *Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *scan
	s.byUser[c.UserID] = append([]*Scan{&c}, s.byUser[c.UserID]...)
	return nil
}

func (s *MemoryScanStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scans := s.byUser[userID]
	out := make([]*Scan, len(scans))
	copy(out, scans)
	return out, nil
}
