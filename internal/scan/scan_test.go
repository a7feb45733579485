// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package scan

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	blobs, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	svc, err := NewService(NewMemoryScanStore(), blobs)
	require.NoError(t, err)
	return svc
}

func TestSubmit_StoresImageAndRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	prefs := Preferences{Style: "casual", Color: "navy", Material: "wool", Features: "pockets"}
	record, err := svc.Submit(ctx, userID, "body.png", strings.NewReader("fake-png-bytes"), prefs)
	require.NoError(t, err)

	assert.Equal(t, userID, record.UserID)
	assert.Contains(t, record.ObjectKey, "scans/")
	assert.True(t, strings.HasSuffix(record.ObjectKey, ".png"))
	assert.Equal(t, prefs, record.Preferences)
	assert.Empty(t, record.ModelKey)

	// The image is readable back under the generated key.
	rc, err := svc.blobs.Open(ctx, record.ObjectKey)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(data))

	scans, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, record.ID, scans[0].ID)
}

func TestSubmit_GeneratesUniqueKeys(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	a, err := svc.Submit(ctx, userID, "scan.jpg", strings.NewReader("a"), Preferences{})
	require.NoError(t, err)
	b, err := svc.Submit(ctx, userID, "scan.jpg", strings.NewReader("b"), Preferences{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ObjectKey, b.ObjectKey)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubmit_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, uuid.New(), "", strings.NewReader("x"), Preferences{})
	assert.ErrorIs(t, err, ErrEmptyScan)

	_, err = svc.Submit(ctx, uuid.New(), "scan.gif", strings.NewReader("x"), Preferences{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = svc.Submit(ctx, uuid.New(), "scan.png", nil, Preferences{})
	assert.ErrorIs(t, err, ErrEmptyScan)
}

func TestList_NewestFirstAndScopedToUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first, err := svc.Submit(ctx, alice, "a.png", strings.NewReader("1"), Preferences{})
	require.NoError(t, err)
	second, err := svc.Submit(ctx, alice, "b.png", strings.NewReader("2"), Preferences{})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, bob, "c.png", strings.NewReader("3"), Preferences{})
	require.NoError(t, err)

	scans, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, second.ID, scans[0].ID)
	assert.Equal(t, first.ID, scans[1].ID)
}

func TestDiskStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	err = store.Put(context.Background(), "../outside.png", "image/png", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestDiskStore_OpenMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "scans/nope.png")
	assert.ErrorIs(t, err, ErrScanNotFound)
}
