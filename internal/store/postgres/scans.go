// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tailorfit/tailorfit/internal/scan"
)

// ScanStore is the Postgres-backed scan.ScanStore.
type ScanStore struct {
	db DBTX
}

// NewScanStore creates a scan repository over db.
func NewScanStore(db DBTX) *ScanStore {
	return &ScanStore{db: db}
}

func (s *ScanStore) Create(ctx context.Context, record *scan.Scan) error {
	query := `INSERT INTO scans
	          (id, user_id, object_key, model_key, style, color, material, features, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	modelKey := sql.NullString{String: record.ModelKey, Valid: record.ModelKey != ""}

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.ObjectKey, modelKey,
		record.Preferences.Style, record.Preferences.Color,
		record.Preferences.Material, record.Preferences.Features,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *ScanStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*scan.Scan, error) {
	query := `SELECT id, user_id, object_key, model_key, style, color, material, features,
	                 created_at, updated_at
	          FROM scans WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	scans := make([]*scan.Scan, 0)
	for rows.Next() {
		var (
			record   scan.Scan
			modelKey sql.NullString
		)
		err := rows.Scan(&record.ID, &record.UserID, &record.ObjectKey, &modelKey,
			&record.Preferences.Style, &record.Preferences.Color,
			&record.Preferences.Material, &record.Preferences.Features,
			&record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		record.ModelKey = modelKey.String
		scans = append(scans, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scans, nil
}
