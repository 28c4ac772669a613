/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kentakayama/go-corim/internal/domain/model"
)

// ManifestRepository handles CoRIM persistence.
type ManifestRepository struct {
	db *sql.DB
}

func NewManifestRepository(db *sql.DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

func (r *ManifestRepository) FindByID(ctx context.Context, id int64) (*model.Manifest, error) {
	const q = `
		SELECT id, corim_id, profile, manifest, signed, trust_anchor_id, created_at, not_after
		FROM manifests
		WHERE id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	return scanManifest(row)
}

// FindLatestByCorimID returns the most recently stored manifest for a CoRIM id.
func (r *ManifestRepository) FindLatestByCorimID(ctx context.Context, corimID string) (*model.Manifest, error) {
	const q = `
		SELECT id, corim_id, profile, manifest, signed, trust_anchor_id, created_at, not_after
		FROM manifests
		WHERE corim_id = ?
		ORDER BY id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, corimID)
	return scanManifest(row)
}

// Create inserts a new manifest and returns the inserted id.
func (r *ManifestRepository) Create(ctx context.Context, m *model.Manifest) (int64, error) {
	const q = `
		INSERT INTO manifests (corim_id, profile, manifest, signed, trust_anchor_id, created_at, not_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var anchorID sql.NullInt64
	if m.TrustAnchorID != nil {
		anchorID = sql.NullInt64{Int64: *m.TrustAnchorID, Valid: true}
	}
	var notAfter sql.NullTime
	if m.NotAfter != nil {
		notAfter = sql.NullTime{Time: *m.NotAfter, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, m.CorimID, m.Profile, m.Manifest, m.Signed, anchorID, m.CreatedAt, notAfter)
	if err != nil {
		return 0, fmt.Errorf("insert manifest: %w", err)
	}
	return res.LastInsertId()
}

func scanManifest(row *sql.Row) (*model.Manifest, error) {
	var m model.Manifest
	var anchorID sql.NullInt64
	var notAfter sql.NullTime
	if err := row.Scan(&m.ID, &m.CorimID, &m.Profile, &m.Manifest, &m.Signed, &anchorID, &m.CreatedAt, &notAfter); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("manifest scan: %w", err)
	}
	if anchorID.Valid {
		m.TrustAnchorID = &anchorID.Int64
	}
	if notAfter.Valid {
		t := notAfter.Time.UTC()
		m.NotAfter = &t
	}
	return &m, nil
}
