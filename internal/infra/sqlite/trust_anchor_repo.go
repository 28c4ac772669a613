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
	"time"

	"github.com/kentakayama/go-corim/internal/domain"
	"github.com/kentakayama/go-corim/internal/domain/model"
)

type TrustAnchorRepository struct {
	db *sql.DB
}

// NewTrustAnchorRepository creates a new instance of TrustAnchorRepository.
func NewTrustAnchorRepository(db *sql.DB) *TrustAnchorRepository {
	return &TrustAnchorRepository{db: db}
}

func (r *TrustAnchorRepository) GetAll(ctx context.Context) ([]model.TrustAnchor, error) {
	const query = `
		SELECT id, kid, name, public_key, created_at, revoked_at
		FROM trust_anchors
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anchors []model.TrustAnchor
	for rows.Next() {
		var a model.TrustAnchor
		var revokedAtUnix sql.NullInt64
		if err := rows.Scan(&a.ID, &a.KID, &a.Name, &a.PublicKey, &a.CreatedAt, &revokedAtUnix); err != nil {
			return nil, err
		}

		if revokedAtUnix.Valid {
			t := time.Unix(revokedAtUnix.Int64, 0).UTC()
			a.RevokedAt = &t
		}

		anchors = append(anchors, a)
	}

	return anchors, rows.Err()
}

func (r *TrustAnchorRepository) FindByKID(ctx context.Context, kid []byte) (*model.TrustAnchor, error) {
	a, err := r.FindByKIDIgnoreRevoked(ctx, kid)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	if a.RevokedAt != nil {
		return nil, domain.ErrRevoked
	}
	return a, nil
}

// FindByKIDIgnoreRevoked finds a trust anchor by KID without checking revoked
// status. It returns nil without an error when the anchor does not exist.
func (r *TrustAnchorRepository) FindByKIDIgnoreRevoked(ctx context.Context, kid []byte) (*model.TrustAnchor, error) {
	const query = `
		SELECT id, kid, name, public_key, created_at, revoked_at
		FROM trust_anchors
		WHERE kid = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, kid)
	var a model.TrustAnchor
	var revokedAtUnix sql.NullInt64
	if err := row.Scan(&a.ID, &a.KID, &a.Name, &a.PublicKey, &a.CreatedAt, &revokedAtUnix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	// Convert Unix timestamp to *time.Time
	if revokedAtUnix.Valid {
		t := time.Unix(revokedAtUnix.Int64, 0).UTC()
		a.RevokedAt = &t
	}

	return &a, nil
}

func (r *TrustAnchorRepository) Create(ctx context.Context, a *model.TrustAnchor) (int64, error) {
	const query = `
		INSERT INTO trust_anchors (kid, name, public_key, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, a.KID, a.Name, a.PublicKey, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// RevokeByKID marks a trust anchor as revoked by setting revoked_at to the
// given time as a Unix timestamp.
func (r *TrustAnchorRepository) RevokeByKID(ctx context.Context, kid []byte, revokedAt time.Time) error {
	const query = `
		UPDATE trust_anchors
		SET revoked_at = ?
		WHERE kid = ? AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, revokedAt.Unix(), kid)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
