/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"time"

	"github.com/kentakayama/go-corim/internal/domain/model"
)

// TrustAnchorRepository defines the interface for trust anchor persistence.
type TrustAnchorRepository interface {
	Create(ctx context.Context, a *model.TrustAnchor) (int64, error)
	FindByKID(ctx context.Context, kid []byte) (*model.TrustAnchor, error)
	FindByKIDIgnoreRevoked(ctx context.Context, kid []byte) (*model.TrustAnchor, error)
	RevokeByKID(ctx context.Context, kid []byte, revokedAt time.Time) error
}

// ManifestRepository defines the interface for CoRIM persistence.
type ManifestRepository interface {
	Create(ctx context.Context, m *model.Manifest) (int64, error)
	FindByID(ctx context.Context, id int64) (*model.Manifest, error)
	FindLatestByCorimID(ctx context.Context, corimID string) (*model.Manifest, error)
}
