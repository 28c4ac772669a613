/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// TrustAnchor represents a COSE public key accepted for manifest signatures.
type TrustAnchor struct {
	ID        int64
	KID       []byte
	Name      string
	PublicKey []byte
	CreatedAt time.Time
	RevokedAt *time.Time
}
