/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Manifest represents a CoRIM stored in DB. Manifest holds the original
// serialization so the stored bytes stay verifiable.
type Manifest struct {
	ID            int64
	CorimID       string
	Profile       string
	Manifest      []byte
	Signed        bool
	TrustAnchorID *int64
	CreatedAt     time.Time
	NotAfter      *time.Time
}
