/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package store

import "errors"

var (
	ErrNotTrusted       = errors.New("no trust anchor matches the manifest signer")
	ErrUnsignedRejected = errors.New("unsigned manifests are not accepted")
	ErrDuplicateAnchor  = errors.New("trust anchor already registered")
	ErrDuplicateTagID   = errors.New("manifest carries duplicate tag identifiers")
)
