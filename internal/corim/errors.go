/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package corim

import "errors"

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrKeyMismatch          = errors.New("key does not match the declared algorithm")
	ErrVerificationFailed   = errors.New("signature verification failed")
)
