/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import "errors"

var (
	ErrInvalidFormat        = errors.New("invalid format")
	ErrUnrecognizedTag      = errors.New("unrecognized tag")
	ErrNoMatchingVariant    = errors.New("no matching variant")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrArityMismatch        = errors.New("arity mismatch")
)
