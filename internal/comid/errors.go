/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"

	"github.com/kentakayama/go-corim/internal/codec"
)

// CDDL requires these maps to carry at least one populated entry; an empty
// one is a decode failure, not a best-effort value.
var (
	ErrEmptyClassMap    = fmt.Errorf("%w: a class-map must have at least one entry", codec.ErrMissingRequiredField)
	ErrEmptyEnvironment = fmt.Errorf("%w: an environment-map must have at least one entry", codec.ErrMissingRequiredField)
	ErrEmptyMval        = fmt.Errorf("%w: a measurement-values-map must have at least one entry", codec.ErrMissingRequiredField)
	ErrEmptyTriples     = fmt.Errorf("%w: a triples-map must have at least one entry", codec.ErrMissingRequiredField)
)
