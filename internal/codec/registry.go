/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Constructor turns the content of a tagged item into its typed form.
type Constructor func(content cbor.RawMessage) (any, error)

// Registry maps CBOR tag numbers to constructors. Each tag has exactly one
// handler and selection is a pure function of the tag number. A registry is
// populated during package initialization and must be treated as read-only
// once concurrent decoding starts.
type Registry struct {
	handlers map[uint64]Constructor
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint64]Constructor)}
}

func (r *Registry) Register(num uint64, fn Constructor) error {
	if fn == nil {
		return fmt.Errorf("nil constructor for tag %d", num)
	}
	if _, dup := r.handlers[num]; dup {
		return fmt.Errorf("tag %d already registered", num)
	}
	r.handlers[num] = fn
	return nil
}

func (r *Registry) MustRegister(num uint64, fn Constructor) {
	if err := r.Register(num, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Knows(num uint64) bool {
	_, ok := r.handlers[num]
	return ok
}

// Dispatch hands content to the handler registered for the tag number.
func (r *Registry) Dispatch(num uint64, content cbor.RawMessage) (any, error) {
	fn, ok := r.handlers[num]
	if !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnrecognizedTag, num)
	}
	return fn(content)
}
