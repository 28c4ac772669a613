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

// Both modes are built once at init and never replaced, so concurrent
// encode/decode calls share them without synchronization.
var (
	em cbor.EncMode
	dm cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeUnix
	encOpts.TimeTag = cbor.EncTagRequired
	var err error
	em, err = encOpts.EncMode()
	if err != nil {
		panic(err)
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	dm, err = decOpts.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v using RFC 8949 Core Deterministic Encoding: shortest
// integer forms, bytewise-sorted map keys, no indefinite lengths. Every
// encoder in this module goes through here so that re-encoding a decoded
// canonical document reproduces it byte for byte.
func Marshal(v any) ([]byte, error) {
	return em.Marshal(v)
}

// Unmarshal decodes data, rejecting duplicate map keys and
// indefinite-length items.
func Unmarshal(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// Nested holds a value that is transported as a bstr-wrapped CBOR item
// (CDDL "bstr .cbor T").
type Nested[T any] struct {
	Value T
}

func (n *Nested[T]) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: expected bstr-wrapped item", ErrInvalidFormat)
	}
	return Unmarshal(raw, &n.Value)
}

func (n Nested[T]) MarshalCBOR() ([]byte, error) {
	raw, err := Marshal(n.Value)
	if err != nil {
		return nil, err
	}
	return Marshal(raw)
}

// IsTag reports whether data starts with a CBOR tag head (major type 6).
func IsTag(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == 6
}

// SplitTag separates a tagged item into its tag number and content bytes.
func SplitTag(data []byte) (uint64, cbor.RawMessage, error) {
	if !IsTag(data) {
		return 0, nil, fmt.Errorf("%w: expected a tagged item", ErrInvalidFormat)
	}
	var rt cbor.RawTag
	if err := Unmarshal(data, &rt); err != nil {
		return 0, nil, fmt.Errorf("%w: malformed tagged item", ErrInvalidFormat)
	}
	return rt.Number, rt.Content, nil
}

// BuildTag wraps already-encoded content in the given tag number.
func BuildTag(num uint64, content cbor.RawMessage) ([]byte, error) {
	return Marshal(cbor.RawTag{Number: num, Content: content})
}

// TaggedUnknown preserves a structurally legal but unrecognized tagged item
// verbatim so it survives a decode/encode cycle untouched.
type TaggedUnknown struct {
	Number uint64
	Raw    cbor.RawMessage
}

func (t TaggedUnknown) MarshalCBOR() ([]byte, error) {
	if len(t.Raw) == 0 {
		return nil, fmt.Errorf("%w: empty passthrough item", ErrInvalidFormat)
	}
	return t.Raw, nil
}

func (t *TaggedUnknown) UnmarshalCBOR(data []byte) error {
	num, _, err := SplitTag(data)
	if err != nil {
		return err
	}
	t.Number = num
	t.Raw = append([]byte(nil), data...)
	return nil
}
