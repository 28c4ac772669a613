/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// Extension is one unrecognized map entry, kept verbatim.
type Extension struct {
	Key   Label
	Value cbor.RawMessage
}

// Extensions is the ordered set of unrecognized entries of an extensible
// map. Entries are held in canonical key order, which is the order a
// deterministic encoder emits them in.
type Extensions []Extension

func (e Extensions) IsEmpty() bool {
	return len(e) == 0
}

func (e Extensions) Get(key Label) (cbor.RawMessage, bool) {
	for _, ext := range e {
		if ext.Key == key {
			return ext.Value, true
		}
	}
	return nil, false
}

// Set inserts or replaces an entry, keeping canonical order.
func (e *Extensions) Set(key Label, value cbor.RawMessage) {
	for i, ext := range *e {
		if ext.Key == key {
			(*e)[i].Value = value
			return
		}
	}
	*e = append(*e, Extension{Key: key, Value: value})
	sortExtensions(*e)
}

func (e Extensions) Equal(other Extensions) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if e[i].Key != other[i].Key || !bytes.Equal(e[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

func sortExtensions(exts Extensions) {
	sort.SliceStable(exts, func(i, j int) bool {
		ki, _ := exts[i].Key.MarshalCBOR()
		kj, _ := exts[j].Key.MarshalCBOR()
		return bytes.Compare(ki, kj) < 0
	})
}

// SplitMap decodes a CBOR map, storing the raw value of each recognized
// integer key into fields and collecting every other entry as an extension.
// Recognized fields that are absent from the map are left nil.
func SplitMap(data []byte, fields map[int64]*cbor.RawMessage) (Extensions, error) {
	var m map[any]cbor.RawMessage
	if err := Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: expected a map", ErrInvalidFormat)
	}

	var exts Extensions
	for k, v := range m {
		label, err := LabelFromKey(k)
		if err != nil {
			return nil, err
		}
		if !label.IsText() {
			if slot, ok := fields[label.Int()]; ok {
				*slot = v
				continue
			}
		}
		exts = append(exts, Extension{Key: label, Value: v})
	}
	sortExtensions(exts)
	return exts, nil
}

// JoinMap encodes recognized fields and extensions back into a single map.
// The deterministic encoder orders all entries canonically, so known and
// extension keys interleave exactly as they do on the wire.
func JoinMap(fields map[int64]cbor.RawMessage, exts Extensions) ([]byte, error) {
	m := make(map[any]cbor.RawMessage, len(fields)+len(exts))
	for k, v := range fields {
		if v == nil {
			continue
		}
		m[k] = v
	}
	for _, ext := range exts {
		if _, clash := m[ext.Key.Key()]; clash {
			return nil, fmt.Errorf("%w: extension key %s collides with a known field", ErrInvalidFormat, ext.Key)
		}
		m[ext.Key.Key()] = ext.Value
	}
	return Marshal(m)
}
