/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import (
	"fmt"
	"math"
)

// Label is a CBOR map key drawn from an open vocabulary: either an integer
// or a text string. Any other key type is a decode failure.
type Label struct {
	intVal  int64
	textVal string
	isText  bool
}

func Int64Label(v int64) Label {
	return Label{intVal: v}
}

func TextLabel(v string) Label {
	return Label{textVal: v, isText: true}
}

// LabelFromKey converts a decoded map key into a Label.
func LabelFromKey(key any) (Label, error) {
	switch k := key.(type) {
	case int64:
		return Int64Label(k), nil
	case uint64:
		if k > math.MaxInt64 {
			return Label{}, fmt.Errorf("%w: map key %d out of range", ErrInvalidFormat, k)
		}
		return Int64Label(int64(k)), nil
	case string:
		return TextLabel(k), nil
	default:
		return Label{}, fmt.Errorf("%w: map key must be int or text, got %T", ErrInvalidFormat, key)
	}
}

func (l Label) IsText() bool {
	return l.isText
}

func (l Label) Int() int64 {
	return l.intVal
}

func (l Label) Text() string {
	return l.textVal
}

// Key returns the value usable as a Go map key for encoding.
func (l Label) Key() any {
	if l.isText {
		return l.textVal
	}
	return l.intVal
}

func (l Label) String() string {
	if l.isText {
		return fmt.Sprintf("%q", l.textVal)
	}
	return fmt.Sprint(l.intVal)
}

func (l Label) MarshalCBOR() ([]byte, error) {
	return Marshal(l.Key())
}

func (l *Label) UnmarshalCBOR(data []byte) error {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: malformed label", ErrInvalidFormat)
	}
	label, err := LabelFromKey(v)
	if err != nil {
		return err
	}
	*l = label
	return nil
}
