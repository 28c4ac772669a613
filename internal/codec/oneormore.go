/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import "fmt"

// OneOrMore holds a field that the wire format allows to be either a single
// item or an array of items. The decoded shape is recorded so re-encoding
// emits the same alternative.
type OneOrMore[T any] struct {
	Values []T
	array  bool
}

func One[T any](v T) OneOrMore[T] {
	return OneOrMore[T]{Values: []T{v}}
}

func Many[T any](vs ...T) OneOrMore[T] {
	return OneOrMore[T]{Values: vs, array: true}
}

func (o OneOrMore[T]) IsEmpty() bool {
	return len(o.Values) == 0
}

func (o OneOrMore[T]) MarshalCBOR() ([]byte, error) {
	switch {
	case len(o.Values) == 0:
		return nil, fmt.Errorf("%w: empty one-or-more field", ErrMissingRequiredField)
	case !o.array && len(o.Values) == 1:
		return Marshal(o.Values[0])
	default:
		return Marshal(o.Values)
	}
}

func (o *OneOrMore[T]) UnmarshalCBOR(data []byte) error {
	if len(data) > 0 && data[0]>>5 == 4 {
		var vs []T
		if err := Unmarshal(data, &vs); err != nil {
			return err
		}
		if len(vs) == 0 {
			return fmt.Errorf("%w: empty one-or-more field", ErrMissingRequiredField)
		}
		*o = OneOrMore[T]{Values: vs, array: true}
		return nil
	}
	var v T
	if err := Unmarshal(data, &v); err != nil {
		return err
	}
	*o = OneOrMore[T]{Values: []T{v}}
	return nil
}
