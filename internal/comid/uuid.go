/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kentakayama/go-corim/internal/codec"
)

// UUID is a 16-byte RFC 4122 identifier carried as a CBOR byte string.
type UUID uuid.UUID

func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
	}
	return UUID(u), nil
}

func UUIDFromBytes(b []byte) (UUID, error) {
	u, err := uuid.FromBytes(b)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: uuid must be 16 bytes, got %d", codec.ErrInvalidFormat, len(b))
	}
	return UUID(u), nil
}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}

func (u UUID) Bytes() []byte {
	b := [16]byte(u)
	return b[:]
}

func (u UUID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(u.Bytes())
}

func (u *UUID) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := codec.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: uuid must be a byte string", codec.ErrInvalidFormat)
	}
	parsed, err := UUIDFromBytes(b)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
