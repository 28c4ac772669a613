/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kentakayama/go-corim/internal/codec"
)

// OID is an absolute object identifier as bare BER arcs, without the ASN.1
// TLV header (RFC 9090 encoding).
type OID []byte

// ParseOID converts a dotted-decimal string into BER arcs.
func ParseOID(s string) (OID, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: oid needs at least two arcs", codec.ErrInvalidFormat)
	}

	arcs := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad oid arc %q", codec.ErrInvalidFormat, p)
		}
		arcs[i] = v
	}
	if arcs[0] > 2 || (arcs[0] < 2 && arcs[1] > 39) {
		return nil, fmt.Errorf("%w: bad oid root arcs %d.%d", codec.ErrInvalidFormat, arcs[0], arcs[1])
	}

	var out OID
	out = appendArc(out, arcs[0]*40+arcs[1])
	for _, arc := range arcs[2:] {
		out = appendArc(out, arc)
	}
	return out, nil
}

func MustParseOID(s string) OID {
	o, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return o
}

func appendArc(b OID, arc uint64) OID {
	if arc < 0x80 {
		return append(b, byte(arc))
	}
	var tmp [10]byte
	i := len(tmp)
	i--
	tmp[i] = byte(arc & 0x7f)
	for arc >>= 7; arc > 0; arc >>= 7 {
		i--
		tmp[i] = byte(arc&0x7f) | 0x80
	}
	return append(b, tmp[i:]...)
}

// Valid enforces arc encoding rules: non-empty, no truncated arc, and no
// redundant leading 0x80 padding inside an arc.
func (o OID) Valid() error {
	if len(o) == 0 {
		return fmt.Errorf("%w: empty oid", codec.ErrInvalidFormat)
	}
	start := true
	for i, b := range o {
		if start && b == 0x80 {
			return fmt.Errorf("%w: oid arc at offset %d has leading padding", codec.ErrInvalidFormat, i)
		}
		start = b&0x80 == 0
	}
	if !start {
		return fmt.Errorf("%w: truncated oid arc", codec.ErrInvalidFormat)
	}
	return nil
}

func (o OID) String() string {
	if o.Valid() != nil {
		return ""
	}
	var sb strings.Builder
	var arc uint64
	first := true
	for _, b := range o {
		arc = arc<<7 | uint64(b&0x7f)
		if b&0x80 != 0 {
			continue
		}
		if first {
			fmt.Fprintf(&sb, "%d.%d", arc/40, arc%40)
			first = false
		} else {
			sb.WriteByte('.')
			sb.WriteString(strconv.FormatUint(arc, 10))
		}
		arc = 0
	}
	return sb.String()
}

func (o OID) MarshalCBOR() ([]byte, error) {
	if err := o.Valid(); err != nil {
		return nil, err
	}
	return codec.Marshal([]byte(o))
}

func (o *OID) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := codec.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: oid must be a byte string", codec.ErrInvalidFormat)
	}
	oid := OID(b)
	if err := oid.Valid(); err != nil {
		return err
	}
	*o = oid
	return nil
}
