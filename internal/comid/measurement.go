/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/eat"
	"github.com/veraison/swid"

	"github.com/kentakayama/go-corim/internal/codec"
)

// Measurement pairs an optional measured-element key with its values bag.
type Measurement struct {
	Key          *Mkey
	Val          Mval
	AuthorizedBy []CryptoKey
}

func (m Measurement) MarshalCBOR() ([]byte, error) {
	fields := make(map[int64]cbor.RawMessage, 3)
	if m.Key != nil {
		raw, err := codec.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		fields[0] = raw
	}
	raw, err := codec.Marshal(m.Val)
	if err != nil {
		return nil, err
	}
	fields[1] = raw
	if len(m.AuthorizedBy) > 0 {
		raw, err := codec.Marshal(m.AuthorizedBy)
		if err != nil {
			return nil, err
		}
		fields[2] = raw
	}
	return codec.JoinMap(fields, nil)
}

func (m *Measurement) UnmarshalCBOR(data []byte) error {
	var keyRaw, valRaw, authRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &keyRaw,
		1: &valRaw,
		2: &authRaw,
	})
	if err != nil {
		return fmt.Errorf("measurement-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: measurement-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if valRaw == nil {
		return fmt.Errorf("%w: measurement-map mval", codec.ErrMissingRequiredField)
	}

	var out Measurement
	if keyRaw != nil {
		out.Key = &Mkey{}
		if err := codec.Unmarshal(keyRaw, out.Key); err != nil {
			return err
		}
	}
	if err := codec.Unmarshal(valRaw, &out.Val); err != nil {
		return err
	}
	if authRaw != nil {
		if err := codec.Unmarshal(authRaw, &out.AuthorizedBy); err != nil {
			return err
		}
		if len(out.AuthorizedBy) == 0 {
			return fmt.Errorf("%w: measurement-map authorized-by is empty", codec.ErrMissingRequiredField)
		}
	}
	*m = out
	return nil
}

// Mkey is the measured-element-type-choice: tagged OID, tagged UUID, bare
// uint or bare text. The alternatives are probed in that fixed order.
type Mkey struct {
	val any
}

func NewMkeyOID(s string) (*Mkey, error) {
	o, err := ParseOID(s)
	if err != nil {
		return nil, err
	}
	return &Mkey{val: o}, nil
}

func NewMkeyUUID(s string) (*Mkey, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &Mkey{val: u}, nil
}

func NewMkeyUint(v uint64) *Mkey {
	return &Mkey{val: v}
}

func NewMkeyText(s string) *Mkey {
	return &Mkey{val: s}
}

func (m Mkey) AsOID() (OID, bool) {
	o, ok := m.val.(OID)
	return o, ok
}

func (m Mkey) AsUUID() (UUID, bool) {
	u, ok := m.val.(UUID)
	return u, ok
}

func (m Mkey) AsUint() (uint64, bool) {
	v, ok := m.val.(uint64)
	return v, ok
}

func (m Mkey) AsText() (string, bool) {
	s, ok := m.val.(string)
	return s, ok
}

func (m Mkey) MarshalCBOR() ([]byte, error) {
	switch v := m.val.(type) {
	case OID:
		return marshalTagged(TagOID, v)
	case UUID:
		return marshalTagged(TagUUID, v)
	case uint64, string:
		return codec.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: mkey is unset", codec.ErrInvalidFormat)
	}
}

func (m *Mkey) UnmarshalCBOR(data []byte) error {
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		// Tag 560 is a class-id alternative but not a legal mkey.
		if num == TagBytes || !classIDRegistry.Knows(num) {
			return fmt.Errorf("mkey: %w: tag %d", codec.ErrUnrecognizedTag, num)
		}
		val, err := classIDRegistry.Dispatch(num, content)
		if err != nil {
			return err
		}
		m.val = val
		return nil
	}
	var u uint64
	if err := codec.Unmarshal(data, &u); err == nil {
		m.val = u
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err == nil {
		m.val = s
		return nil
	}
	return fmt.Errorf("%w: mkey", codec.ErrNoMatchingVariant)
}

// SVN is the svn-type-choice: a bare security version number, an exact SVN
// (tag 552) or a minimum SVN (tag 553).
type SVN struct {
	value uint64
	tag   uint64 // 0 for the untagged form
}

func NewSVN(v uint64) *SVN {
	return &SVN{value: v}
}

func NewTaggedSVN(v uint64) *SVN {
	return &SVN{value: v, tag: TagSVN}
}

func NewMinSVN(v uint64) *SVN {
	return &SVN{value: v, tag: TagMinSVN}
}

func (s SVN) Value() uint64 {
	return s.value
}

func (s SVN) IsMin() bool {
	return s.tag == TagMinSVN
}

func (s SVN) MarshalCBOR() ([]byte, error) {
	if s.tag == 0 {
		return codec.Marshal(s.value)
	}
	return marshalTagged(s.tag, s.value)
}

func (s *SVN) UnmarshalCBOR(data []byte) error {
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		if num != TagSVN && num != TagMinSVN {
			return fmt.Errorf("%w: svn tag %d", codec.ErrUnrecognizedTag, num)
		}
		var v uint64
		if err := codec.Unmarshal(content, &v); err != nil {
			return fmt.Errorf("%w: svn must be an unsigned integer", codec.ErrInvalidFormat)
		}
		*s = SVN{value: v, tag: num}
		return nil
	}
	var v uint64
	if err := codec.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: svn", codec.ErrNoMatchingVariant)
	}
	*s = SVN{value: v}
	return nil
}

// RawValue is the raw-value-type-choice: tagged-bytes (tag 560) or a bare
// byte string. Which alternative was decoded is recorded so re-encoding
// emits the same shape.
type RawValue struct {
	val    []byte
	tagged bool
}

func NewRawValue(b []byte) *RawValue {
	return &RawValue{val: append([]byte(nil), b...), tagged: true}
}

func NewRawValueBytes(b []byte) *RawValue {
	return &RawValue{val: append([]byte(nil), b...)}
}

func (r RawValue) Bytes() []byte {
	return r.val
}

func (r RawValue) MarshalCBOR() ([]byte, error) {
	if r.tagged {
		return marshalTagged(TagBytes, r.val)
	}
	return codec.Marshal(r.val)
}

func (r *RawValue) UnmarshalCBOR(data []byte) error {
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		if num != TagBytes {
			return fmt.Errorf("%w: raw-value tag %d", codec.ErrUnrecognizedTag, num)
		}
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: raw-value", codec.ErrInvalidFormat)
		}
		*r = RawValue{val: b, tagged: true}
		return nil
	}
	var b []byte
	if err := codec.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%w: raw-value", codec.ErrNoMatchingVariant)
	}
	*r = RawValue{val: b}
	return nil
}

// Version carries a version string with an optional CoSWID version scheme.
type Version struct {
	Version string              `cbor:"0,keyasint"`
	Scheme  *swid.VersionScheme `cbor:"1,keyasint,omitempty"`
}

func (v Version) Valid() error {
	if v.Version == "" {
		return fmt.Errorf("%w: version-map version", codec.ErrMissingRequiredField)
	}
	return nil
}

func (v *Version) UnmarshalCBOR(data []byte) error {
	var verRaw, schemeRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &verRaw,
		1: &schemeRaw,
	})
	if err != nil {
		return fmt.Errorf("version-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: version-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if verRaw == nil {
		return fmt.Errorf("%w: version-map version", codec.ErrMissingRequiredField)
	}

	var out Version
	if err := codec.Unmarshal(verRaw, &out.Version); err != nil {
		return fmt.Errorf("%w: version must be text", codec.ErrInvalidFormat)
	}
	if out.Version == "" {
		return fmt.Errorf("%w: version-map version", codec.ErrMissingRequiredField)
	}
	if schemeRaw != nil {
		var scheme swid.VersionScheme
		if err := codec.Unmarshal(schemeRaw, &scheme); err != nil {
			return fmt.Errorf("%w: version-scheme: %v", codec.ErrInvalidFormat, err)
		}
		out.Scheme = &scheme
	}
	*v = out
	return nil
}

// FlagsMap records boolean operational state claims. Unknown entries are
// preserved as extensions.
type FlagsMap struct {
	IsConfigured         *bool
	IsSecure             *bool
	IsRecovery           *bool
	IsDebug              *bool
	IsReplayProtected    *bool
	IsIntegrityProtected *bool

	Extensions codec.Extensions
}

func (f FlagsMap) IsEmpty() bool {
	return f.IsConfigured == nil && f.IsSecure == nil && f.IsRecovery == nil &&
		f.IsDebug == nil && f.IsReplayProtected == nil && f.IsIntegrityProtected == nil &&
		f.Extensions.IsEmpty()
}

func (f FlagsMap) MarshalCBOR() ([]byte, error) {
	fields := make(map[int64]cbor.RawMessage, 6)
	for key, flag := range map[int64]*bool{
		0: f.IsConfigured,
		1: f.IsSecure,
		2: f.IsRecovery,
		3: f.IsDebug,
		4: f.IsReplayProtected,
		5: f.IsIntegrityProtected,
	} {
		if flag == nil {
			continue
		}
		raw, err := codec.Marshal(*flag)
		if err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	return codec.JoinMap(fields, f.Extensions)
}

func (f *FlagsMap) UnmarshalCBOR(data []byte) error {
	var raws [6]cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &raws[0], 1: &raws[1], 2: &raws[2], 3: &raws[3], 4: &raws[4], 5: &raws[5],
	})
	if err != nil {
		return fmt.Errorf("flags-map: %w", err)
	}

	var out FlagsMap
	for i, slot := range []**bool{
		&out.IsConfigured, &out.IsSecure, &out.IsRecovery,
		&out.IsDebug, &out.IsReplayProtected, &out.IsIntegrityProtected,
	} {
		if raws[i] == nil {
			continue
		}
		var b bool
		if err := codec.Unmarshal(raws[i], &b); err != nil {
			return fmt.Errorf("%w: flags-map key %d must be a bool", codec.ErrInvalidFormat, i)
		}
		*slot = &b
	}
	out.Extensions = exts
	*f = out
	return nil
}

// Mval is the measurement-values-map: an open bag of optional evidence
// fields. At least one field (or preserved extension) must be populated.
type Mval struct {
	Ver          *Version
	SVN          *SVN
	Digests      []swid.HashEntry
	Flags        *FlagsMap
	RawValue     *RawValue
	RawValueMask []byte
	MACAddr      *MACAddr
	IPAddr       *IPAddr
	SerialNumber *string
	UEID         *eat.UEID
	UUID         *UUID
	Name         *string
	CryptoKeys   []CryptoKey

	Extensions codec.Extensions
}

func (m Mval) Valid() error {
	if m.Ver == nil && m.SVN == nil && len(m.Digests) == 0 && m.Flags == nil &&
		m.RawValue == nil && m.RawValueMask == nil && m.MACAddr == nil &&
		m.IPAddr == nil && m.SerialNumber == nil && m.UEID == nil &&
		m.UUID == nil && m.Name == nil && len(m.CryptoKeys) == 0 &&
		m.Extensions.IsEmpty() {
		return ErrEmptyMval
	}
	if m.Ver != nil {
		if err := m.Ver.Valid(); err != nil {
			return err
		}
	}
	return nil
}

func (m Mval) MarshalCBOR() ([]byte, error) {
	if err := m.Valid(); err != nil {
		return nil, err
	}

	fields := make(map[int64]cbor.RawMessage, 13)
	put := func(key int64, v any) error {
		raw, err := codec.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}

	if m.Ver != nil {
		if err := put(0, *m.Ver); err != nil {
			return nil, err
		}
	}
	if m.SVN != nil {
		if err := put(1, m.SVN); err != nil {
			return nil, err
		}
	}
	if len(m.Digests) > 0 {
		if err := put(2, m.Digests); err != nil {
			return nil, err
		}
	}
	if m.Flags != nil {
		if err := put(3, m.Flags); err != nil {
			return nil, err
		}
	}
	if m.RawValue != nil {
		if err := put(4, m.RawValue); err != nil {
			return nil, err
		}
	}
	if m.RawValueMask != nil {
		if err := put(5, m.RawValueMask); err != nil {
			return nil, err
		}
	}
	if m.MACAddr != nil {
		if err := put(6, m.MACAddr); err != nil {
			return nil, err
		}
	}
	if m.IPAddr != nil {
		if err := put(7, m.IPAddr); err != nil {
			return nil, err
		}
	}
	if m.SerialNumber != nil {
		if err := put(8, *m.SerialNumber); err != nil {
			return nil, err
		}
	}
	if m.UEID != nil {
		raw, err := marshalTagged(TagUEID, []byte(*m.UEID))
		if err != nil {
			return nil, err
		}
		fields[9] = raw
	}
	if m.UUID != nil {
		raw, err := marshalTagged(TagUUID, *m.UUID)
		if err != nil {
			return nil, err
		}
		fields[10] = raw
	}
	if m.Name != nil {
		if err := put(11, *m.Name); err != nil {
			return nil, err
		}
	}
	if len(m.CryptoKeys) > 0 {
		if err := put(13, m.CryptoKeys); err != nil {
			return nil, err
		}
	}
	return codec.JoinMap(fields, m.Extensions)
}

func (m *Mval) UnmarshalCBOR(data []byte) error {
	var raws [14]cbor.RawMessage
	slots := make(map[int64]*cbor.RawMessage, 13)
	for _, k := range []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 13} {
		slots[k] = &raws[k]
	}
	exts, err := codec.SplitMap(data, slots)
	if err != nil {
		return fmt.Errorf("measurement-values-map: %w", err)
	}

	var out Mval
	if raws[0] != nil {
		out.Ver = &Version{}
		if err := codec.Unmarshal(raws[0], out.Ver); err != nil {
			return err
		}
	}
	if raws[1] != nil {
		out.SVN = &SVN{}
		if err := codec.Unmarshal(raws[1], out.SVN); err != nil {
			return err
		}
	}
	if raws[2] != nil {
		if err := codec.Unmarshal(raws[2], &out.Digests); err != nil {
			return fmt.Errorf("%w: digests: %v", codec.ErrInvalidFormat, err)
		}
		if len(out.Digests) == 0 {
			return fmt.Errorf("%w: digests list is empty", codec.ErrMissingRequiredField)
		}
	}
	if raws[3] != nil {
		out.Flags = &FlagsMap{}
		if err := codec.Unmarshal(raws[3], out.Flags); err != nil {
			return err
		}
	}
	if raws[4] != nil {
		out.RawValue = &RawValue{}
		if err := codec.Unmarshal(raws[4], out.RawValue); err != nil {
			return err
		}
	}
	if raws[5] != nil {
		if err := codec.Unmarshal(raws[5], &out.RawValueMask); err != nil {
			return fmt.Errorf("%w: raw-value-mask must be a byte string", codec.ErrInvalidFormat)
		}
	}
	if raws[6] != nil {
		out.MACAddr = &MACAddr{}
		if err := codec.Unmarshal(raws[6], out.MACAddr); err != nil {
			return err
		}
	}
	if raws[7] != nil {
		out.IPAddr = &IPAddr{}
		if err := codec.Unmarshal(raws[7], out.IPAddr); err != nil {
			return err
		}
	}
	if raws[8] != nil {
		var s string
		if err := codec.Unmarshal(raws[8], &s); err != nil {
			return fmt.Errorf("%w: serial-number must be text", codec.ErrInvalidFormat)
		}
		out.SerialNumber = &s
	}
	if raws[9] != nil {
		num, content, err := codec.SplitTag(raws[9])
		if err != nil || num != TagUEID {
			return fmt.Errorf("%w: ueid requires tag %d", codec.ErrUnrecognizedTag, TagUEID)
		}
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: ueid must be a byte string", codec.ErrInvalidFormat)
		}
		ueid := eat.UEID(b)
		if err := ueid.Validate(); err != nil {
			return fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
		}
		out.UEID = &ueid
	}
	if raws[10] != nil {
		num, content, err := codec.SplitTag(raws[10])
		if err != nil || num != TagUUID {
			return fmt.Errorf("%w: uuid requires tag %d", codec.ErrUnrecognizedTag, TagUUID)
		}
		var u UUID
		if err := codec.Unmarshal(content, &u); err != nil {
			return err
		}
		out.UUID = &u
	}
	if raws[11] != nil {
		var s string
		if err := codec.Unmarshal(raws[11], &s); err != nil {
			return fmt.Errorf("%w: name must be text", codec.ErrInvalidFormat)
		}
		out.Name = &s
	}
	if raws[13] != nil {
		if err := codec.Unmarshal(raws[13], &out.CryptoKeys); err != nil {
			return err
		}
		if len(out.CryptoKeys) == 0 {
			return fmt.Errorf("%w: cryptokeys list is empty", codec.ErrMissingRequiredField)
		}
	}
	out.Extensions = exts

	if err := out.Valid(); err != nil {
		return err
	}
	*m = out
	return nil
}
