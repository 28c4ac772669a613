/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/swid"

	"github.com/kentakayama/go-corim/internal/codec"
)

func testDigest(t *testing.T) swid.HashEntry {
	t.Helper()
	return swid.HashEntry{HashAlgID: swid.Sha256, HashValue: make([]byte, 32)}
}

func TestMkey_Variants_RoundTrip_OK(t *testing.T) {
	oidKey, err := NewMkeyOID("1.2.3.4")
	require.Nil(t, err)
	uuidKey, err := NewMkeyUUID(testUUID)
	require.Nil(t, err)

	for _, mkey := range []*Mkey{
		oidKey,
		uuidKey,
		NewMkeyUint(7),
		NewMkeyText("component-a"),
	} {
		encoded, err := codec.Marshal(mkey)
		require.Nil(t, err)

		var decoded Mkey
		require.Nil(t, codec.Unmarshal(encoded, &decoded))
		assert.Equal(t, *mkey, decoded)

		reencoded, err := codec.Marshal(decoded)
		require.Nil(t, err)
		assert.Equal(t, encoded, reencoded)
	}
}

func TestMkey_TaggedBytes_NG(t *testing.T) {
	// tag 560 is a valid class-id alternative but not a valid mkey.
	data := []byte{0xD9, 0x02, 0x30, 0x41, 0x00}
	var m Mkey
	assert.ErrorIs(t, m.UnmarshalCBOR(data), codec.ErrUnrecognizedTag)
}

func TestSVN_Variants_RoundTrip_OK(t *testing.T) {
	for _, tc := range []struct {
		svn      *SVN
		expected []byte
	}{
		{NewSVN(5), []byte{0x05}},
		{NewTaggedSVN(5), []byte{0xD9, 0x02, 0x28, 0x05}},
		{NewMinSVN(5), []byte{0xD9, 0x02, 0x29, 0x05}},
	} {
		encoded, err := codec.Marshal(tc.svn)
		require.Nil(t, err)
		assert.Equal(t, tc.expected, encoded)

		var decoded SVN
		require.Nil(t, codec.Unmarshal(encoded, &decoded))
		assert.Equal(t, *tc.svn, decoded)
		assert.Equal(t, uint64(5), decoded.Value())
	}

	assert.True(t, NewMinSVN(1).IsMin())
	assert.False(t, NewSVN(1).IsMin())
}

func TestSVN_UnknownTag_NG(t *testing.T) {
	data := []byte{0xD9, 0x02, 0x30, 0x05} // tag 560
	var s SVN
	assert.ErrorIs(t, s.UnmarshalCBOR(data), codec.ErrUnrecognizedTag)
}

func TestRawValue_Variants_RoundTrip_OK(t *testing.T) {
	tagged := NewRawValue([]byte{0xDE, 0xAD})
	encoded, err := codec.Marshal(tagged)
	require.Nil(t, err)
	assert.Equal(t, []byte{0xD9, 0x02, 0x30, 0x42, 0xDE, 0xAD}, encoded)

	var decoded RawValue
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, *tagged, decoded)

	bare := NewRawValueBytes([]byte{0xDE, 0xAD})
	encoded, err = codec.Marshal(bare)
	require.Nil(t, err)
	assert.Equal(t, []byte{0x42, 0xDE, 0xAD}, encoded)

	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, *bare, decoded)
	assert.Equal(t, []byte{0xDE, 0xAD}, decoded.Bytes())
}

func TestFlagsMap_RoundTrip_OK(t *testing.T) {
	secure := true
	debug := false
	f := FlagsMap{IsSecure: &secure, IsDebug: &debug}

	encoded, err := codec.Marshal(f)
	require.Nil(t, err)
	// {1: true, 3: false}
	assert.Equal(t, []byte{0xA2, 0x01, 0xF5, 0x03, 0xF4}, encoded)

	var decoded FlagsMap
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, f, decoded)
}

func TestFlagsMap_ExtensionPreserved_OK(t *testing.T) {
	// {1: true, -1: "vendor"}
	data, err := codec.Marshal(map[any]any{int64(1): true, int64(-1): "vendor"})
	require.Nil(t, err)

	var f FlagsMap
	require.Nil(t, codec.Unmarshal(data, &f))
	require.False(t, f.Extensions.IsEmpty())

	reencoded, err := codec.Marshal(f)
	require.Nil(t, err)
	assert.Equal(t, data, reencoded)
}

func TestMval_Empty_NG(t *testing.T) {
	var m Mval
	assert.ErrorIs(t, m.Valid(), codec.ErrMissingRequiredField)

	// {} on the wire
	assert.ErrorIs(t, m.UnmarshalCBOR([]byte{0xA0}), codec.ErrMissingRequiredField)

	_, err := codec.Marshal(m)
	assert.ErrorIs(t, err, codec.ErrMissingRequiredField)
}

func TestMval_EmptyDigests_NG(t *testing.T) {
	// {2: []}
	data := []byte{0xA1, 0x02, 0x80}
	var m Mval
	assert.ErrorIs(t, m.UnmarshalCBOR(data), codec.ErrMissingRequiredField)
}

func TestMval_RoundTrip_OK(t *testing.T) {
	serial := "SN-0123"
	m := Mval{
		Ver:          &Version{Version: "1.0.2"},
		SVN:          NewTaggedSVN(3),
		Digests:      []swid.HashEntry{testDigest(t)},
		SerialNumber: &serial,
	}

	encoded, err := codec.Marshal(m)
	require.Nil(t, err)

	var decoded Mval
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, m, decoded)

	reencoded, err := codec.Marshal(decoded)
	require.Nil(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestMval_ExtensionOnly_OK(t *testing.T) {
	// A map carrying only an unrecognized entry still has one entry.
	data, err := codec.Marshal(map[any]any{int64(-70000): "vendor-value"})
	require.Nil(t, err)

	var m Mval
	require.Nil(t, codec.Unmarshal(data, &m))
	require.Nil(t, m.Valid())

	reencoded, err := codec.Marshal(m)
	require.Nil(t, err)
	assert.Equal(t, data, reencoded)
}

func TestMeasurement_RoundTrip_OK(t *testing.T) {
	m := Measurement{
		Key: NewMkeyUint(1),
		Val: Mval{Digests: []swid.HashEntry{testDigest(t)}},
	}

	encoded, err := codec.Marshal(m)
	require.Nil(t, err)

	var decoded Measurement
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, m, decoded)
}

func TestMeasurement_MissingMval_NG(t *testing.T) {
	// {0: 1} has a key but no values map.
	data := []byte{0xA1, 0x00, 0x01}
	var m Measurement
	assert.ErrorIs(t, m.UnmarshalCBOR(data), codec.ErrMissingRequiredField)
}

func TestVersion_UnknownKey_NG(t *testing.T) {
	// {0: "1.2.3", 2: 1}
	data := []byte{0xA2, 0x00, 0x65, 0x31, 0x2E, 0x32, 0x2E, 0x33, 0x02, 0x01}
	var v Version
	assert.ErrorIs(t, codec.Unmarshal(data, &v), codec.ErrInvalidFormat)
}

func TestMkey_RecognizedTagBadContent_NG(t *testing.T) {
	// tag 111 wrapping a text string instead of arc bytes: the tag is
	// known, so the content failure must not masquerade as an unknown tag.
	data := []byte{0xD8, 0x6F, 0x61, 0x41}
	var m Mkey
	err := codec.Unmarshal(data, &m)
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)
	assert.NotErrorIs(t, err, codec.ErrUnrecognizedTag)
}
