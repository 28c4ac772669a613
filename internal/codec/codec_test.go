/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package codec

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_Deterministic_OK(t *testing.T) {
	// Shortest integer form and bytewise-sorted map keys.
	encoded, err := Marshal(map[any]any{int64(10): "a", int64(1): "b"})
	require.Nil(t, err)
	assert.Equal(t, []byte{0xA2, 0x01, 0x61, 0x62, 0x0A, 0x61, 0x61}, encoded)
}

func TestUnmarshal_DuplicateKey_NG(t *testing.T) {
	// {1: "a", 1: "b"}
	data := []byte{0xA2, 0x01, 0x61, 0x61, 0x01, 0x61, 0x62}
	var m map[int64]string
	err := Unmarshal(data, &m)
	assert.NotNil(t, err)
}

func TestUnmarshal_IndefiniteLength_NG(t *testing.T) {
	// Indefinite-length array holding one uint.
	data := []byte{0x9F, 0x01, 0xFF}
	var v []uint64
	err := Unmarshal(data, &v)
	assert.NotNil(t, err)
}

func TestLabel_RoundTrip_OK(t *testing.T) {
	for _, tc := range []struct {
		label    Label
		expected []byte
	}{
		{Int64Label(0), []byte{0x00}},
		{Int64Label(-1), []byte{0x20}},
		{TextLabel("t"), []byte{0x61, 0x74}},
	} {
		encoded, err := tc.label.MarshalCBOR()
		require.Nil(t, err)
		assert.Equal(t, tc.expected, encoded)

		var decoded Label
		require.Nil(t, decoded.UnmarshalCBOR(encoded))
		assert.Equal(t, tc.label, decoded)
	}
}

func TestLabelFromKey_OK(t *testing.T) {
	l, err := LabelFromKey(int64(-3))
	require.Nil(t, err)
	assert.Equal(t, Int64Label(-3), l)

	l, err = LabelFromKey(uint64(7))
	require.Nil(t, err)
	assert.Equal(t, Int64Label(7), l)

	l, err = LabelFromKey("name")
	require.Nil(t, err)
	assert.Equal(t, TextLabel("name"), l)
}

func TestLabelFromKey_Overflow_NG(t *testing.T) {
	_, err := LabelFromKey(uint64(1) << 63)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSplitMap_KnownAndExtensions_OK(t *testing.T) {
	data, err := Marshal(map[any]any{
		int64(0):  "known",
		int64(-1): "ext-int",
		"t":       true,
	})
	require.Nil(t, err)

	var knownRaw cbor.RawMessage
	exts, err := SplitMap(data, map[int64]*cbor.RawMessage{0: &knownRaw})
	require.Nil(t, err)

	var known string
	require.Nil(t, Unmarshal(knownRaw, &known))
	assert.Equal(t, "known", known)

	// Canonical key order: -1 (one byte) sorts before "t" (two bytes).
	require.Len(t, exts, 2)
	assert.Equal(t, Int64Label(-1), exts[0].Key)
	assert.Equal(t, TextLabel("t"), exts[1].Key)
}

func TestSplitJoinMap_RoundTrip_OK(t *testing.T) {
	original, err := Marshal(map[any]any{
		int64(0):  uint64(1),
		int64(1):  "x",
		int64(-1): []byte{0xAA},
		"ext":     uint64(2),
	})
	require.Nil(t, err)

	var f0, f1 cbor.RawMessage
	exts, err := SplitMap(original, map[int64]*cbor.RawMessage{0: &f0, 1: &f1})
	require.Nil(t, err)

	rejoined, err := JoinMap(map[int64]cbor.RawMessage{0: f0, 1: f1}, exts)
	require.Nil(t, err)
	assert.Equal(t, original, rejoined)
}

func TestJoinMap_Collision_NG(t *testing.T) {
	val, err := Marshal("v")
	require.Nil(t, err)

	var exts Extensions
	exts.Set(Int64Label(0), val)
	_, err = JoinMap(map[int64]cbor.RawMessage{0: val}, exts)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSplitMap_NotAMap_NG(t *testing.T) {
	data, err := Marshal([]int{1, 2})
	require.Nil(t, err)
	_, err = SplitMap(data, nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestExtensions_SetGet_OK(t *testing.T) {
	v1, _ := Marshal("one")
	v2, _ := Marshal("two")

	var exts Extensions
	exts.Set(TextLabel("b"), v1)
	exts.Set(Int64Label(-1), v2)

	// Canonical order puts the integer key first.
	assert.Equal(t, Int64Label(-1), exts[0].Key)

	got, ok := exts.Get(TextLabel("b"))
	require.True(t, ok)
	assert.Equal(t, cbor.RawMessage(v1), got)

	exts.Set(TextLabel("b"), v2)
	got, _ = exts.Get(TextLabel("b"))
	assert.Equal(t, cbor.RawMessage(v2), got)
	assert.Len(t, exts, 2)
}

func TestRegistry_Dispatch_OK(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Register(99, func(content cbor.RawMessage) (any, error) {
		var v uint64
		if err := Unmarshal(content, &v); err != nil {
			return nil, err
		}
		return v, nil
	}))

	assert.True(t, r.Knows(99))
	assert.False(t, r.Knows(100))

	content, _ := Marshal(uint64(42))
	val, err := r.Dispatch(99, content)
	require.Nil(t, err)
	assert.Equal(t, uint64(42), val)
}

func TestRegistry_UnknownTag_NG(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch(7, []byte{0x00})
	assert.ErrorIs(t, err, ErrUnrecognizedTag)
}

func TestRegistry_DuplicateRegister_NG(t *testing.T) {
	r := NewRegistry()
	ctor := func(cbor.RawMessage) (any, error) { return nil, nil }
	require.Nil(t, r.Register(1, ctor))
	assert.NotNil(t, r.Register(1, ctor))
}

func TestOneOrMore_Single_RoundTrip_OK(t *testing.T) {
	data, err := Marshal("solo")
	require.Nil(t, err)

	var o OneOrMore[string]
	require.Nil(t, o.UnmarshalCBOR(data))
	assert.Equal(t, []string{"solo"}, o.Values)

	encoded, err := o.MarshalCBOR()
	require.Nil(t, err)
	assert.Equal(t, data, encoded)
}

func TestOneOrMore_Array_RoundTrip_OK(t *testing.T) {
	data, err := Marshal([]string{"a", "b"})
	require.Nil(t, err)

	var o OneOrMore[string]
	require.Nil(t, o.UnmarshalCBOR(data))
	assert.Equal(t, []string{"a", "b"}, o.Values)

	encoded, err := o.MarshalCBOR()
	require.Nil(t, err)
	assert.Equal(t, data, encoded)
}

func TestOneOrMore_SingleElementArray_KeepsShape_OK(t *testing.T) {
	data, err := Marshal([]string{"a"})
	require.Nil(t, err)

	var o OneOrMore[string]
	require.Nil(t, o.UnmarshalCBOR(data))

	encoded, err := o.MarshalCBOR()
	require.Nil(t, err)
	assert.Equal(t, data, encoded)
}

func TestOneOrMore_EmptyArray_NG(t *testing.T) {
	data, err := Marshal([]string{})
	require.Nil(t, err)

	var o OneOrMore[string]
	assert.ErrorIs(t, o.UnmarshalCBOR(data), ErrMissingRequiredField)
}

func TestNested_RoundTrip_OK(t *testing.T) {
	n := Nested[uint64]{Value: 300}
	encoded, err := n.MarshalCBOR()
	require.Nil(t, err)
	// bstr wrapping 0x19 0x01 0x2C
	assert.Equal(t, []byte{0x43, 0x19, 0x01, 0x2C}, encoded)

	var decoded Nested[uint64]
	require.Nil(t, decoded.UnmarshalCBOR(encoded))
	assert.Equal(t, uint64(300), decoded.Value)
}

func TestSplitBuildTag_RoundTrip_OK(t *testing.T) {
	content, err := Marshal("payload")
	require.Nil(t, err)

	tagged, err := BuildTag(501, content)
	require.Nil(t, err)
	assert.True(t, IsTag(tagged))

	num, got, err := SplitTag(tagged)
	require.Nil(t, err)
	assert.Equal(t, uint64(501), num)
	assert.Equal(t, cbor.RawMessage(content), got)
}

func TestSplitTag_Untagged_NG(t *testing.T) {
	data, _ := Marshal("bare")
	_, _, err := SplitTag(data)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestTaggedUnknown_Passthrough_OK(t *testing.T) {
	content, _ := Marshal([]byte{0x01, 0x02})
	data, err := BuildTag(999, content)
	require.Nil(t, err)

	var u TaggedUnknown
	require.Nil(t, u.UnmarshalCBOR(data))
	assert.Equal(t, uint64(999), u.Number)

	out, err := u.MarshalCBOR()
	require.Nil(t, err)
	assert.Equal(t, data, out)
}
