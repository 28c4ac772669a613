/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package corim

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/swid"

	"github.com/kentakayama/go-corim/internal/codec"
	"github.com/kentakayama/go-corim/internal/comid"
)

const testUUID = "31fb5abf-023e-4992-aa4e-95f9c1503bfa"

func testComidTag(t *testing.T, tagID string) Tag {
	t.Helper()

	id, err := comid.NewTagIDText(tagID)
	require.Nil(t, err)
	cid, err := comid.NewClassIDOID("1.2.3.4")
	require.Nil(t, err)

	c := comid.ConciseMidTag{
		TagIdentity: comid.TagIdentity{TagID: *id},
	}
	require.Nil(t, c.AddReferenceValue(
		comid.Environment{Class: &comid.Class{ClassID: cid, Vendor: "ACME Ltd."}},
		comid.Measurement{
			Key: comid.NewMkeyUint(0),
			Val: comid.Mval{
				Digests: []swid.HashEntry{{HashAlgID: swid.Sha256, HashValue: make([]byte, 32)}},
			},
		},
	))

	tag, err := NewTagComid(c)
	require.Nil(t, err)
	return *tag
}

func testUnsignedCorim(t *testing.T, id string) UnsignedCorim {
	t.Helper()

	corimID, err := NewCorimIDText(id)
	require.Nil(t, err)
	return UnsignedCorim{
		ID:   *corimID,
		Tags: []Tag{testComidTag(t, id+".comid")},
	}
}

func TestCorimID_Variants_RoundTrip_OK(t *testing.T) {
	textID, err := NewCorimIDText("acme-rim-2026")
	require.Nil(t, err)
	uuidID, err := NewCorimIDUUID(testUUID)
	require.Nil(t, err)

	for _, id := range []*CorimID{textID, uuidID} {
		encoded, err := codec.Marshal(id)
		require.Nil(t, err)

		var decoded CorimID
		require.Nil(t, codec.Unmarshal(encoded, &decoded))
		assert.Equal(t, *id, decoded)
	}

	assert.Equal(t, "acme-rim-2026", textID.String())
	assert.Equal(t, testUUID, uuidID.String())
}

func TestCorimID_Empty_NG(t *testing.T) {
	_, err := NewCorimIDText("")
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)

	var id CorimID
	// 0x60 is the empty text string
	assert.ErrorIs(t, id.UnmarshalCBOR([]byte{0x60}), codec.ErrInvalidFormat)
}

func TestTime_RoundTrip_OK(t *testing.T) {
	ts := NewTime(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	encoded, err := codec.Marshal(ts)
	require.Nil(t, err)
	// tag 1 with integer content
	assert.Equal(t, byte(0xC1), encoded[0])

	var decoded Time
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, ts, decoded)
}

func TestValidity_NotBeforeAfterNotAfter_NG(t *testing.T) {
	v := Validity{
		NotBefore: &Time{time.Unix(2000, 0).UTC()},
		NotAfter:  Time{time.Unix(1000, 0).UTC()},
	}
	assert.ErrorIs(t, v.Valid(), codec.ErrInvalidFormat)
}

func TestValidity_MissingNotAfter_NG(t *testing.T) {
	var v Validity
	assert.ErrorIs(t, v.Valid(), codec.ErrMissingRequiredField)
}

func TestProfile_Variants_RoundTrip_OK(t *testing.T) {
	uriProfile, err := NewProfileURI("https://example.com/profile/1")
	require.Nil(t, err)
	oidProfile, err := NewProfileOID("1.2.3.4.5")
	require.Nil(t, err)

	for _, p := range []*Profile{uriProfile, oidProfile} {
		encoded, err := codec.Marshal(p)
		require.Nil(t, err)

		var decoded Profile
		require.Nil(t, codec.Unmarshal(encoded, &decoded))
		assert.Equal(t, *p, decoded)
	}

	// OID form is tag 111.
	encoded, err := codec.Marshal(oidProfile)
	require.Nil(t, err)
	assert.Equal(t, []byte{0xD8, 0x6F}, encoded[:2])
}

func TestEntity_RolesValidated_NG(t *testing.T) {
	e := Entity{Name: "ACME Ltd.", Roles: []EntityRole{7}}
	assert.ErrorIs(t, e.Valid(), codec.ErrInvalidFormat)

	e = Entity{Name: "ACME Ltd.", Roles: []EntityRole{RoleManifestCreator, RoleManifestCreator}}
	assert.ErrorIs(t, e.Valid(), codec.ErrInvalidFormat)
}

func TestLocator_RoundTrip_OK(t *testing.T) {
	l := Locator{
		Href: codec.One("https://example.com/dependent.rim"),
		Thumbprint: &swid.HashEntry{
			HashAlgID: swid.Sha256,
			HashValue: make([]byte, 32),
		},
	}

	encoded, err := codec.Marshal(l)
	require.Nil(t, err)

	var decoded Locator
	require.Nil(t, codec.Unmarshal(encoded, &decoded))
	assert.Equal(t, l, decoded)
}

func TestUnsignedCorim_RoundTrip_ByteFidelity_OK(t *testing.T) {
	regID := "https://acme.example"
	u := testUnsignedCorim(t, "acme-rim-2026")
	profile, err := NewProfileURI("https://example.com/profile/1")
	require.Nil(t, err)
	u.Profile = profile
	u.RimValidity = &Validity{NotAfter: NewTime(time.Unix(1893456000, 0))}
	u.Entities = []Entity{{
		Name:  "ACME Ltd.",
		RegID: &regID,
		Roles: []EntityRole{RoleManifestCreator},
	}}

	encoded, err := u.ToCBOR()
	require.Nil(t, err)
	// tag 501
	assert.Equal(t, []byte{0xD9, 0x01, 0xF5}, encoded[:3])

	c, err := UnmarshalCorim(encoded)
	require.Nil(t, err)
	require.NotNil(t, c.Unsigned)
	assert.Nil(t, c.Signed)
	assert.Equal(t, "acme-rim-2026", c.Unsigned.ID.String())

	reencoded, err := c.Unsigned.ToCBOR()
	require.Nil(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestUnsignedCorim_ExtensionPreserved_OK(t *testing.T) {
	u := testUnsignedCorim(t, "acme-rim-2026")
	extVal, err := codec.Marshal(uint64(42))
	require.Nil(t, err)
	u.Extensions.Set(codec.TextLabel("vendor-data"), extVal)

	encoded, err := u.ToCBOR()
	require.Nil(t, err)

	c, err := UnmarshalCorim(encoded)
	require.Nil(t, err)
	got, ok := c.Unsigned.Extensions.Get(codec.TextLabel("vendor-data"))
	require.True(t, ok)
	assert.Equal(t, cbor.RawMessage(extVal), got)

	reencoded, err := c.Unsigned.ToCBOR()
	require.Nil(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestUnsignedCorim_UnknownTagEntry_Preserved_OK(t *testing.T) {
	content, err := codec.Marshal([]byte{0x01, 0x02})
	require.Nil(t, err)
	unknown, err := codec.BuildTag(999, content)
	require.Nil(t, err)

	body, err := codec.Marshal(map[any]any{
		int64(0): "acme-rim-2026",
		int64(1): []cbor.RawMessage{unknown},
	})
	require.Nil(t, err)
	encoded, err := codec.BuildTag(TagUnsignedCorim, body)
	require.Nil(t, err)

	c, err := UnmarshalCorim(encoded)
	require.Nil(t, err)
	require.Len(t, c.Unsigned.Tags, 1)

	u, ok := c.Unsigned.Tags[0].AsUnknown()
	require.True(t, ok)
	assert.Equal(t, uint64(999), u.Number)

	reencoded, err := c.Unsigned.ToCBOR()
	require.Nil(t, err)
	assert.Equal(t, encoded, reencoded)
}

func TestUnsignedCorim_CoswidTagEntry_RoundTrip_OK(t *testing.T) {
	sw, err := swid.NewTag("example.acme.roadrunner-sw-v1-0-0", "Roadrunner software bundle", "1.0.0")
	require.Nil(t, err)
	entity := swid.Entity{EntityName: "ACME Ltd."}
	require.Nil(t, entity.SetRoles(swid.RoleTagCreator))
	require.Nil(t, sw.AddEntity(entity))

	corimID, err := NewCorimIDText("acme-rim-2026")
	require.Nil(t, err)
	u := UnsignedCorim{ID: *corimID, Tags: []Tag{*NewTagCoswid(*sw)}}

	encoded, err := u.ToCBOR()
	require.Nil(t, err)

	c, err := UnmarshalCorim(encoded)
	require.Nil(t, err)
	require.Len(t, c.Unsigned.Tags, 1)
	got, ok := c.Unsigned.Tags[0].AsCoswid()
	require.True(t, ok)
	assert.Equal(t, "Roadrunner software bundle", got.SoftwareName)
}

func TestUnsignedCorim_MissingID_NG(t *testing.T) {
	body, err := codec.Marshal(map[any]any{
		int64(1): []any{},
	})
	require.Nil(t, err)
	encoded, err := codec.BuildTag(TagUnsignedCorim, body)
	require.Nil(t, err)

	_, err = UnmarshalCorim(encoded)
	assert.ErrorIs(t, err, codec.ErrMissingRequiredField)
}

func TestUnsignedCorim_EmptyTags_NG(t *testing.T) {
	body, err := codec.Marshal(map[any]any{
		int64(0): "acme-rim-2026",
		int64(1): []any{},
	})
	require.Nil(t, err)
	encoded, err := codec.BuildTag(TagUnsignedCorim, body)
	require.Nil(t, err)

	_, err = UnmarshalCorim(encoded)
	assert.ErrorIs(t, err, codec.ErrMissingRequiredField)
}

func TestUnmarshalCorim_Untagged_NG(t *testing.T) {
	data, err := codec.Marshal(map[any]any{int64(0): "x"})
	require.Nil(t, err)
	_, err = UnmarshalCorim(data)
	assert.ErrorIs(t, err, codec.ErrInvalidFormat)
}

func TestUnmarshalCorim_WrongOuterTag_NG(t *testing.T) {
	body, err := codec.Marshal(map[any]any{int64(0): "x"})
	require.Nil(t, err)
	data, err := codec.BuildTag(42, body)
	require.Nil(t, err)

	_, err = UnmarshalCorim(data)
	assert.ErrorIs(t, err, codec.ErrUnrecognizedTag)
}

func TestMeta_Valid(t *testing.T) {
	var m Meta
	assert.ErrorIs(t, m.Valid(), codec.ErrMissingRequiredField)

	m.Signer.Name = "ACME signing service"
	assert.Nil(t, m.Valid())

	m.SignatureValidity = &Validity{NotAfter: NewTime(time.Unix(1893456000, 0))}
	assert.Nil(t, m.Valid())
}

func TestValidity_UnknownKey_NG(t *testing.T) {
	// {1: 1(0), 2: 1}
	data := []byte{0xA2, 0x01, 0xC1, 0x00, 0x02, 0x01}
	var v Validity
	assert.ErrorIs(t, codec.Unmarshal(data, &v), codec.ErrInvalidFormat)
}

func TestMeta_UnknownKey_NG(t *testing.T) {
	// {0: {0: "s"}, 2: 1}
	data := []byte{0xA2, 0x00, 0xA1, 0x00, 0x61, 0x73, 0x02, 0x01}
	var m Meta
	assert.ErrorIs(t, m.UnmarshalCBOR(data), codec.ErrInvalidFormat)
}

func TestSigner_UnknownKey_NG(t *testing.T) {
	// {0: "s", 2: 1}
	data := []byte{0xA2, 0x00, 0x61, 0x73, 0x02, 0x01}
	var s Signer
	assert.ErrorIs(t, s.UnmarshalCBOR(data), codec.ErrInvalidFormat)
}
