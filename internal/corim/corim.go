/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package corim implements the Concise Reference Integrity Manifest: the
// unsigned manifest map (CBOR tag 501) and its COSE_Sign1 signing envelope
// (CBOR tag 18).
package corim

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/swid"

	"github.com/kentakayama/go-corim/internal/codec"
	"github.com/kentakayama/go-corim/internal/comid"
	"github.com/kentakayama/go-corim/internal/util"
)

const (
	TagUnsignedCorim = 501
	TagCOSESign1     = 18

	TagCoswid = 505
	TagComid  = 506
	TagCotl   = 508
)

// CorimID is the corim-id-type-choice: a text string or a bare 16-byte
// UUID, probed in that order.
type CorimID struct {
	val any
}

func NewCorimIDText(s string) (*CorimID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty corim-id", codec.ErrInvalidFormat)
	}
	return &CorimID{val: s}, nil
}

func NewCorimIDUUID(s string) (*CorimID, error) {
	u, err := comid.ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &CorimID{val: u}, nil
}

func (c CorimID) String() string {
	switch v := c.val.(type) {
	case string:
		return v
	case comid.UUID:
		return v.String()
	default:
		return ""
	}
}

func (c CorimID) MarshalCBOR() ([]byte, error) {
	switch v := c.val.(type) {
	case string, comid.UUID:
		return codec.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: corim-id is unset", codec.ErrInvalidFormat)
	}
}

func (c *CorimID) UnmarshalCBOR(data []byte) error {
	var s string
	if err := codec.Unmarshal(data, &s); err == nil {
		if s == "" {
			return fmt.Errorf("%w: empty corim-id", codec.ErrInvalidFormat)
		}
		c.val = s
		return nil
	}
	var u comid.UUID
	if err := codec.Unmarshal(data, &u); err == nil {
		c.val = u
		return nil
	}
	return fmt.Errorf("%w: corim-id", codec.ErrNoMatchingVariant)
}

// tagRegistry dispatches the recognized concise tag types inside a CoRIM.
// Populated at init, read-only afterwards.
var tagRegistry = codec.NewRegistry()

func init() {
	tagRegistry.MustRegister(TagComid, func(content cbor.RawMessage) (any, error) {
		var c comid.ConciseMidTag
		if err := codec.Unmarshal(content, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
	tagRegistry.MustRegister(TagCoswid, func(content cbor.RawMessage) (any, error) {
		var s swid.SoftwareIdentity
		if err := s.FromCBOR(content); err != nil {
			return nil, fmt.Errorf("%w: coswid: %v", codec.ErrInvalidFormat, err)
		}
		return &s, nil
	})
	tagRegistry.MustRegister(TagCotl, func(content cbor.RawMessage) (any, error) {
		// Trust lists are carried opaquely; nothing here interprets them.
		return append(cbor.RawMessage(nil), content...), nil
	})
}

// Tag is one entry of the manifest's tags list: a recognized sub-document
// (CoMID, CoSWID, opaque CoTL) or an unrecognized tag preserved verbatim
// for round-trip re-emission.
type Tag struct {
	val any
}

func NewTagComid(c comid.ConciseMidTag) (*Tag, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}
	return &Tag{val: &c}, nil
}

func NewTagCoswid(s swid.SoftwareIdentity) *Tag {
	return &Tag{val: &s}
}

func NewTagCotl(content []byte) *Tag {
	return &Tag{val: append(cbor.RawMessage(nil), content...)}
}

func (t Tag) AsComid() (*comid.ConciseMidTag, bool) {
	c, ok := t.val.(*comid.ConciseMidTag)
	return c, ok
}

func (t Tag) AsCoswid() (*swid.SoftwareIdentity, bool) {
	s, ok := t.val.(*swid.SoftwareIdentity)
	return s, ok
}

func (t Tag) AsUnknown() (codec.TaggedUnknown, bool) {
	u, ok := t.val.(codec.TaggedUnknown)
	return u, ok
}

func (t Tag) MarshalCBOR() ([]byte, error) {
	switch v := t.val.(type) {
	case *comid.ConciseMidTag:
		return v.ToCBOR()
	case *swid.SoftwareIdentity:
		content, err := v.ToCBOR()
		if err != nil {
			return nil, err
		}
		return codec.BuildTag(TagCoswid, content)
	case cbor.RawMessage:
		return codec.BuildTag(TagCotl, v)
	case codec.TaggedUnknown:
		return v.MarshalCBOR()
	default:
		return nil, fmt.Errorf("%w: tag entry is unset", codec.ErrInvalidFormat)
	}
}

func (t *Tag) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil {
		return fmt.Errorf("%w: corim tags entries must be tagged", codec.ErrInvalidFormat)
	}
	if !tagRegistry.Knows(num) {
		// The tags list permits extensions: keep the item byte-for-byte.
		var u codec.TaggedUnknown
		if err := u.UnmarshalCBOR(data); err != nil {
			return err
		}
		t.val = u
		return nil
	}
	val, err := tagRegistry.Dispatch(num, content)
	if err != nil {
		return err
	}
	t.val = val
	return nil
}

// Locator points at a dependent CoRIM, optionally pinned by a thumbprint.
type Locator struct {
	Href       codec.OneOrMore[string] `cbor:"0,keyasint"`
	Thumbprint *swid.HashEntry         `cbor:"1,keyasint,omitempty"`
}

func (l *Locator) UnmarshalCBOR(data []byte) error {
	var hrefRaw, thumbRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &hrefRaw,
		1: &thumbRaw,
	})
	if err != nil {
		return fmt.Errorf("corim-locator-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: corim-locator-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if hrefRaw == nil {
		return fmt.Errorf("%w: corim-locator-map href", codec.ErrMissingRequiredField)
	}

	var out Locator
	if err := codec.Unmarshal(hrefRaw, &out.Href); err != nil {
		return fmt.Errorf("%w: href", codec.ErrInvalidFormat)
	}
	if thumbRaw != nil {
		out.Thumbprint = &swid.HashEntry{}
		if err := codec.Unmarshal(thumbRaw, out.Thumbprint); err != nil {
			return fmt.Errorf("%w: thumbprint: %v", codec.ErrInvalidFormat, err)
		}
	}
	*l = out
	return nil
}

// Profile is the profile-type-choice: a URI or a tagged OID.
type Profile struct {
	val any
}

func NewProfileURI(uri string) (*Profile, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty profile uri", codec.ErrInvalidFormat)
	}
	return &Profile{val: uri}, nil
}

func NewProfileOID(s string) (*Profile, error) {
	o, err := comid.ParseOID(s)
	if err != nil {
		return nil, err
	}
	return &Profile{val: o}, nil
}

func (p Profile) String() string {
	switch v := p.val.(type) {
	case string:
		return v
	case comid.OID:
		return v.String()
	default:
		return ""
	}
}

func (p Profile) MarshalCBOR() ([]byte, error) {
	switch v := p.val.(type) {
	case string:
		return codec.Marshal(v)
	case comid.OID:
		content, err := codec.Marshal([]byte(v))
		if err != nil {
			return nil, err
		}
		return codec.BuildTag(comid.TagOID, content)
	default:
		return nil, fmt.Errorf("%w: profile is unset", codec.ErrInvalidFormat)
	}
}

func (p *Profile) UnmarshalCBOR(data []byte) error {
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		if num != comid.TagOID {
			return fmt.Errorf("%w: profile tag %d", codec.ErrUnrecognizedTag, num)
		}
		var o comid.OID
		if err := codec.Unmarshal(content, &o); err != nil {
			return err
		}
		p.val = o
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err == nil && s != "" {
		p.val = s
		return nil
	}
	return fmt.Errorf("%w: profile", codec.ErrNoMatchingVariant)
}

// Time is a CBOR epoch time (tag 1) with one-second resolution.
type Time struct {
	time.Time
}

func NewTime(t time.Time) Time {
	return Time{time.Unix(t.Unix(), 0).UTC()}
}

func (t Time) MarshalCBOR() ([]byte, error) {
	content, err := codec.Marshal(t.Unix())
	if err != nil {
		return nil, err
	}
	return codec.BuildTag(1, content)
}

func (t *Time) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil || num != 1 {
		return fmt.Errorf("%w: time requires tag 1", codec.ErrInvalidFormat)
	}
	var secs int64
	if err := codec.Unmarshal(content, &secs); err != nil {
		return fmt.Errorf("%w: time must be an integer", codec.ErrInvalidFormat)
	}
	*t = Time{time.Unix(secs, 0).UTC()}
	return nil
}

// Validity bounds the period a manifest (or signature) may be relied on.
type Validity struct {
	NotBefore *Time `cbor:"0,keyasint,omitempty"`
	NotAfter  Time  `cbor:"1,keyasint"`
}

func (v Validity) Valid() error {
	if v.NotAfter.IsZero() {
		return fmt.Errorf("%w: validity-map not-after", codec.ErrMissingRequiredField)
	}
	if v.NotBefore != nil && v.NotBefore.After(v.NotAfter.Time) {
		return fmt.Errorf("%w: not-before is after not-after", codec.ErrInvalidFormat)
	}
	return nil
}

func (v Validity) MarshalCBOR() ([]byte, error) {
	if err := v.Valid(); err != nil {
		return nil, err
	}
	type validity Validity
	return codec.Marshal(validity(v))
}

func (v *Validity) UnmarshalCBOR(data []byte) error {
	var beforeRaw, afterRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &beforeRaw,
		1: &afterRaw,
	})
	if err != nil {
		return fmt.Errorf("validity-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: validity-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if afterRaw == nil {
		return fmt.Errorf("%w: validity-map not-after", codec.ErrMissingRequiredField)
	}

	var out Validity
	if beforeRaw != nil {
		out.NotBefore = &Time{}
		if err := codec.Unmarshal(beforeRaw, out.NotBefore); err != nil {
			return err
		}
	}
	if err := codec.Unmarshal(afterRaw, &out.NotAfter); err != nil {
		return err
	}
	if err := out.Valid(); err != nil {
		return err
	}
	*v = out
	return nil
}

// EntityRole qualifies what an entity did in relation to the manifest.
type EntityRole int64

const (
	RoleManifestCreator EntityRole = 1
	RoleManifestSigner  EntityRole = 2
)

func (r EntityRole) Valid() error {
	switch r {
	case RoleManifestCreator, RoleManifestSigner:
		return nil
	default:
		return fmt.Errorf("%w: corim role %d", codec.ErrInvalidFormat, r)
	}
}

// Entity is an authorship record for the manifest.
type Entity struct {
	Name  string
	RegID *string
	Roles []EntityRole

	Extensions codec.Extensions
}

func (e Entity) Valid() error {
	if e.Name == "" {
		return fmt.Errorf("%w: entity-name", codec.ErrMissingRequiredField)
	}
	if len(e.Roles) == 0 {
		return fmt.Errorf("%w: entity role", codec.ErrMissingRequiredField)
	}
	seen := util.NewSet[EntityRole]()
	for _, r := range e.Roles {
		if err := r.Valid(); err != nil {
			return err
		}
		if seen.Has(r) {
			return fmt.Errorf("%w: duplicate entity role %d", codec.ErrInvalidFormat, r)
		}
		seen.Add(r)
	}
	return nil
}

func (e Entity) MarshalCBOR() ([]byte, error) {
	if err := e.Valid(); err != nil {
		return nil, err
	}
	fields := make(map[int64]cbor.RawMessage, 3)
	raw, err := codec.Marshal(e.Name)
	if err != nil {
		return nil, err
	}
	fields[0] = raw
	if e.RegID != nil {
		raw, err := codec.Marshal(*e.RegID)
		if err != nil {
			return nil, err
		}
		fields[1] = raw
	}
	raw, err = codec.Marshal(e.Roles)
	if err != nil {
		return nil, err
	}
	fields[2] = raw
	return codec.JoinMap(fields, e.Extensions)
}

func (e *Entity) UnmarshalCBOR(data []byte) error {
	var nameRaw, regRaw, rolesRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &nameRaw,
		1: &regRaw,
		2: &rolesRaw,
	})
	if err != nil {
		return fmt.Errorf("corim-entity-map: %w", err)
	}
	if nameRaw == nil {
		return fmt.Errorf("%w: entity-name", codec.ErrMissingRequiredField)
	}
	if rolesRaw == nil {
		return fmt.Errorf("%w: entity role", codec.ErrMissingRequiredField)
	}

	var out Entity
	if err := codec.Unmarshal(nameRaw, &out.Name); err != nil {
		return fmt.Errorf("%w: entity-name must be text", codec.ErrInvalidFormat)
	}
	if regRaw != nil {
		var s string
		if err := codec.Unmarshal(regRaw, &s); err != nil {
			return fmt.Errorf("%w: reg-id must be a uri", codec.ErrInvalidFormat)
		}
		out.RegID = &s
	}
	if err := codec.Unmarshal(rolesRaw, &out.Roles); err != nil {
		return fmt.Errorf("%w: entity roles", codec.ErrInvalidFormat)
	}
	out.Extensions = exts
	if err := out.Valid(); err != nil {
		return err
	}
	*e = out
	return nil
}

// UnsignedCorim is the unsigned-corim-map (the content of CBOR tag 501).
type UnsignedCorim struct {
	ID            CorimID
	Tags          []Tag
	DependentRims []Locator
	Profile       *Profile
	RimValidity   *Validity
	Entities      []Entity

	Extensions codec.Extensions
}

func (u UnsignedCorim) Valid() error {
	if u.ID.val == nil {
		return fmt.Errorf("%w: corim id", codec.ErrMissingRequiredField)
	}
	if len(u.Tags) == 0 {
		return fmt.Errorf("%w: corim tags", codec.ErrMissingRequiredField)
	}
	for _, e := range u.Entities {
		if err := e.Valid(); err != nil {
			return err
		}
	}
	return nil
}

// ComidTagIDs returns the tag-ids of every CoMID carried by the manifest.
func (u UnsignedCorim) ComidTagIDs() []string {
	var ids []string
	for _, t := range u.Tags {
		if c, ok := t.AsComid(); ok {
			ids = append(ids, c.TagIdentity.TagID.String())
		}
	}
	return ids
}

func (u UnsignedCorim) MarshalCBOR() ([]byte, error) {
	if err := u.Valid(); err != nil {
		return nil, err
	}

	fields := make(map[int64]cbor.RawMessage, 6)
	raw, err := codec.Marshal(u.ID)
	if err != nil {
		return nil, err
	}
	fields[0] = raw
	raw, err = codec.Marshal(u.Tags)
	if err != nil {
		return nil, err
	}
	fields[1] = raw
	if len(u.DependentRims) > 0 {
		raw, err := codec.Marshal(u.DependentRims)
		if err != nil {
			return nil, err
		}
		fields[2] = raw
	}
	if u.Profile != nil {
		raw, err := codec.Marshal(u.Profile)
		if err != nil {
			return nil, err
		}
		fields[3] = raw
	}
	if u.RimValidity != nil {
		raw, err := codec.Marshal(u.RimValidity)
		if err != nil {
			return nil, err
		}
		fields[4] = raw
	}
	if len(u.Entities) > 0 {
		raw, err := codec.Marshal(u.Entities)
		if err != nil {
			return nil, err
		}
		fields[5] = raw
	}
	return codec.JoinMap(fields, u.Extensions)
}

func (u *UnsignedCorim) UnmarshalCBOR(data []byte) error {
	// The context decides whether tag 501 is present; accept both here.
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		if num != TagUnsignedCorim {
			return fmt.Errorf("%w: corim tag %d", codec.ErrUnrecognizedTag, num)
		}
		data = content
	}

	var idRaw, tagsRaw, depRaw, profileRaw, validityRaw, entitiesRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &idRaw,
		1: &tagsRaw,
		2: &depRaw,
		3: &profileRaw,
		4: &validityRaw,
		5: &entitiesRaw,
	})
	if err != nil {
		return fmt.Errorf("corim-map: %w", err)
	}
	if idRaw == nil {
		return fmt.Errorf("%w: corim id", codec.ErrMissingRequiredField)
	}
	if tagsRaw == nil {
		return fmt.Errorf("%w: corim tags", codec.ErrMissingRequiredField)
	}

	var out UnsignedCorim
	if err := codec.Unmarshal(idRaw, &out.ID); err != nil {
		return err
	}
	if err := codec.Unmarshal(tagsRaw, &out.Tags); err != nil {
		return err
	}
	if len(out.Tags) == 0 {
		return fmt.Errorf("%w: corim tags list is empty", codec.ErrMissingRequiredField)
	}
	if depRaw != nil {
		if err := codec.Unmarshal(depRaw, &out.DependentRims); err != nil {
			return err
		}
	}
	if profileRaw != nil {
		out.Profile = &Profile{}
		if err := codec.Unmarshal(profileRaw, out.Profile); err != nil {
			return err
		}
	}
	if validityRaw != nil {
		out.RimValidity = &Validity{}
		if err := codec.Unmarshal(validityRaw, out.RimValidity); err != nil {
			return err
		}
	}
	if entitiesRaw != nil {
		if err := codec.Unmarshal(entitiesRaw, &out.Entities); err != nil {
			return err
		}
	}
	out.Extensions = exts
	*u = out
	return nil
}

// ToCBOR encodes the manifest with its CBOR tag number 501.
func (u UnsignedCorim) ToCBOR() ([]byte, error) {
	content, err := codec.Marshal(u)
	if err != nil {
		return nil, err
	}
	return codec.BuildTag(TagUnsignedCorim, content)
}

// Corim is the top-level type choice: an unsigned manifest (tag 501) or a
// signed one (tag 18). Exactly one side is set.
type Corim struct {
	Unsigned *UnsignedCorim
	Signed   *SignedCorim
}

// UnmarshalCorim dispatches on the outermost tag. Any other tag is an
// unrecognized mandatory tag.
func UnmarshalCorim(data []byte) (*Corim, error) {
	if !codec.IsTag(data) {
		return nil, fmt.Errorf("%w: corim must be tagged", codec.ErrInvalidFormat)
	}
	var rt cbor.RawTag
	if err := codec.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("%w: malformed corim", codec.ErrInvalidFormat)
	}

	switch rt.Number {
	case TagUnsignedCorim:
		var u UnsignedCorim
		if err := codec.Unmarshal(rt.Content, &u); err != nil {
			return nil, err
		}
		return &Corim{Unsigned: &u}, nil
	case TagCOSESign1:
		var s SignedCorim
		if err := s.UnmarshalCBOR(data); err != nil {
			return nil, err
		}
		return &Corim{Signed: &s}, nil
	default:
		return nil, fmt.Errorf("%w: corim tag %d", codec.ErrUnrecognizedTag, rt.Number)
	}
}
