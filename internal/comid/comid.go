/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package comid implements the Concise Module Identifier (CoMID) tag:
// one attestable unit described by a tag identity, authorship entities,
// links to related tags and a set of relationship triples (CBOR tag 506).
package comid

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/kentakayama/go-corim/internal/codec"
	"github.com/kentakayama/go-corim/internal/util"
)

// TagID is the tag-id-type-choice: a text string or a bare 16-byte UUID.
// Probing order is text first, then UUID.
type TagID struct {
	val any
}

func NewTagIDText(s string) (*TagID, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty tag-id", codec.ErrInvalidFormat)
	}
	return &TagID{val: s}, nil
}

func NewTagIDUUID(s string) (*TagID, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &TagID{val: u}, nil
}

func (t TagID) AsText() (string, bool) {
	s, ok := t.val.(string)
	return s, ok
}

func (t TagID) AsUUID() (UUID, bool) {
	u, ok := t.val.(UUID)
	return u, ok
}

func (t TagID) String() string {
	switch v := t.val.(type) {
	case string:
		return v
	case UUID:
		return v.String()
	default:
		return ""
	}
}

func (t TagID) MarshalCBOR() ([]byte, error) {
	switch v := t.val.(type) {
	case string, UUID:
		return codec.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: tag-id is unset", codec.ErrInvalidFormat)
	}
}

func (t *TagID) UnmarshalCBOR(data []byte) error {
	var s string
	if err := codec.Unmarshal(data, &s); err == nil {
		if s == "" {
			return fmt.Errorf("%w: empty tag-id", codec.ErrInvalidFormat)
		}
		t.val = s
		return nil
	}
	var u UUID
	if err := codec.Unmarshal(data, &u); err == nil {
		t.val = u
		return nil
	}
	return fmt.Errorf("%w: tag-id", codec.ErrNoMatchingVariant)
}

// TagIdentity names a CoMID tag globally and versions it.
type TagIdentity struct {
	TagID      TagID   `cbor:"0,keyasint"`
	TagVersion *uint64 `cbor:"1,keyasint,omitempty"`
}

func (t *TagIdentity) UnmarshalCBOR(data []byte) error {
	var idRaw, versionRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &idRaw,
		1: &versionRaw,
	})
	if err != nil {
		return fmt.Errorf("tag-identity-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: tag-identity-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if idRaw == nil {
		return fmt.Errorf("%w: tag-identity-map tag-id", codec.ErrMissingRequiredField)
	}

	var out TagIdentity
	if err := codec.Unmarshal(idRaw, &out.TagID); err != nil {
		return err
	}
	if versionRaw != nil {
		var v uint64
		if err := codec.Unmarshal(versionRaw, &v); err != nil {
			return fmt.Errorf("%w: tag-version must be an unsigned integer", codec.ErrInvalidFormat)
		}
		out.TagVersion = &v
	}
	*t = out
	return nil
}

// Role qualifies what an entity did in relation to the tag.
type Role int64

const (
	RoleTagCreator Role = 0
	RoleCreator    Role = 1
	RoleMaintainer Role = 2
)

func (r Role) Valid() error {
	switch r {
	case RoleTagCreator, RoleCreator, RoleMaintainer:
		return nil
	default:
		return fmt.Errorf("%w: comid role %d", codec.ErrInvalidFormat, r)
	}
}

// Entity is an authorship record for the tag.
type Entity struct {
	Name  string
	RegID *string
	Roles []Role

	Extensions codec.Extensions
}

func (e Entity) Valid() error {
	if e.Name == "" {
		return fmt.Errorf("%w: entity-name", codec.ErrMissingRequiredField)
	}
	if len(e.Roles) == 0 {
		return fmt.Errorf("%w: entity role", codec.ErrMissingRequiredField)
	}
	seen := util.NewSet[Role]()
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
	fields[31] = raw
	if e.RegID != nil {
		raw, err := codec.Marshal(*e.RegID)
		if err != nil {
			return nil, err
		}
		fields[32] = raw
	}
	raw, err = codec.Marshal(e.Roles)
	if err != nil {
		return nil, err
	}
	fields[33] = raw
	return codec.JoinMap(fields, e.Extensions)
}

func (e *Entity) UnmarshalCBOR(data []byte) error {
	var nameRaw, regRaw, rolesRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		31: &nameRaw,
		32: &regRaw,
		33: &rolesRaw,
	})
	if err != nil {
		return fmt.Errorf("comid-entity-map: %w", err)
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

// TagRel describes how this tag relates to a linked one.
type TagRel int64

const (
	TagRelSupplements TagRel = 0
	TagRelReplaces    TagRel = 1
)

func (r TagRel) Valid() error {
	switch r {
	case TagRelSupplements, TagRelReplaces:
		return nil
	default:
		return fmt.Errorf("%w: tag-rel %d", codec.ErrInvalidFormat, r)
	}
}

// LinkedTag references another tag and the relationship to it.
type LinkedTag struct {
	LinkedTagID TagID  `cbor:"0,keyasint"`
	Rel         TagRel `cbor:"1,keyasint"`
}

func (l *LinkedTag) UnmarshalCBOR(data []byte) error {
	var idRaw, relRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &idRaw,
		1: &relRaw,
	})
	if err != nil {
		return fmt.Errorf("linked-tag-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: linked-tag-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if idRaw == nil || relRaw == nil {
		return fmt.Errorf("%w: linked-tag-map", codec.ErrMissingRequiredField)
	}

	var out LinkedTag
	if err := codec.Unmarshal(idRaw, &out.LinkedTagID); err != nil {
		return err
	}
	if err := codec.Unmarshal(relRaw, &out.Rel); err != nil {
		return fmt.Errorf("%w: tag-rel", codec.ErrInvalidFormat)
	}
	if err := out.Rel.Valid(); err != nil {
		return err
	}
	*l = out
	return nil
}

// ConciseMidTag is the CoMID tag body (the content of CBOR tag 506).
type ConciseMidTag struct {
	Language    *string
	TagIdentity TagIdentity
	Entities    []Entity
	LinkedTags  []LinkedTag
	Triples     Triples

	Extensions codec.Extensions
}

// AddReferenceValue appends a measurement to the reference triple for the
// given environment, creating the triple when none exists yet.
func (c *ConciseMidTag) AddReferenceValue(env Environment, m Measurement) error {
	if err := env.Valid(); err != nil {
		return err
	}
	if err := m.Val.Valid(); err != nil {
		return err
	}
	for i := range c.Triples.ReferenceTriples {
		if environmentsEqual(c.Triples.ReferenceTriples[i].Environment, env) {
			c.Triples.ReferenceTriples[i].Measurements = append(c.Triples.ReferenceTriples[i].Measurements, m)
			return nil
		}
	}
	c.Triples.ReferenceTriples = append(c.Triples.ReferenceTriples, ReferenceTriple{
		Environment:  env,
		Measurements: []Measurement{m},
	})
	return nil
}

// AddEndorsedValue appends a measurement to the endorsed triple for the
// given environment, creating the triple when none exists yet.
func (c *ConciseMidTag) AddEndorsedValue(env Environment, m Measurement) error {
	if err := env.Valid(); err != nil {
		return err
	}
	if err := m.Val.Valid(); err != nil {
		return err
	}
	for i := range c.Triples.EndorsedTriples {
		if environmentsEqual(c.Triples.EndorsedTriples[i].Environment, env) {
			c.Triples.EndorsedTriples[i].Measurements = append(c.Triples.EndorsedTriples[i].Measurements, m)
			return nil
		}
	}
	c.Triples.EndorsedTriples = append(c.Triples.EndorsedTriples, EndorsedTriple{
		Environment:  env,
		Measurements: []Measurement{m},
	})
	return nil
}

func (c ConciseMidTag) Valid() error {
	if c.TagIdentity.TagID.val == nil {
		return fmt.Errorf("%w: tag-identity", codec.ErrMissingRequiredField)
	}
	for _, e := range c.Entities {
		if err := e.Valid(); err != nil {
			return err
		}
	}
	return c.Triples.Valid()
}

func (c ConciseMidTag) MarshalCBOR() ([]byte, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}

	fields := make(map[int64]cbor.RawMessage, 5)
	if c.Language != nil {
		raw, err := codec.Marshal(*c.Language)
		if err != nil {
			return nil, err
		}
		fields[0] = raw
	}
	raw, err := codec.Marshal(c.TagIdentity)
	if err != nil {
		return nil, err
	}
	fields[1] = raw
	if len(c.Entities) > 0 {
		raw, err := codec.Marshal(c.Entities)
		if err != nil {
			return nil, err
		}
		fields[2] = raw
	}
	if len(c.LinkedTags) > 0 {
		raw, err := codec.Marshal(c.LinkedTags)
		if err != nil {
			return nil, err
		}
		fields[3] = raw
	}
	raw, err = codec.Marshal(c.Triples)
	if err != nil {
		return nil, err
	}
	fields[4] = raw
	return codec.JoinMap(fields, c.Extensions)
}

func (c *ConciseMidTag) UnmarshalCBOR(data []byte) error {
	var langRaw, identityRaw, entitiesRaw, linkedRaw, triplesRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &langRaw,
		1: &identityRaw,
		2: &entitiesRaw,
		3: &linkedRaw,
		4: &triplesRaw,
	})
	if err != nil {
		return fmt.Errorf("concise-mid-tag: %w", err)
	}
	if identityRaw == nil {
		return fmt.Errorf("%w: tag-identity", codec.ErrMissingRequiredField)
	}
	if triplesRaw == nil {
		return fmt.Errorf("%w: triples", codec.ErrMissingRequiredField)
	}

	var out ConciseMidTag
	if langRaw != nil {
		var s string
		if err := codec.Unmarshal(langRaw, &s); err != nil {
			return fmt.Errorf("%w: language must be text", codec.ErrInvalidFormat)
		}
		out.Language = &s
	}
	if err := codec.Unmarshal(identityRaw, &out.TagIdentity); err != nil {
		return err
	}
	if entitiesRaw != nil {
		if err := codec.Unmarshal(entitiesRaw, &out.Entities); err != nil {
			return err
		}
		if len(out.Entities) == 0 {
			return fmt.Errorf("%w: entities list is empty", codec.ErrMissingRequiredField)
		}
	}
	if linkedRaw != nil {
		if err := codec.Unmarshal(linkedRaw, &out.LinkedTags); err != nil {
			return err
		}
		if len(out.LinkedTags) == 0 {
			return fmt.Errorf("%w: linked-tags list is empty", codec.ErrMissingRequiredField)
		}
	}
	if err := codec.Unmarshal(triplesRaw, &out.Triples); err != nil {
		return err
	}
	out.Extensions = exts
	*c = out
	return nil
}

// ToCBOR encodes the tag with its CBOR tag number 506.
func (c ConciseMidTag) ToCBOR() ([]byte, error) {
	content, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	return codec.BuildTag(TagConciseMidTag, content)
}
