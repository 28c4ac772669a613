/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/kentakayama/go-corim/internal/codec"
)

// Each triple record is a fixed-arity CBOR array; an array of any other
// length is rejected with ErrArityMismatch rather than truncated or padded.

func splitRecord(data []byte, name string, arity int) ([]cbor.RawMessage, error) {
	var a []cbor.RawMessage
	if err := codec.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s must be an array", codec.ErrInvalidFormat, name)
	}
	if len(a) != arity {
		return nil, fmt.Errorf("%w: %s has %d elements, want %d", codec.ErrArityMismatch, name, len(a), arity)
	}
	return a, nil
}

// ReferenceTriple links an environment to the reference measurements a
// verifier should expect for it.
type ReferenceTriple struct {
	Environment  Environment
	Measurements []Measurement
}

func (t ReferenceTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Measurements) == 0 {
		return nil, fmt.Errorf("%w: reference triple claims", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Environment, t.Measurements})
}

func (t *ReferenceTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "reference triple", 2)
	if err != nil {
		return err
	}
	var out ReferenceTriple
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Measurements); err != nil {
		return err
	}
	if len(out.Measurements) == 0 {
		return fmt.Errorf("%w: reference triple claims", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// EndorsedTriple states measurements that hold whenever the environment's
// condition is met.
type EndorsedTriple struct {
	Environment  Environment
	Measurements []Measurement
}

func (t EndorsedTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Measurements) == 0 {
		return nil, fmt.Errorf("%w: endorsed triple claims", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Environment, t.Measurements})
}

func (t *EndorsedTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "endorsed triple", 2)
	if err != nil {
		return err
	}
	var out EndorsedTriple
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Measurements); err != nil {
		return err
	}
	if len(out.Measurements) == 0 {
		return fmt.Errorf("%w: endorsed triple claims", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// IdentityTriple binds identity key material to an environment.
type IdentityTriple struct {
	Environment Environment
	Keys        []CryptoKey
}

func (t IdentityTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Keys) == 0 {
		return nil, fmt.Errorf("%w: identity triple keys", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Environment, t.Keys})
}

func (t *IdentityTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "identity triple", 2)
	if err != nil {
		return err
	}
	var out IdentityTriple
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Keys); err != nil {
		return err
	}
	if len(out.Keys) == 0 {
		return fmt.Errorf("%w: identity triple keys", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// AttestKeyTriple binds attestation verification keys to an environment.
type AttestKeyTriple struct {
	Environment Environment
	Keys        []CryptoKey
}

func (t AttestKeyTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Keys) == 0 {
		return nil, fmt.Errorf("%w: attest-key triple keys", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Environment, t.Keys})
}

func (t *AttestKeyTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "attest-key triple", 2)
	if err != nil {
		return err
	}
	var out AttestKeyTriple
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Keys); err != nil {
		return err
	}
	if len(out.Keys) == 0 {
		return fmt.Errorf("%w: attest-key triple keys", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// Domain is the domain-type-choice: uint, text, tagged UUID or tagged OID.
type Domain struct {
	val any
}

func NewDomainUint(v uint64) *Domain {
	return &Domain{val: v}
}

func NewDomainText(s string) *Domain {
	return &Domain{val: s}
}

func NewDomainUUID(s string) (*Domain, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &Domain{val: u}, nil
}

func NewDomainOID(s string) (*Domain, error) {
	o, err := ParseOID(s)
	if err != nil {
		return nil, err
	}
	return &Domain{val: o}, nil
}

func (d Domain) MarshalCBOR() ([]byte, error) {
	switch v := d.val.(type) {
	case uint64, string:
		return codec.Marshal(v)
	case UUID:
		return marshalTagged(TagUUID, v)
	case OID:
		return marshalTagged(TagOID, v)
	default:
		return nil, fmt.Errorf("%w: domain is unset", codec.ErrInvalidFormat)
	}
}

func (d *Domain) UnmarshalCBOR(data []byte) error {
	if codec.IsTag(data) {
		num, content, err := codec.SplitTag(data)
		if err != nil {
			return err
		}
		switch num {
		case TagUUID:
			var u UUID
			if err := codec.Unmarshal(content, &u); err != nil {
				return err
			}
			d.val = u
		case TagOID:
			var o OID
			if err := codec.Unmarshal(content, &o); err != nil {
				return err
			}
			d.val = o
		default:
			return fmt.Errorf("%w: domain tag %d", codec.ErrUnrecognizedTag, num)
		}
		return nil
	}
	var u uint64
	if err := codec.Unmarshal(data, &u); err == nil {
		d.val = u
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err == nil {
		d.val = s
		return nil
	}
	return fmt.Errorf("%w: domain", codec.ErrNoMatchingVariant)
}

// DomainDependencyTriple states that a domain depends on other domains.
type DomainDependencyTriple struct {
	Domain    Domain
	DependsOn []Domain
}

func (t DomainDependencyTriple) MarshalCBOR() ([]byte, error) {
	if len(t.DependsOn) == 0 {
		return nil, fmt.Errorf("%w: domain dependency targets", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Domain, t.DependsOn})
}

func (t *DomainDependencyTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "domain dependency triple", 2)
	if err != nil {
		return err
	}
	var out DomainDependencyTriple
	if err := codec.Unmarshal(a[0], &out.Domain); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.DependsOn); err != nil {
		return err
	}
	if len(out.DependsOn) == 0 {
		return fmt.Errorf("%w: domain dependency targets", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// DomainMembershipTriple states which environments belong to a domain.
type DomainMembershipTriple struct {
	Domain  Domain
	Members []Environment
}

func (t DomainMembershipTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Members) == 0 {
		return nil, fmt.Errorf("%w: domain members", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Domain, t.Members})
}

func (t *DomainMembershipTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "domain membership triple", 2)
	if err != nil {
		return err
	}
	var out DomainMembershipTriple
	if err := codec.Unmarshal(a[0], &out.Domain); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Members); err != nil {
		return err
	}
	if len(out.Members) == 0 {
		return fmt.Errorf("%w: domain members", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// CoswidTriple links an environment to the CoSWID tags describing it.
type CoswidTriple struct {
	Environment Environment
	TagIDs      []TagID
}

func (t CoswidTriple) MarshalCBOR() ([]byte, error) {
	if len(t.TagIDs) == 0 {
		return nil, fmt.Errorf("%w: coswid triple tag-ids", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Environment, t.TagIDs})
}

func (t *CoswidTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "coswid triple", 2)
	if err != nil {
		return err
	}
	var out CoswidTriple
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.TagIDs); err != nil {
		return err
	}
	if len(out.TagIDs) == 0 {
		return fmt.Errorf("%w: coswid triple tag-ids", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// StatefulEnvironment pairs an environment with the measurements that must
// already hold for a condition to match.
type StatefulEnvironment struct {
	Environment Environment
	Claims      []Measurement
}

func (s StatefulEnvironment) MarshalCBOR() ([]byte, error) {
	if len(s.Claims) == 0 {
		return nil, fmt.Errorf("%w: stateful environment claims", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{s.Environment, s.Claims})
}

func (s *StatefulEnvironment) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "stateful environment", 2)
	if err != nil {
		return err
	}
	var out StatefulEnvironment
	if err := codec.Unmarshal(a[0], &out.Environment); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Claims); err != nil {
		return err
	}
	if len(out.Claims) == 0 {
		return fmt.Errorf("%w: stateful environment claims", codec.ErrMissingRequiredField)
	}
	*s = out
	return nil
}

// ConditionalSeriesRecord is one step of an endorsement series: when the
// selection measurements match, the addition measurements are endorsed.
type ConditionalSeriesRecord struct {
	Selection []Measurement
	Addition  []Measurement
}

func (r ConditionalSeriesRecord) MarshalCBOR() ([]byte, error) {
	if len(r.Selection) == 0 || len(r.Addition) == 0 {
		return nil, fmt.Errorf("%w: conditional series record", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{r.Selection, r.Addition})
}

func (r *ConditionalSeriesRecord) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "conditional series record", 2)
	if err != nil {
		return err
	}
	var out ConditionalSeriesRecord
	if err := codec.Unmarshal(a[0], &out.Selection); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Addition); err != nil {
		return err
	}
	if len(out.Selection) == 0 || len(out.Addition) == 0 {
		return fmt.Errorf("%w: conditional series record", codec.ErrMissingRequiredField)
	}
	*r = out
	return nil
}

// ConditionalEndorsementSeriesTriple endorses a chain of measurement
// changes rooted in one condition.
type ConditionalEndorsementSeriesTriple struct {
	Condition StatefulEnvironment
	Series    []ConditionalSeriesRecord
}

func (t ConditionalEndorsementSeriesTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Series) == 0 {
		return nil, fmt.Errorf("%w: conditional endorsement series", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Condition, t.Series})
}

func (t *ConditionalEndorsementSeriesTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "conditional endorsement series triple", 2)
	if err != nil {
		return err
	}
	var out ConditionalEndorsementSeriesTriple
	if err := codec.Unmarshal(a[0], &out.Condition); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Series); err != nil {
		return err
	}
	if len(out.Series) == 0 {
		return fmt.Errorf("%w: conditional endorsement series", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// ConditionalEndorsementTriple states endorsements that apply only while
// every condition holds.
type ConditionalEndorsementTriple struct {
	Conditions   []StatefulEnvironment
	Endorsements []EndorsedTriple
}

func (t ConditionalEndorsementTriple) MarshalCBOR() ([]byte, error) {
	if len(t.Conditions) == 0 || len(t.Endorsements) == 0 {
		return nil, fmt.Errorf("%w: conditional endorsement triple", codec.ErrMissingRequiredField)
	}
	return codec.Marshal([]any{t.Conditions, t.Endorsements})
}

func (t *ConditionalEndorsementTriple) UnmarshalCBOR(data []byte) error {
	a, err := splitRecord(data, "conditional endorsement triple", 2)
	if err != nil {
		return err
	}
	var out ConditionalEndorsementTriple
	if err := codec.Unmarshal(a[0], &out.Conditions); err != nil {
		return err
	}
	if err := codec.Unmarshal(a[1], &out.Endorsements); err != nil {
		return err
	}
	if len(out.Conditions) == 0 || len(out.Endorsements) == 0 {
		return fmt.Errorf("%w: conditional endorsement triple", codec.ErrMissingRequiredField)
	}
	*t = out
	return nil
}

// Triples collects the relationship records of a CoMID tag. At least one
// category (or a preserved extension entry) must be present. Categories
// this implementation does not interpret round-trip through Extensions.
type Triples struct {
	ReferenceTriples        []ReferenceTriple
	EndorsedTriples         []EndorsedTriple
	IdentityTriples         []IdentityTriple
	AttestKeyTriples        []AttestKeyTriple
	DomainDependencyTriples []DomainDependencyTriple
	DomainMembershipTriples []DomainMembershipTriple
	CoswidTriples           []CoswidTriple
	CondSeriesTriples       []ConditionalEndorsementSeriesTriple
	CondEndorsementTriples  []ConditionalEndorsementTriple

	Extensions codec.Extensions
}

func (t Triples) Valid() error {
	if len(t.ReferenceTriples) == 0 && len(t.EndorsedTriples) == 0 &&
		len(t.IdentityTriples) == 0 && len(t.AttestKeyTriples) == 0 &&
		len(t.DomainDependencyTriples) == 0 && len(t.DomainMembershipTriples) == 0 &&
		len(t.CoswidTriples) == 0 && len(t.CondSeriesTriples) == 0 &&
		len(t.CondEndorsementTriples) == 0 && t.Extensions.IsEmpty() {
		return ErrEmptyTriples
	}
	return nil
}

func (t Triples) MarshalCBOR() ([]byte, error) {
	if err := t.Valid(); err != nil {
		return nil, err
	}

	fields := make(map[int64]cbor.RawMessage, 9)
	put := func(key int64, v any, n int) error {
		if n == 0 {
			return nil
		}
		raw, err := codec.Marshal(v)
		if err != nil {
			return err
		}
		fields[key] = raw
		return nil
	}
	if err := put(0, t.ReferenceTriples, len(t.ReferenceTriples)); err != nil {
		return nil, err
	}
	if err := put(1, t.EndorsedTriples, len(t.EndorsedTriples)); err != nil {
		return nil, err
	}
	if err := put(2, t.IdentityTriples, len(t.IdentityTriples)); err != nil {
		return nil, err
	}
	if err := put(3, t.AttestKeyTriples, len(t.AttestKeyTriples)); err != nil {
		return nil, err
	}
	if err := put(4, t.DomainDependencyTriples, len(t.DomainDependencyTriples)); err != nil {
		return nil, err
	}
	if err := put(5, t.DomainMembershipTriples, len(t.DomainMembershipTriples)); err != nil {
		return nil, err
	}
	if err := put(6, t.CoswidTriples, len(t.CoswidTriples)); err != nil {
		return nil, err
	}
	if err := put(8, t.CondSeriesTriples, len(t.CondSeriesTriples)); err != nil {
		return nil, err
	}
	if err := put(10, t.CondEndorsementTriples, len(t.CondEndorsementTriples)); err != nil {
		return nil, err
	}
	return codec.JoinMap(fields, t.Extensions)
}

func (t *Triples) UnmarshalCBOR(data []byte) error {
	var raws [11]cbor.RawMessage
	keys := []int64{0, 1, 2, 3, 4, 5, 6, 8, 10}
	slots := make(map[int64]*cbor.RawMessage, len(keys))
	for _, k := range keys {
		slots[k] = &raws[k]
	}
	exts, err := codec.SplitMap(data, slots)
	if err != nil {
		return fmt.Errorf("triples-map: %w", err)
	}

	var out Triples
	targets := map[int64]any{
		0:  &out.ReferenceTriples,
		1:  &out.EndorsedTriples,
		2:  &out.IdentityTriples,
		3:  &out.AttestKeyTriples,
		4:  &out.DomainDependencyTriples,
		5:  &out.DomainMembershipTriples,
		6:  &out.CoswidTriples,
		8:  &out.CondSeriesTriples,
		10: &out.CondEndorsementTriples,
	}
	for _, k := range keys {
		raw := raws[k]
		if raw == nil {
			continue
		}
		if err := codec.Unmarshal(raw, targets[k]); err != nil {
			return err
		}
		if reflect.ValueOf(targets[k]).Elem().Len() == 0 {
			return fmt.Errorf("%w: triples-map key %d is an empty list", codec.ErrMissingRequiredField, k)
		}
	}
	out.Extensions = exts
	if err := out.Valid(); err != nil {
		return err
	}
	*t = out
	return nil
}

func environmentsEqual(a, b Environment) bool {
	return reflect.DeepEqual(a, b)
}
