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

	"github.com/kentakayama/go-corim/internal/codec"
)

// Environment identifies the class of a target, optionally narrowed to an
// instance and a group within that class.
type Environment struct {
	Class    *Class    `cbor:"0,keyasint,omitempty"`
	Instance *Instance `cbor:"1,keyasint,omitempty"`
	Group    *Group    `cbor:"2,keyasint,omitempty"`
}

func (e Environment) Valid() error {
	if e.Class == nil && e.Instance == nil && e.Group == nil {
		return ErrEmptyEnvironment
	}
	if e.Class != nil {
		if err := e.Class.Valid(); err != nil {
			return err
		}
	}
	return nil
}

func (e Environment) MarshalCBOR() ([]byte, error) {
	if err := e.Valid(); err != nil {
		return nil, err
	}
	type environment Environment
	return codec.Marshal(environment(e))
}

func (e *Environment) UnmarshalCBOR(data []byte) error {
	var classRaw, instanceRaw, groupRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &classRaw,
		1: &instanceRaw,
		2: &groupRaw,
	})
	if err != nil {
		return fmt.Errorf("environment-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: environment-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}

	var out Environment
	if classRaw != nil {
		out.Class = &Class{}
		if err := codec.Unmarshal(classRaw, out.Class); err != nil {
			return err
		}
	}
	if instanceRaw != nil {
		out.Instance = &Instance{}
		if err := codec.Unmarshal(instanceRaw, out.Instance); err != nil {
			return err
		}
	}
	if groupRaw != nil {
		out.Group = &Group{}
		if err := codec.Unmarshal(groupRaw, out.Group); err != nil {
			return err
		}
	}
	if err := out.Valid(); err != nil {
		return err
	}
	*e = out
	return nil
}

// Class describes a class of targets. At least one entry must be set.
type Class struct {
	ClassID *ClassID `cbor:"0,keyasint,omitempty"`
	Vendor  string   `cbor:"1,keyasint,omitempty"`
	Model   string   `cbor:"2,keyasint,omitempty"`
	Layer   *uint64  `cbor:"3,keyasint,omitempty"`
	Index   *uint64  `cbor:"4,keyasint,omitempty"`
}

func (c Class) Valid() error {
	if c.ClassID == nil && c.Vendor == "" && c.Model == "" && c.Layer == nil && c.Index == nil {
		return ErrEmptyClassMap
	}
	return nil
}

func (c Class) MarshalCBOR() ([]byte, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}
	type class Class
	return codec.Marshal(class(c))
}

func (c *Class) UnmarshalCBOR(data []byte) error {
	var idRaw, vendorRaw, modelRaw, layerRaw, indexRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &idRaw,
		1: &vendorRaw,
		2: &modelRaw,
		3: &layerRaw,
		4: &indexRaw,
	})
	if err != nil {
		return fmt.Errorf("class-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: class-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}

	var out Class
	if idRaw != nil {
		out.ClassID = &ClassID{}
		if err := codec.Unmarshal(idRaw, out.ClassID); err != nil {
			return err
		}
	}
	if vendorRaw != nil {
		if err := codec.Unmarshal(vendorRaw, &out.Vendor); err != nil {
			return fmt.Errorf("%w: vendor must be text", codec.ErrInvalidFormat)
		}
	}
	if modelRaw != nil {
		if err := codec.Unmarshal(modelRaw, &out.Model); err != nil {
			return fmt.Errorf("%w: model must be text", codec.ErrInvalidFormat)
		}
	}
	if layerRaw != nil {
		var v uint64
		if err := codec.Unmarshal(layerRaw, &v); err != nil {
			return fmt.Errorf("%w: layer must be an unsigned integer", codec.ErrInvalidFormat)
		}
		out.Layer = &v
	}
	if indexRaw != nil {
		var v uint64
		if err := codec.Unmarshal(indexRaw, &v); err != nil {
			return fmt.Errorf("%w: index must be an unsigned integer", codec.ErrInvalidFormat)
		}
		out.Index = &v
	}
	if err := out.Valid(); err != nil {
		return err
	}
	*c = out
	return nil
}

// classIDRegistry binds the class-id tag numbers to their constructors.
// Populated at init, read-only afterwards.
var classIDRegistry = codec.NewRegistry()

func init() {
	classIDRegistry.MustRegister(TagOID, func(content cbor.RawMessage) (any, error) {
		var o OID
		if err := codec.Unmarshal(content, &o); err != nil {
			return nil, err
		}
		return o, nil
	})
	classIDRegistry.MustRegister(TagUUID, func(content cbor.RawMessage) (any, error) {
		var u UUID
		if err := codec.Unmarshal(content, &u); err != nil {
			return nil, err
		}
		return u, nil
	})
	classIDRegistry.MustRegister(TagBytes, func(content cbor.RawMessage) (any, error) {
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return nil, fmt.Errorf("%w: tagged-bytes", codec.ErrInvalidFormat)
		}
		return b, nil
	})
}

// ClassID is a tagged choice: OID (tag 111), UUID (tag 37) or opaque bytes
// (tag 560). The tag is mandatory; an unknown tag is rejected.
type ClassID struct {
	val any
}

func NewClassIDOID(s string) (*ClassID, error) {
	o, err := ParseOID(s)
	if err != nil {
		return nil, err
	}
	return &ClassID{val: o}, nil
}

func NewClassIDUUID(s string) (*ClassID, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &ClassID{val: u}, nil
}

func NewClassIDBytes(b []byte) *ClassID {
	return &ClassID{val: append([]byte(nil), b...)}
}

func (c ClassID) AsOID() (OID, bool) {
	o, ok := c.val.(OID)
	return o, ok
}

func (c ClassID) AsUUID() (UUID, bool) {
	u, ok := c.val.(UUID)
	return u, ok
}

func (c ClassID) AsBytes() ([]byte, bool) {
	b, ok := c.val.([]byte)
	return b, ok
}

func (c ClassID) MarshalCBOR() ([]byte, error) {
	switch v := c.val.(type) {
	case OID:
		return marshalTagged(TagOID, v)
	case UUID:
		return marshalTagged(TagUUID, v)
	case []byte:
		return marshalTagged(TagBytes, v)
	default:
		return nil, fmt.Errorf("%w: class-id is unset", codec.ErrInvalidFormat)
	}
}

func (c *ClassID) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil {
		return fmt.Errorf("%w: class-id requires a tag", codec.ErrInvalidFormat)
	}
	val, err := classIDRegistry.Dispatch(num, content)
	if err != nil {
		return fmt.Errorf("class-id: %w", err)
	}
	c.val = val
	return nil
}

// Instance is a tagged choice: UEID (tag 550), UUID (tag 37) or opaque
// bytes (tag 560).
type Instance struct {
	val any
}

func NewInstanceUEID(ueid eat.UEID) (*Instance, error) {
	if err := ueid.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
	}
	return &Instance{val: ueid}, nil
}

func NewInstanceUUID(s string) (*Instance, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &Instance{val: u}, nil
}

func NewInstanceBytes(b []byte) *Instance {
	return &Instance{val: append([]byte(nil), b...)}
}

func (i Instance) AsUEID() (eat.UEID, bool) {
	u, ok := i.val.(eat.UEID)
	return u, ok
}

func (i Instance) AsUUID() (UUID, bool) {
	u, ok := i.val.(UUID)
	return u, ok
}

func (i Instance) AsBytes() ([]byte, bool) {
	b, ok := i.val.([]byte)
	return b, ok
}

func (i Instance) MarshalCBOR() ([]byte, error) {
	switch v := i.val.(type) {
	case eat.UEID:
		return marshalTagged(TagUEID, []byte(v))
	case UUID:
		return marshalTagged(TagUUID, v)
	case []byte:
		return marshalTagged(TagBytes, v)
	default:
		return nil, fmt.Errorf("%w: instance is unset", codec.ErrInvalidFormat)
	}
}

func (i *Instance) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil {
		return fmt.Errorf("%w: instance requires a tag", codec.ErrInvalidFormat)
	}
	switch num {
	case TagUEID:
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: ueid must be a byte string", codec.ErrInvalidFormat)
		}
		ueid := eat.UEID(b)
		if err := ueid.Validate(); err != nil {
			return fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
		}
		i.val = ueid
	case TagUUID:
		var u UUID
		if err := codec.Unmarshal(content, &u); err != nil {
			return err
		}
		i.val = u
	case TagBytes:
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: tagged-bytes", codec.ErrInvalidFormat)
		}
		i.val = b
	default:
		return fmt.Errorf("%w: instance tag %d", codec.ErrUnrecognizedTag, num)
	}
	return nil
}

// Group is a tagged choice: UUID (tag 37) or opaque bytes (tag 560).
type Group struct {
	val any
}

func NewGroupUUID(s string) (*Group, error) {
	u, err := ParseUUID(s)
	if err != nil {
		return nil, err
	}
	return &Group{val: u}, nil
}

func NewGroupBytes(b []byte) *Group {
	return &Group{val: append([]byte(nil), b...)}
}

func (g Group) AsUUID() (UUID, bool) {
	u, ok := g.val.(UUID)
	return u, ok
}

func (g Group) AsBytes() ([]byte, bool) {
	b, ok := g.val.([]byte)
	return b, ok
}

func (g Group) MarshalCBOR() ([]byte, error) {
	switch v := g.val.(type) {
	case UUID:
		return marshalTagged(TagUUID, v)
	case []byte:
		return marshalTagged(TagBytes, v)
	default:
		return nil, fmt.Errorf("%w: group is unset", codec.ErrInvalidFormat)
	}
}

func (g *Group) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil {
		return fmt.Errorf("%w: group requires a tag", codec.ErrInvalidFormat)
	}
	switch num {
	case TagUUID:
		var u UUID
		if err := codec.Unmarshal(content, &u); err != nil {
			return err
		}
		g.val = u
	case TagBytes:
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: tagged-bytes", codec.ErrInvalidFormat)
		}
		g.val = b
	default:
		return fmt.Errorf("%w: group tag %d", codec.ErrUnrecognizedTag, num)
	}
	return nil
}

func marshalTagged(num uint64, v any) ([]byte, error) {
	content, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return codec.BuildTag(num, content)
}
