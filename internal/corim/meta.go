/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package corim

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/kentakayama/go-corim/internal/codec"
)

// Signer identifies the entity that signed the manifest.
type Signer struct {
	Name string  `cbor:"0,keyasint"`
	URI  *string `cbor:"1,keyasint,omitempty"`
}

func (s *Signer) UnmarshalCBOR(data []byte) error {
	var nameRaw, uriRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &nameRaw,
		1: &uriRaw,
	})
	if err != nil {
		return fmt.Errorf("corim-signer-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: corim-signer-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if nameRaw == nil {
		return fmt.Errorf("%w: corim-meta signer-name", codec.ErrMissingRequiredField)
	}

	var out Signer
	if err := codec.Unmarshal(nameRaw, &out.Name); err != nil {
		return fmt.Errorf("%w: signer-name must be text", codec.ErrInvalidFormat)
	}
	if uriRaw != nil {
		var uri string
		if err := codec.Unmarshal(uriRaw, &uri); err != nil {
			return fmt.Errorf("%w: signer-uri must be text", codec.ErrInvalidFormat)
		}
		out.URI = &uri
	}
	*s = out
	return nil
}

// Meta is the corim-meta-map carried in the protected header of a signed
// CoRIM, so it is covered by the signature.
type Meta struct {
	Signer            Signer    `cbor:"0,keyasint"`
	SignatureValidity *Validity `cbor:"1,keyasint,omitempty"`
}

func (m Meta) Valid() error {
	if m.Signer.Name == "" {
		return fmt.Errorf("%w: corim-meta signer-name", codec.ErrMissingRequiredField)
	}
	if m.SignatureValidity != nil {
		return m.SignatureValidity.Valid()
	}
	return nil
}

func (m Meta) MarshalCBOR() ([]byte, error) {
	if err := m.Valid(); err != nil {
		return nil, err
	}
	type meta Meta
	return codec.Marshal(meta(m))
}

func (m *Meta) UnmarshalCBOR(data []byte) error {
	var signerRaw, validityRaw cbor.RawMessage
	exts, err := codec.SplitMap(data, map[int64]*cbor.RawMessage{
		0: &signerRaw,
		1: &validityRaw,
	})
	if err != nil {
		return fmt.Errorf("corim-meta-map: %w", err)
	}
	if !exts.IsEmpty() {
		return fmt.Errorf("%w: corim-meta-map key %s", codec.ErrInvalidFormat, exts[0].Key)
	}
	if signerRaw == nil {
		return fmt.Errorf("%w: corim-meta signer", codec.ErrMissingRequiredField)
	}

	var out Meta
	if err := codec.Unmarshal(signerRaw, &out.Signer); err != nil {
		return err
	}
	if validityRaw != nil {
		out.SignatureValidity = &Validity{}
		if err := codec.Unmarshal(validityRaw, out.SignatureValidity); err != nil {
			return err
		}
	}
	if err := out.Valid(); err != nil {
		return err
	}
	*m = out
	return nil
}
