/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package corim

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/kentakayama/go-corim/internal/codec"
)

// ContentType labels the COSE payload of a signed manifest.
const ContentType = "application/rim+cbor"

// headerLabelCorimMeta is the protected header label carrying the
// corim-meta-map.
const headerLabelCorimMeta int64 = 8

var supportedAlgorithms = map[cose.Algorithm]struct{}{
	cose.AlgorithmES256: {},
	cose.AlgorithmES384: {},
	cose.AlgorithmES512: {},
	cose.AlgorithmEdDSA: {},
}

// KeyID derives a stable identifier for a COSE key: the SHA-256 digest of
// the CBOR encoding of its public part. Both the signing side (holding the
// private key) and the verifying side compute the same value.
func KeyID(key *cose.Key) ([]byte, error) {
	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	pubKey, err := cose.NewKeyFromPublic(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	data, err := pubKey.MarshalCBOR()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

// SignedCorim is a manifest wrapped in a COSE_Sign1 envelope (tag 18).
// The decoded envelope is retained so Verify operates on the exact bytes
// that were signed.
type SignedCorim struct {
	Meta     Meta
	Unsigned UnsignedCorim

	raw     []byte
	kid     []byte
	message *cose.Sign1Message
}

// KID returns the key identifier from the protected header, or nil if the
// signer did not include one.
func (s *SignedCorim) KID() []byte {
	return s.kid
}

// SignCorim signs the tag-501 encoding of u with key and returns the
// serialized COSE_Sign1 envelope. The meta map is bound into the protected
// header so it is covered by the signature.
func SignCorim(u *UnsignedCorim, meta *Meta, key *cose.Key) ([]byte, error) {
	if _, ok := supportedAlgorithms[key.Algorithm]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, key.Algorithm)
	}

	payload, err := u.ToCBOR()
	if err != nil {
		return nil, err
	}
	metaRaw, err := codec.Marshal(meta)
	if err != nil {
		return nil, err
	}
	kid, err := KeyID(key)
	if err != nil {
		return nil, err
	}

	signer, err := key.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	msg := cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm:   key.Algorithm,
				cose.HeaderLabelContentType: ContentType,
				cose.HeaderLabelKeyID:       kid,
				headerLabelCorimMeta:        cbor.RawMessage(metaRaw),
			},
		},
		Payload: payload,
	}
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}

func (s *SignedCorim) UnmarshalCBOR(data []byte) error {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return fmt.Errorf("%w: COSE_Sign1: %v", codec.ErrInvalidFormat, err)
	}

	// The protected header is a bstr-wrapped map.
	var nested codec.Nested[map[int64]cbor.RawMessage]
	if err := codec.Unmarshal(msg.Headers.RawProtected, &nested); err != nil {
		return fmt.Errorf("%w: protected header", codec.ErrInvalidFormat)
	}
	prot := nested.Value

	if raw, ok := prot[int64(cose.HeaderLabelContentType)]; ok {
		var cty string
		if err := codec.Unmarshal(raw, &cty); err != nil || cty != ContentType {
			return fmt.Errorf("%w: content type", codec.ErrInvalidFormat)
		}
	}

	metaRaw, ok := prot[headerLabelCorimMeta]
	if !ok {
		return fmt.Errorf("%w: corim-meta-map", codec.ErrMissingRequiredField)
	}
	var meta Meta
	if err := meta.UnmarshalCBOR(metaRaw); err != nil {
		return err
	}

	var kid []byte
	if raw, ok := prot[int64(cose.HeaderLabelKeyID)]; ok {
		if err := codec.Unmarshal(raw, &kid); err != nil {
			return fmt.Errorf("%w: key identifier", codec.ErrInvalidFormat)
		}
	}

	if !codec.IsTag(msg.Payload) {
		return fmt.Errorf("%w: payload is not a tagged manifest", codec.ErrInvalidFormat)
	}
	var unsigned UnsignedCorim
	if err := unsigned.UnmarshalCBOR(msg.Payload); err != nil {
		return err
	}

	*s = SignedCorim{
		Meta:     meta,
		Unsigned: unsigned,
		raw:      append([]byte(nil), data...),
		kid:      kid,
		message:  &msg,
	}
	return nil
}

// MarshalCBOR re-emits the envelope exactly as it was received. A signed
// manifest cannot be re-serialized from its parts without invalidating the
// signature.
func (s SignedCorim) MarshalCBOR() ([]byte, error) {
	if len(s.raw) == 0 {
		return nil, fmt.Errorf("%w: envelope was not decoded from bytes", codec.ErrInvalidFormat)
	}
	return append([]byte(nil), s.raw...), nil
}

// Verify checks the COSE signature against key. The algorithm is taken from
// the protected header and must both be supported and agree with the one the
// key declares.
func (s *SignedCorim) Verify(key *cose.Key) error {
	if s.message == nil {
		return fmt.Errorf("%w: envelope was not decoded from bytes", codec.ErrInvalidFormat)
	}

	alg, err := s.message.Headers.Protected.Algorithm()
	if err != nil {
		return fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
	}
	if _, ok := supportedAlgorithms[alg]; !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedAlgorithm, alg)
	}
	if key.Algorithm != 0 && key.Algorithm != alg {
		return fmt.Errorf("%w: header declares %v, key declares %v", ErrKeyMismatch, alg, key.Algorithm)
	}

	pub, err := key.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	verifier, err := cose.NewVerifier(alg, pub)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	if err := s.message.Verify(nil, verifier); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return nil
}
