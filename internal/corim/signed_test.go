/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package corim

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

func testSigningKey(t *testing.T, alg cose.Algorithm) *cose.Key {
	t.Helper()

	var curve elliptic.Curve
	switch alg {
	case cose.AlgorithmES256:
		curve = elliptic.P256()
	case cose.AlgorithmES384:
		curve = elliptic.P384()
	default:
		t.Fatalf("unsupported test algorithm %v", alg)
	}

	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.Nil(t, err)
	key, err := cose.NewKeyFromPrivate(priv)
	require.Nil(t, err)
	key.Algorithm = alg
	return key
}

func testMeta() *Meta {
	return &Meta{
		Signer: Signer{Name: "ACME signing service"},
		SignatureValidity: &Validity{
			NotAfter: NewTime(time.Unix(1893456000, 0)),
		},
	}
}

func TestSignCorim_VerifyRoundTrip_OK(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)
	u := testUnsignedCorim(t, "acme-rim-signed")

	data, err := SignCorim(&u, testMeta(), key)
	require.Nil(t, err)
	// COSE_Sign1 is tag 18
	assert.Equal(t, byte(0xD2), data[0])

	c, err := UnmarshalCorim(data)
	require.Nil(t, err)
	require.NotNil(t, c.Signed)
	assert.Nil(t, c.Unsigned)

	assert.Equal(t, "acme-rim-signed", c.Signed.Unsigned.ID.String())
	assert.Equal(t, "ACME signing service", c.Signed.Meta.Signer.Name)

	kid, err := KeyID(key)
	require.Nil(t, err)
	assert.Equal(t, kid, c.Signed.KID())

	require.Nil(t, c.Signed.Verify(key))

	// The envelope re-emits byte for byte.
	reencoded, err := c.Signed.MarshalCBOR()
	require.Nil(t, err)
	assert.Equal(t, data, reencoded)
}

func TestSignCorim_UnsupportedAlgorithm_NG(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)
	key.Algorithm = cose.AlgorithmPS256

	u := testUnsignedCorim(t, "acme-rim-signed")
	_, err := SignCorim(&u, testMeta(), key)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestSignedCorim_Verify_Tampered_NG(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)
	u := testUnsignedCorim(t, "tamper-target-id")

	data, err := SignCorim(&u, testMeta(), key)
	require.Nil(t, err)

	// Flip one bit inside the corim-id carried in the payload. The envelope
	// still parses; only the signature check can catch the change.
	idx := bytes.Index(data, []byte("tamper-target-id"))
	require.True(t, idx > 0)
	tampered := append([]byte(nil), data...)
	tampered[idx] ^= 0x01

	c, err := UnmarshalCorim(tampered)
	require.Nil(t, err)
	assert.ErrorIs(t, c.Signed.Verify(key), ErrVerificationFailed)
}

func TestSignedCorim_Verify_WrongKey_NG(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)
	other := testSigningKey(t, cose.AlgorithmES256)

	u := testUnsignedCorim(t, "acme-rim-signed")
	data, err := SignCorim(&u, testMeta(), key)
	require.Nil(t, err)

	c, err := UnmarshalCorim(data)
	require.Nil(t, err)
	assert.ErrorIs(t, c.Signed.Verify(other), ErrVerificationFailed)
}

func TestSignedCorim_Verify_AlgorithmMismatch_NG(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)

	u := testUnsignedCorim(t, "acme-rim-signed")
	data, err := SignCorim(&u, testMeta(), key)
	require.Nil(t, err)

	c, err := UnmarshalCorim(data)
	require.Nil(t, err)

	// A verifier holding a key pinned to another algorithm must not fall
	// back to the header's choice.
	mismatched := testSigningKey(t, cose.AlgorithmES384)
	assert.ErrorIs(t, c.Signed.Verify(mismatched), ErrKeyMismatch)
}

func TestSignedCorim_MissingMeta_NG(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)
	signer, err := key.Signer()
	require.Nil(t, err)

	u := testUnsignedCorim(t, "acme-rim-signed")
	payload, err := u.ToCBOR()
	require.Nil(t, err)

	msg := cose.Sign1Message{
		Headers: cose.Headers{
			Protected: cose.ProtectedHeader{
				cose.HeaderLabelAlgorithm:   key.Algorithm,
				cose.HeaderLabelContentType: ContentType,
			},
		},
		Payload: payload,
	}
	require.Nil(t, msg.Sign(rand.Reader, nil, signer))
	data, err := msg.MarshalCBOR()
	require.Nil(t, err)

	var s SignedCorim
	assert.NotNil(t, s.UnmarshalCBOR(data))
}

func TestKeyID_StableAcrossPrivateAndPublic_OK(t *testing.T) {
	key := testSigningKey(t, cose.AlgorithmES256)

	kidPriv, err := KeyID(key)
	require.Nil(t, err)

	pub, err := key.PublicKey()
	require.Nil(t, err)
	pubKey, err := cose.NewKeyFromPublic(pub)
	require.Nil(t, err)
	kidPub, err := KeyID(pubKey)
	require.Nil(t, err)

	assert.Equal(t, kidPriv, kidPub)
	assert.Len(t, kidPriv, 32)
}
