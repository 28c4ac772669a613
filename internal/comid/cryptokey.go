/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package comid

import (
	"encoding/pem"
	"fmt"

	"github.com/veraison/go-cose"
	"github.com/veraison/swid"

	"github.com/kentakayama/go-corim/internal/codec"
)

// CryptoKey is the tagged crypto-key-type-choice: key or certificate
// material in one of the registered representations. The tag is mandatory.
type CryptoKey struct {
	tag uint64
	val any
}

func NewCryptoKeyPKIXBase64Key(text string) (*CryptoKey, error) {
	if err := validPEM(text); err != nil {
		return nil, err
	}
	return &CryptoKey{tag: TagPKIXBase64Key, val: text}, nil
}

func NewCryptoKeyPKIXBase64Cert(text string) (*CryptoKey, error) {
	if err := validPEM(text); err != nil {
		return nil, err
	}
	return &CryptoKey{tag: TagPKIXBase64Cert, val: text}, nil
}

func NewCryptoKeyPKIXBase64CertPath(text string) (*CryptoKey, error) {
	if err := validPEM(text); err != nil {
		return nil, err
	}
	return &CryptoKey{tag: TagPKIXBase64CertPath, val: text}, nil
}

func NewCryptoKeyThumbprint(d swid.HashEntry) *CryptoKey {
	return &CryptoKey{tag: TagThumbprint, val: d}
}

func NewCryptoKeyCertThumbprint(d swid.HashEntry) *CryptoKey {
	return &CryptoKey{tag: TagCertThumbprint, val: d}
}

func NewCryptoKeyCertPathThumbprint(d swid.HashEntry) *CryptoKey {
	return &CryptoKey{tag: TagCertPathThumbprint, val: d}
}

// NewCryptoKeyCOSE wraps a CBOR-encoded COSE_Key, validating that it
// actually decodes as one.
func NewCryptoKeyCOSE(data []byte) (*CryptoKey, error) {
	var k cose.Key
	if err := k.UnmarshalCBOR(data); err != nil {
		return nil, fmt.Errorf("%w: not a COSE_Key: %v", codec.ErrInvalidFormat, err)
	}
	return &CryptoKey{tag: TagCOSEKey, val: append([]byte(nil), data...)}, nil
}

func NewCryptoKeyBytes(b []byte) *CryptoKey {
	return &CryptoKey{tag: TagBytes, val: append([]byte(nil), b...)}
}

func (k CryptoKey) Tag() uint64 {
	return k.tag
}

// AsText returns the textual representation for the PKIX base64 variants.
func (k CryptoKey) AsText() (string, bool) {
	s, ok := k.val.(string)
	return s, ok
}

func (k CryptoKey) AsBytes() ([]byte, bool) {
	b, ok := k.val.([]byte)
	return b, ok
}

func (k CryptoKey) AsThumbprint() (swid.HashEntry, bool) {
	d, ok := k.val.(swid.HashEntry)
	return d, ok
}

// AsCOSEKey decodes the wrapped COSE_Key variant.
func (k CryptoKey) AsCOSEKey() (*cose.Key, error) {
	if k.tag != TagCOSEKey {
		return nil, fmt.Errorf("%w: tag %d is not a COSE_Key", codec.ErrInvalidFormat, k.tag)
	}
	var key cose.Key
	if err := key.UnmarshalCBOR(k.val.([]byte)); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrInvalidFormat, err)
	}
	return &key, nil
}

func (k CryptoKey) MarshalCBOR() ([]byte, error) {
	if k.val == nil {
		return nil, fmt.Errorf("%w: crypto-key is unset", codec.ErrInvalidFormat)
	}
	return marshalTagged(k.tag, k.val)
}

func (k *CryptoKey) UnmarshalCBOR(data []byte) error {
	num, content, err := codec.SplitTag(data)
	if err != nil {
		return fmt.Errorf("%w: crypto-key requires a tag", codec.ErrInvalidFormat)
	}
	switch num {
	case TagPKIXBase64Key, TagPKIXBase64Cert, TagPKIXBase64CertPath:
		var s string
		if err := codec.Unmarshal(content, &s); err != nil {
			return fmt.Errorf("%w: pkix crypto-key must be text", codec.ErrInvalidFormat)
		}
		if err := validPEM(s); err != nil {
			return err
		}
		k.val = s
	case TagThumbprint, TagCertThumbprint, TagCertPathThumbprint:
		var d swid.HashEntry
		if err := codec.Unmarshal(content, &d); err != nil {
			return fmt.Errorf("%w: thumbprint: %v", codec.ErrInvalidFormat, err)
		}
		k.val = d
	case TagCOSEKey:
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: cose-key must be a byte string", codec.ErrInvalidFormat)
		}
		var key cose.Key
		if err := key.UnmarshalCBOR(b); err != nil {
			return fmt.Errorf("%w: not a COSE_Key: %v", codec.ErrInvalidFormat, err)
		}
		k.val = b
	case TagBytes:
		var b []byte
		if err := codec.Unmarshal(content, &b); err != nil {
			return fmt.Errorf("%w: tagged-bytes", codec.ErrInvalidFormat)
		}
		k.val = b
	default:
		return fmt.Errorf("%w: crypto-key tag %d", codec.ErrUnrecognizedTag, num)
	}
	k.tag = num
	return nil
}

func validPEM(s string) error {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return fmt.Errorf("%w: not PEM-encoded key material", codec.ErrInvalidFormat)
	}
	return nil
}
