/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package store persists manifests and the trust anchors that may sign
// them, enforcing signature and validity checks on the way in.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/kentakayama/go-corim/internal/config"
	"github.com/kentakayama/go-corim/internal/corim"
	"github.com/kentakayama/go-corim/internal/domain"
	"github.com/kentakayama/go-corim/internal/domain/model"
	"github.com/kentakayama/go-corim/internal/domain/service"
	"github.com/kentakayama/go-corim/internal/infra/sqlite"
	"github.com/kentakayama/go-corim/internal/util"
)

// Store is the application service over the manifest database.
type Store struct {
	cfg       config.StoreConfig
	db        *sql.DB
	anchors   service.TrustAnchorRepository
	manifests service.ManifestRepository
	logger    *log.Logger
	now       func() time.Time
}

// Open initializes the database at cfg.DBPath and returns a ready store.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("store: DBPath is required")
	}
	db, err := sqlite.InitDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		cfg:       cfg,
		db:        db,
		anchors:   sqlite.NewTrustAnchorRepository(db),
		manifests: sqlite.NewManifestRepository(db),
		logger:    logger,
		now:       now,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return sqlite.CloseDB(s.db)
}

// AddTrustAnchor registers the public part of key as an accepted manifest
// signer and returns its key identifier.
func (s *Store) AddTrustAnchor(ctx context.Context, name string, key *cose.Key) ([]byte, error) {
	kid, err := corim.KeyID(key)
	if err != nil {
		return nil, err
	}

	existing, err := s.anchors.FindByKIDIgnoreRevoked(ctx, kid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: kid %x", ErrDuplicateAnchor, kid)
	}

	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corim.ErrKeyMismatch, err)
	}
	pubKey, err := cose.NewKeyFromPublic(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", corim.ErrKeyMismatch, err)
	}
	pubKey.Algorithm = key.Algorithm
	pubBytes, err := pubKey.MarshalCBOR()
	if err != nil {
		return nil, err
	}

	if _, err := s.anchors.Create(ctx, &model.TrustAnchor{
		KID:       kid,
		Name:      name,
		PublicKey: pubBytes,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return nil, err
	}
	s.logger.Printf("trust anchor %q registered (kid %x)", name, kid)
	return kid, nil
}

// RevokeTrustAnchor marks the anchor as revoked. Manifests already stored
// stay stored; new submissions signed by this key are rejected.
func (s *Store) RevokeTrustAnchor(ctx context.Context, kid []byte) error {
	if err := s.anchors.RevokeByKID(ctx, kid, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Printf("trust anchor revoked (kid %x)", kid)
	return nil
}

// AddManifest validates and stores a serialized CoRIM. Signed manifests
// must verify against a registered, unrevoked trust anchor; validity
// windows are checked against the store clock.
func (s *Store) AddManifest(ctx context.Context, data []byte) (*model.Manifest, error) {
	c, err := corim.UnmarshalCorim(data)
	if err != nil {
		return nil, err
	}

	now := s.now()

	var unsigned *corim.UnsignedCorim
	var anchorID *int64
	signed := c.Signed != nil

	if signed {
		kid := c.Signed.KID()
		if len(kid) == 0 {
			return nil, fmt.Errorf("%w: envelope has no key identifier", ErrNotTrusted)
		}
		anchor, err := s.anchors.FindByKID(ctx, kid)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: kid %x", ErrNotTrusted, kid)
			}
			return nil, err
		}

		var key cose.Key
		if err := key.UnmarshalCBOR(anchor.PublicKey); err != nil {
			return nil, fmt.Errorf("stored trust anchor key: %w", err)
		}
		if err := c.Signed.Verify(&key); err != nil {
			return nil, err
		}

		if sv := c.Signed.Meta.SignatureValidity; sv != nil && now.After(sv.NotAfter.Time) {
			return nil, fmt.Errorf("%w: signature validity ended %s", domain.ErrExpired, sv.NotAfter)
		}

		unsigned = &c.Signed.Unsigned
		anchorID = &anchor.ID
	} else {
		if s.cfg.RequireSigned {
			return nil, ErrUnsignedRejected
		}
		unsigned = c.Unsigned
	}

	var notAfter *time.Time
	if rv := unsigned.RimValidity; rv != nil {
		if now.After(rv.NotAfter.Time) {
			return nil, fmt.Errorf("%w: rim validity ended %s", domain.ErrExpired, rv.NotAfter)
		}
		t := rv.NotAfter.Time
		notAfter = &t
	}

	seen := util.NewSet[string]()
	for _, id := range unsigned.ComidTagIDs() {
		if seen.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTagID, id)
		}
		seen.Add(id)
	}

	profile := ""
	if unsigned.Profile != nil {
		profile = unsigned.Profile.String()
	}

	m := &model.Manifest{
		CorimID:       unsigned.ID.String(),
		Profile:       profile,
		Manifest:      append([]byte(nil), data...),
		Signed:        signed,
		TrustAnchorID: anchorID,
		CreatedAt:     now.UTC(),
		NotAfter:      notAfter,
	}
	id, err := s.manifests.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	m.ID = id

	s.logger.Printf("manifest %q stored (id %d, signed=%t)", m.CorimID, id, signed)
	s.debugDump(data)
	return m, nil
}

// GetManifest returns the most recently stored manifest for a CoRIM id,
// decoded alongside its database record.
func (s *Store) GetManifest(ctx context.Context, corimID string) (*corim.Corim, *model.Manifest, error) {
	m, err := s.manifests.FindLatestByCorimID(ctx, corimID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, domain.ErrNotFound
	}
	if m.NotAfter != nil && s.now().After(*m.NotAfter) {
		return nil, nil, fmt.Errorf("%w: manifest %q", domain.ErrExpired, corimID)
	}

	c, err := corim.UnmarshalCorim(m.Manifest)
	if err != nil {
		return nil, nil, err
	}
	return c, m, nil
}

// debugDump logs a diagnostic rendering of the manifest bytes.
func (s *Store) debugDump(data []byte) {
	if s.logger.Writer() == io.Discard {
		return
	}
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return
	}
	if pretty, err := util.RenderCBORPretty(decoded); err == nil {
		s.logger.Print(pretty)
	}
}
