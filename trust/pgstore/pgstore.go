// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package pgstore is a Postgres-backed trust.Store, the persistence
// layer config.TrustStoreConfig's Backend:"postgres" selects in place of
// trust.MemStore's in-memory default. It mirrors the connection-pool and
// sub-store shape of pkg/storage/postgres (jackc/pgx/v5/pgxpool): one
// pool, two tables (trust_records, trust_aliases) scoped by
// localIdentity so one database can back several local identities.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skybridge-core/p2pcore/trust"
)

// Store implements trust.Store against a Postgres database. The ctx passed
// to New covers only pool creation and the connectivity check; the
// trust.Store interface itself is not context-aware (see trust.Store's
// doc comment), so every per-call query here uses context.Background()
// and cannot be cancelled or given a deadline.
type Store struct {
	pool          *pgxpool.Pool
	localIdentity string
}

// New opens a pool against dsn (config.TrustStoreConfig.DSN) and verifies
// connectivity. The schema (trust_records, trust_aliases) is expected to
// already exist; this package does not run migrations, matching
// pkg/storage/postgres's assumption that schema management lives outside
// the binary.
func New(ctx context.Context, dsn, localIdentity string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("trust/pgstore: creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("trust/pgstore: ping: %w", err)
	}
	return &Store{pool: pool, localIdentity: localIdentity}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type row struct {
	DeviceID               string
	DeviceName             *string
	PubKeyFingerprint      []byte
	PublicKey              []byte
	SecureEnclavePublicKey []byte
	KEMPublicKeys          []byte // JSON-encoded []trust.KEMPublicKeyInfo
	AttestationLevel       uint8
	Capabilities           []byte
	CreatedAt              time.Time
	UpdatedAt              time.Time
	RevokedAt              *time.Time
	Version                uint64
	Type                   string
	Signature              []byte
}

func toRow(r *trust.Record) (*row, error) {
	kems, err := json.Marshal(r.KEMPublicKeys)
	if err != nil {
		return nil, fmt.Errorf("trust/pgstore: encoding kemPublicKeys: %w", err)
	}
	return &row{
		DeviceID:               r.DeviceID,
		DeviceName:             r.DeviceName,
		PubKeyFingerprint:      r.PubKeyFingerprint,
		PublicKey:              r.PublicKey,
		SecureEnclavePublicKey: r.SecureEnclavePublicKey,
		KEMPublicKeys:          kems,
		AttestationLevel:       r.AttestationLevel,
		Capabilities:           r.Capabilities,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
		RevokedAt:              r.RevokedAt,
		Version:                r.Version,
		Type:                   string(r.Type),
		Signature:              r.Signature,
	}, nil
}

func (ro *row) toRecord() (*trust.Record, error) {
	var kems []trust.KEMPublicKeyInfo
	if len(ro.KEMPublicKeys) > 0 {
		if err := json.Unmarshal(ro.KEMPublicKeys, &kems); err != nil {
			return nil, fmt.Errorf("trust/pgstore: decoding kemPublicKeys: %w", err)
		}
	}
	return &trust.Record{
		DeviceID:               ro.DeviceID,
		DeviceName:             ro.DeviceName,
		PubKeyFingerprint:      ro.PubKeyFingerprint,
		PublicKey:              ro.PublicKey,
		SecureEnclavePublicKey: ro.SecureEnclavePublicKey,
		KEMPublicKeys:          kems,
		AttestationLevel:       ro.AttestationLevel,
		Capabilities:           ro.Capabilities,
		CreatedAt:              ro.CreatedAt,
		UpdatedAt:              ro.UpdatedAt,
		RevokedAt:              ro.RevokedAt,
		Version:                ro.Version,
		Type:                   trust.Type(ro.Type),
		Signature:              ro.Signature,
	}, nil
}

// Add persists a newly-signed "add" record, refusing deviceIds that are
// already tombstoned (trust.ErrTombstoned), matching MemStore.Add.
func (s *Store) Add(r *trust.Record) error {
	ctx := context.Background()
	existing, err := s.get(ctx, r.DeviceID)
	if err != nil {
		return err
	}
	if existing != nil && existing.IsTombstone() {
		return trust.ErrTombstoned
	}
	if err := s.upsert(ctx, r); err != nil {
		return err
	}
	return s.registerAlias(ctx, r.DeviceID, r.DeviceID)
}

// RegisterAlias binds an additional identifier to an already-known
// deviceId.
func (s *Store) RegisterAlias(alias, deviceID string) error {
	ctx := context.Background()
	existing, err := s.get(ctx, deviceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return trust.ErrNotFound
	}
	return s.registerAlias(ctx, alias, deviceID)
}

// Revoke replaces the live record for tombstone.DeviceID, enforcing the
// version-follows-previous rule MemStore.Revoke applies.
func (s *Store) Revoke(tombstone *trust.Record) error {
	ctx := context.Background()
	prev, err := s.get(ctx, tombstone.DeviceID)
	if err != nil {
		return err
	}
	if prev == nil {
		return trust.ErrNotFound
	}
	if tombstone.Version != prev.Version+1 {
		return fmt.Errorf("trust/pgstore: tombstone version %d does not follow previous version %d", tombstone.Version, prev.Version)
	}
	return s.upsert(ctx, tombstone)
}

// NewTombstone builds an unsigned revoke record derived from the latest
// live record for deviceID; the caller signs it before calling Revoke.
func (s *Store) NewTombstone(deviceID string, revokedAt time.Time) (*trust.Record, error) {
	ctx := context.Background()
	prev, err := s.get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, trust.ErrNotFound
	}
	t := *prev
	t.Type = trust.TypeRevoke
	t.Version = prev.Version + 1
	t.UpdatedAt = revokedAt
	t.RevokedAt = &revokedAt
	t.Signature = nil
	return &t, nil
}

// Get returns the live or tombstoned record for deviceID.
func (s *Store) Get(deviceID string) (*trust.Record, bool) {
	r, err := s.get(context.Background(), deviceID)
	if err != nil || r == nil {
		return nil, false
	}
	return r, true
}

// Lookup resolves a peer identifier through the candidate chain
// trust.Candidates describes, the same rule MemStore.Lookup applies: a
// match requires exactly one distinct deviceId across all candidates.
func (s *Store) Lookup(identifier string) (*trust.Record, bool) {
	ctx := context.Background()
	resolved := make(map[string]bool)
	for _, candidate := range trust.Candidates(identifier) {
		deviceID, ok, err := s.resolveAlias(ctx, candidate)
		if err != nil {
			return nil, false
		}
		if ok {
			resolved[deviceID] = true
			continue
		}
		if r, err := s.get(ctx, candidate); err == nil && r != nil {
			resolved[candidate] = true
		}
	}
	if len(resolved) != 1 {
		return nil, false
	}
	for deviceID := range resolved {
		r, err := s.get(ctx, deviceID)
		if err != nil || r == nil {
			return nil, false
		}
		return r, true
	}
	return nil, false
}

// Merge applies trust.ResolveConflict's last-writer-wins rule between the
// local record for remote.DeviceID (if any) and remote.
func (s *Store) Merge(remote *trust.Record) *trust.Record {
	ctx := context.Background()
	local, err := s.get(ctx, remote.DeviceID)
	if err != nil || local == nil {
		if err := s.upsert(ctx, remote); err != nil {
			return remote
		}
		_ = s.registerAlias(ctx, remote.DeviceID, remote.DeviceID)
		return remote
	}
	winner := trust.ResolveConflict(local, remote)
	if err := s.upsert(ctx, winner); err != nil {
		return local
	}
	return winner
}

// GC deletes tombstones older than 30 days past their revokedAt (falling
// back to updatedAt for records predating the RevokedAt field), returning
// how many were removed.
func (s *Store) GC(now time.Time) int {
	ctx := context.Background()
	const tombstoneGCAfter = 30 * 24 * time.Hour
	cutoff := now.Add(-tombstoneGCAfter)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM trust_records
		WHERE local_identity = $1
		  AND type = 'revoke'
		  AND COALESCE(revoked_at, updated_at) < $2
	`, s.localIdentity, cutoff)
	if err != nil {
		return 0
	}
	_, _ = s.pool.Exec(ctx, `
		DELETE FROM trust_aliases a
		WHERE a.local_identity = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM trust_records r
		      WHERE r.local_identity = a.local_identity AND r.device_id = a.device_id
		  )
	`, s.localIdentity)
	return int(tag.RowsAffected())
}

// Len returns the number of records currently held, live and tombstoned.
func (s *Store) Len() int {
	var count int
	err := s.pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM trust_records WHERE local_identity = $1`, s.localIdentity,
	).Scan(&count)
	if err != nil {
		return 0
	}
	return count
}

// All returns every record currently held, live and tombstoned, in no
// particular order.
func (s *Store) All() []*trust.Record {
	ctx := context.Background()
	rows, err := s.pool.Query(ctx, `
		SELECT device_id, device_name, pub_key_fingerprint, public_key,
		       secure_enclave_public_key, kem_public_keys, attestation_level,
		       capabilities, created_at, updated_at, revoked_at, version, type, signature
		FROM trust_records WHERE local_identity = $1
	`, s.localIdentity)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []*trust.Record
	for rows.Next() {
		var ro row
		if err := rows.Scan(&ro.DeviceID, &ro.DeviceName, &ro.PubKeyFingerprint, &ro.PublicKey,
			&ro.SecureEnclavePublicKey, &ro.KEMPublicKeys, &ro.AttestationLevel,
			&ro.Capabilities, &ro.CreatedAt, &ro.UpdatedAt, &ro.RevokedAt, &ro.Version, &ro.Type, &ro.Signature); err != nil {
			continue
		}
		r, err := ro.toRecord()
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) get(ctx context.Context, deviceID string) (*trust.Record, error) {
	var ro row
	err := s.pool.QueryRow(ctx, `
		SELECT device_id, device_name, pub_key_fingerprint, public_key,
		       secure_enclave_public_key, kem_public_keys, attestation_level,
		       capabilities, created_at, updated_at, revoked_at, version, type, signature
		FROM trust_records WHERE local_identity = $1 AND device_id = $2
	`, s.localIdentity, deviceID).Scan(&ro.DeviceID, &ro.DeviceName, &ro.PubKeyFingerprint, &ro.PublicKey,
		&ro.SecureEnclavePublicKey, &ro.KEMPublicKeys, &ro.AttestationLevel,
		&ro.Capabilities, &ro.CreatedAt, &ro.UpdatedAt, &ro.RevokedAt, &ro.Version, &ro.Type, &ro.Signature)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trust/pgstore: get %s: %w", deviceID, err)
	}
	return ro.toRecord()
}

func (s *Store) upsert(ctx context.Context, r *trust.Record) error {
	ro, err := toRow(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trust_records (
			local_identity, device_id, device_name, pub_key_fingerprint, public_key,
			secure_enclave_public_key, kem_public_keys, attestation_level,
			capabilities, created_at, updated_at, revoked_at, version, type, signature
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (local_identity, device_id) DO UPDATE SET
			device_name = EXCLUDED.device_name,
			pub_key_fingerprint = EXCLUDED.pub_key_fingerprint,
			public_key = EXCLUDED.public_key,
			secure_enclave_public_key = EXCLUDED.secure_enclave_public_key,
			kem_public_keys = EXCLUDED.kem_public_keys,
			attestation_level = EXCLUDED.attestation_level,
			capabilities = EXCLUDED.capabilities,
			updated_at = EXCLUDED.updated_at,
			revoked_at = EXCLUDED.revoked_at,
			version = EXCLUDED.version,
			type = EXCLUDED.type,
			signature = EXCLUDED.signature
	`, s.localIdentity, ro.DeviceID, ro.DeviceName, ro.PubKeyFingerprint, ro.PublicKey,
		ro.SecureEnclavePublicKey, ro.KEMPublicKeys, ro.AttestationLevel,
		ro.Capabilities, ro.CreatedAt, ro.UpdatedAt, ro.RevokedAt, ro.Version, ro.Type, ro.Signature)
	if err != nil {
		return fmt.Errorf("trust/pgstore: upsert %s: %w", r.DeviceID, err)
	}
	return nil
}

func (s *Store) registerAlias(ctx context.Context, alias, deviceID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trust_aliases (local_identity, alias, device_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (local_identity, alias) DO UPDATE SET device_id = EXCLUDED.device_id
	`, s.localIdentity, alias, deviceID)
	if err != nil {
		return fmt.Errorf("trust/pgstore: registering alias %s: %w", alias, err)
	}
	return nil
}

func (s *Store) resolveAlias(ctx context.Context, alias string) (deviceID string, ok bool, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT device_id FROM trust_aliases WHERE local_identity = $1 AND alias = $2`,
		s.localIdentity, alias,
	).Scan(&deviceID)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return deviceID, true, nil
}

var _ trust.Store = (*Store)(nil)
