// Package storage persists the gateway and device identities and the API
// key pair across reboots.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/cloud"
)

// Identity kinds stored in the identities table.
const (
	kindGateway = "gateway"
	kindDevice  = "device"
)

// Store defines the persistence operations the session needs.
type Store interface {
	RestoreGateway(ctx context.Context, gw *cloud.Gateway) error
	SaveGateway(ctx context.Context, gw *cloud.Gateway) error
	RestoreDevice(ctx context.Context, dev *cloud.Device) error
	SaveDevice(ctx context.Context, dev *cloud.Device) error
	SaveKeys(ctx context.Context, apiKey, secretKey string) error
	RestoreKeys(ctx context.Context) (apiKey, secretKey string, err error)
	Clear(ctx context.Context) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store over an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// RestoreGateway loads the saved gateway identity into gw.
// Returns ErrNotFound when nothing has been saved.
func (s *SQLiteStore) RestoreGateway(ctx context.Context, gw *cloud.Gateway) error {
	const query = `SELECT hid, uid, name, os, type, sdk_version, software_name, software_version
		FROM identities WHERE kind = ?`

	var restored cloud.Gateway
	err := s.db.QueryRowContext(ctx, query, kindGateway).Scan(
		&restored.HID, &restored.UID, &restored.Name, &restored.OS, &restored.Type,
		&restored.SDKVersion, &restored.SoftwareName, &restored.SoftwareVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("restoring gateway: %w", err)
	}

	*gw = restored
	return nil
}

// SaveGateway stores gw, replacing any previous gateway identity.
func (s *SQLiteStore) SaveGateway(ctx context.Context, gw *cloud.Gateway) error {
	const query = `INSERT INTO identities
		(kind, hid, uid, name, os, type, sdk_version, software_name, software_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			hid = excluded.hid, uid = excluded.uid, name = excluded.name, os = excluded.os,
			type = excluded.type, sdk_version = excluded.sdk_version,
			software_name = excluded.software_name, software_version = excluded.software_version,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, kindGateway,
		gw.HID, gw.UID, gw.Name, gw.OS, gw.Type, gw.SDKVersion, gw.SoftwareName, gw.SoftwareVersion,
		s.timestamp())
	if err != nil {
		return fmt.Errorf("saving gateway %s: %w", gw.UID, err)
	}
	return nil
}

// RestoreDevice loads the saved device identity into dev.
// Returns ErrNotFound when nothing has been saved.
func (s *SQLiteStore) RestoreDevice(ctx context.Context, dev *cloud.Device) error {
	const query = `SELECT hid, gateway_hid, uid, name, type, software_name, software_version, enabled
		FROM identities WHERE kind = ?`

	var restored cloud.Device
	err := s.db.QueryRowContext(ctx, query, kindDevice).Scan(
		&restored.HID, &restored.GatewayHID, &restored.UID, &restored.Name, &restored.Type,
		&restored.SoftwareName, &restored.SoftwareVersion, &restored.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("restoring device: %w", err)
	}

	*dev = restored
	return nil
}

// SaveDevice stores dev, replacing any previous device identity.
func (s *SQLiteStore) SaveDevice(ctx context.Context, dev *cloud.Device) error {
	const query = `INSERT INTO identities
		(kind, hid, gateway_hid, uid, name, type, software_name, software_version, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			hid = excluded.hid, gateway_hid = excluded.gateway_hid, uid = excluded.uid,
			name = excluded.name, type = excluded.type, software_name = excluded.software_name,
			software_version = excluded.software_version, enabled = excluded.enabled,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, kindDevice,
		dev.HID, dev.GatewayHID, dev.UID, dev.Name, dev.Type, dev.SoftwareName, dev.SoftwareVersion,
		dev.Enabled, s.timestamp())
	if err != nil {
		return fmt.Errorf("saving device %s: %w", dev.UID, err)
	}
	return nil
}

// SaveKeys stores the API key pair, replacing any previous pair.
func (s *SQLiteStore) SaveKeys(ctx context.Context, apiKey, secretKey string) error {
	const query = `INSERT INTO api_keys (id, api_key, secret_key, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			api_key = excluded.api_key, secret_key = excluded.secret_key, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, apiKey, secretKey, s.timestamp()); err != nil {
		return fmt.Errorf("saving api keys: %w", err)
	}
	return nil
}

// RestoreKeys loads the saved API key pair.
// Returns ErrNotFound when no pair has been saved.
func (s *SQLiteStore) RestoreKeys(ctx context.Context) (apiKey, secretKey string, err error) {
	const query = `SELECT api_key, secret_key FROM api_keys WHERE id = 1`

	if err := s.db.QueryRowContext(ctx, query).Scan(&apiKey, &secretKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("restoring api keys: %w", err)
	}
	return apiKey, secretKey, nil
}

// Clear removes every saved identity and the key pair, forcing a fresh
// registration on the next start.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clearing storage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for _, stmt := range []string{`DELETE FROM identities`, `DELETE FROM api_keys`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing storage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clearing storage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
