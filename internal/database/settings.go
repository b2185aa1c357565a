// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SettingKeys are the runtime-mutable keys read by the Settings Resolver
// (§6). Values are stored as their string representation; the resolver is
// responsible for parsing and for decrypting nntp_password and any PreDB
// API keys before handing them to workers.
const (
	SettingAllowRegistration = "allow_registration"
	SettingNNTPServer        = "nntp_server"
	SettingNNTPPort          = "nntp_port"
	SettingNNTPSSL           = "nntp_ssl"
	SettingNNTPSSLPort       = "nntp_ssl_port"
	SettingNNTPUsername      = "nntp_username"
	SettingNNTPPassword      = "nntp_password"
	SettingUpdateThreads     = "update_threads"
	SettingReleasesThreads   = "releases_threads"
	SettingPostprocessThreads = "postprocess_threads"
	SettingBackfillDays      = "backfill_days"
	SettingRetentionDays     = "retention_days"
)

// Setting returns the stored value for key, or ErrNotFound if unset (the
// caller applies its own default, matching "all optional with defaults"
// per spec §6).
func (db *DB) Setting(ctx context.Context, key string) (string, error) {
	var value string
	row := db.conn.QueryRowContext(ctx, `SELECT value FROM setting WHERE key = ?`, key)
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("setting %q: %w", key, err)
	}
	return value, nil
}

// AllSettings returns every stored key/value pair, used by the Settings
// Resolver to build an immutable snapshot in one round trip.
func (db *DB) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT key, value FROM setting`)
	if err != nil {
		return nil, fmt.Errorf("query all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SetSetting upserts a single key/value pair.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO setting (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
