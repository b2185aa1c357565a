// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"time"
)

// schemaContext returns a context with timeout for schema DDL operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createTables creates all tables used by the indexer if they do not exist.
func (db *DB) createTables() error {
	statements := []string{
		schemaMigrationsTable,
		groupTableSQL,
		categoryTableSQL,
		userTableSQL,
		releaseTableSQL,
		ornMappingTableSQL,
		releaseRegexTableSQL,
		settingTableSQL,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// createIndexes creates all indexes used by query paths in §6 of the spec.
func (db *DB) createIndexes() error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_group_name ON "group"(name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_release_guid ON release(guid)`,
		`CREATE INDEX IF NOT EXISTS idx_release_name ON release(name)`,
		`CREATE INDEX IF NOT EXISTS idx_release_search_name ON release(search_name)`,
		`CREATE INDEX IF NOT EXISTS idx_release_group ON release(group_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orn_hash ON orn_mappings(obfuscated_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_regex_ordinal ON release_regexes(ordinal, id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_category_name ON category(name)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_setting_key ON setting(key)`,
	}
	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const groupTableSQL = `
CREATE TABLE IF NOT EXISTS "group" (
	id BIGINT PRIMARY KEY DEFAULT nextval('group_id_seq'),
	name VARCHAR NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	backfill BOOLEAN NOT NULL DEFAULT false,
	min_files INTEGER NOT NULL DEFAULT 1,
	min_size BIGINT NOT NULL DEFAULT 0,
	first_article_id BIGINT NOT NULL DEFAULT 0,
	last_article_id BIGINT NOT NULL DEFAULT 0,
	current_article_id BIGINT NOT NULL DEFAULT 0,
	backfill_target BIGINT NOT NULL DEFAULT 0,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE SEQUENCE IF NOT EXISTS group_id_seq START 1;
`

const categoryTableSQL = `
CREATE TABLE IF NOT EXISTS category (
	id BIGINT PRIMARY KEY DEFAULT nextval('category_id_seq'),
	name VARCHAR NOT NULL,
	parent_id BIGINT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE SEQUENCE IF NOT EXISTS category_id_seq START 1;
`

const userTableSQL = `
CREATE TABLE IF NOT EXISTS "user" (
	id BIGINT PRIMARY KEY DEFAULT nextval('user_id_seq'),
	username VARCHAR NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE SEQUENCE IF NOT EXISTS user_id_seq START 1;
`

const releaseTableSQL = `
CREATE TABLE IF NOT EXISTS release (
	id BIGINT PRIMARY KEY DEFAULT nextval('release_id_seq'),
	name VARCHAR NOT NULL,
	search_name VARCHAR NOT NULL,
	guid VARCHAR NOT NULL,
	size BIGINT NOT NULL DEFAULT 0,
	files INTEGER NOT NULL DEFAULT 0,
	completion DOUBLE NOT NULL DEFAULT 0,
	posted_date TIMESTAMPTZ,
	added_date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	status INTEGER NOT NULL DEFAULT 1,
	passworded INTEGER NOT NULL DEFAULT 2,
	category_id BIGINT NOT NULL,
	group_id BIGINT NOT NULL,
	imdb_id VARCHAR,
	tvdb_id INTEGER,
	tvmaze_id INTEGER,
	tmdb_id INTEGER,
	video_codec VARCHAR,
	audio_codec VARCHAR,
	resolution VARCHAR,
	season VARCHAR,
	episode VARCHAR,
	year INTEGER,
	artist VARCHAR,
	album VARCHAR,
	nzb_guid VARCHAR,
	processed BOOLEAN NOT NULL DEFAULT false
);
CREATE SEQUENCE IF NOT EXISTS release_id_seq START 1;
`

const ornMappingTableSQL = `
CREATE TABLE IF NOT EXISTS orn_mappings (
	id BIGINT PRIMARY KEY DEFAULT nextval('orn_id_seq'),
	obfuscated_hash VARCHAR NOT NULL,
	real_name VARCHAR NOT NULL,
	source VARCHAR NOT NULL,
	confidence DOUBLE NOT NULL DEFAULT 1.0,
	use_count INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE SEQUENCE IF NOT EXISTS orn_id_seq START 1;
`

const releaseRegexTableSQL = `
CREATE TABLE IF NOT EXISTS release_regexes (
	id BIGINT PRIMARY KEY DEFAULT nextval('regex_id_seq'),
	group_pattern VARCHAR NOT NULL,
	regex VARCHAR NOT NULL,
	description VARCHAR,
	ordinal INTEGER NOT NULL DEFAULT 100,
	active BOOLEAN NOT NULL DEFAULT true,
	match_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE SEQUENCE IF NOT EXISTS regex_id_seq START 1;
`

const settingTableSQL = `
CREATE TABLE IF NOT EXISTS setting (
	key VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
