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
	"time"
)

// Passworded tri-state, see spec §3.
const (
	PasswordedNo      = 0
	PasswordedYes     = 1
	PasswordedUnknown = 2
)

// Release status, see spec §3.
const (
	StatusInactive = 0
	StatusActive   = 1
	StatusUnknown  = 2
)

// Release is a materialized logical posting, see spec §3.
type Release struct {
	ID          int64
	Name        string
	SearchName  string
	GUID        string
	Size        int64
	Files       int
	Completion  float64
	PostedDate  sql.NullTime
	AddedDate   time.Time
	Status      int
	Passworded  int
	CategoryID  int64
	GroupID     int64
	IMDBID      sql.NullString
	TVDBID      sql.NullInt64
	TVMazeID    sql.NullInt64
	TMDBID      sql.NullInt64
	VideoCodec  sql.NullString
	AudioCodec  sql.NullString
	Resolution  sql.NullString
	Season      sql.NullString
	Episode     sql.NullString
	Year        sql.NullInt64
	Artist      sql.NullString
	Album       sql.NullString
	NZBGUID     sql.NullString
	Processed   bool
}

// UpsertRelease inserts a new Release keyed by GUID, or extends an existing
// one if more parts have been observed than were previously stored. Per
// spec §3/§4.7, a new deobfuscated name is never applied silently here — the
// caller recomputes SearchName and passes the name it wants stored; this
// method only handles the "extend only if observed_now > stored.files"
// idempotent-upsert contract.
func (db *DB) UpsertRelease(ctx context.Context, r Release) (int64, error) {
	unlock := db.lockRow("release:" + r.GUID)
	defer unlock()

	existing, err := db.releaseByGUID(ctx, r.GUID)
	if errors.Is(err, ErrNotFound) {
		return db.insertRelease(ctx, r)
	}
	if err != nil {
		return 0, err
	}

	if r.Files <= existing.Files {
		// Nothing new observed; leave the stored row untouched.
		return existing.ID, nil
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE release SET name = ?, search_name = ?, size = ?, files = ?,
			completion = ?, status = ?, passworded = ?, category_id = ?,
			imdb_id = ?, tvdb_id = ?, tvmaze_id = ?, tmdb_id = ?,
			video_codec = ?, audio_codec = ?, resolution = ?, season = ?,
			episode = ?, year = ?, artist = ?, album = ?, nzb_guid = ?,
			processed = ?
		 WHERE id = ?`,
		r.Name, r.SearchName, r.Size, r.Files, r.Completion, r.Status, r.Passworded,
		r.CategoryID, r.IMDBID, r.TVDBID, r.TVMazeID, r.TMDBID, r.VideoCodec,
		r.AudioCodec, r.Resolution, r.Season, r.Episode, r.Year, r.Artist, r.Album,
		r.NZBGUID, r.Processed, existing.ID)
	if err != nil {
		return 0, fmt.Errorf("extend release %q: %w", r.GUID, err)
	}
	return existing.ID, nil
}

func (db *DB) insertRelease(ctx context.Context, r Release) (int64, error) {
	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO release (name, search_name, guid, size, files, completion,
			posted_date, status, passworded, category_id, group_id, imdb_id,
			tvdb_id, tvmaze_id, tmdb_id, video_codec, audio_codec, resolution,
			season, episode, year, artist, album, nzb_guid, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		r.Name, r.SearchName, r.GUID, r.Size, r.Files, r.Completion, r.PostedDate,
		r.Status, r.Passworded, r.CategoryID, r.GroupID, r.IMDBID, r.TVDBID,
		r.TVMazeID, r.TMDBID, r.VideoCodec, r.AudioCodec, r.Resolution, r.Season,
		r.Episode, r.Year, r.Artist, r.Album, r.NZBGUID, r.Processed)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert release %q: %w", r.GUID, err)
	}
	return id, nil
}

// releaseByGUID looks up a release by its deterministic GUID.
func (db *DB) releaseByGUID(ctx context.Context, guid string) (Release, error) {
	var r Release
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, search_name, guid, size, files, completion, posted_date,
			added_date, status, passworded, category_id, group_id, imdb_id, tvdb_id,
			tvmaze_id, tmdb_id, video_codec, audio_codec, resolution, season,
			episode, year, artist, album, nzb_guid, processed
		 FROM release WHERE guid = ?`, guid)
	err := row.Scan(&r.ID, &r.Name, &r.SearchName, &r.GUID, &r.Size, &r.Files,
		&r.Completion, &r.PostedDate, &r.AddedDate, &r.Status, &r.Passworded,
		&r.CategoryID, &r.GroupID, &r.IMDBID, &r.TVDBID, &r.TVMazeID, &r.TMDBID,
		&r.VideoCodec, &r.AudioCodec, &r.Resolution, &r.Season, &r.Episode,
		&r.Year, &r.Artist, &r.Album, &r.NZBGUID, &r.Processed)
	if errors.Is(err, sql.ErrNoRows) {
		return Release{}, ErrNotFound
	}
	if err != nil {
		return Release{}, fmt.Errorf("release by guid %q: %w", guid, err)
	}
	return r, nil
}

// ReleaseByGUID is the exported lookup used by the NZB emission path to
// confirm a release's current state before writing its document.
func (db *DB) ReleaseByGUID(ctx context.Context, guid string) (Release, error) {
	return db.releaseByGUID(ctx, guid)
}

// MarkProcessed flags a release as having had its NZB emitted.
func (db *DB) MarkProcessed(ctx context.Context, releaseID int64) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE release SET processed = true WHERE id = ?`, releaseID)
	if err != nil {
		return fmt.Errorf("mark release %d processed: %w", releaseID, err)
	}
	return nil
}
