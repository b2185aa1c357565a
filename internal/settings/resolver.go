// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package settings implements the Settings Resolver (§6/§10): it layers the
// mutable key/value rows in the Store's `setting` table over the static
// Config loaded at startup, so operators can adjust thread counts, backfill
// windows, and NNTP credentials without a restart.
package settings

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
)

// Snapshot is an immutable view of the effective configuration at a point
// in time: static Config values overridden by whatever rows exist in the
// `setting` table.
type Snapshot struct {
	NNTPServer         string
	NNTPPort           int
	NNTPSSL            bool
	NNTPSSLPort        int
	NNTPUsername       string
	NNTPPassword       string
	UpdateThreads      int
	ReleasesThreads    int
	PostprocessThreads int
	BackfillDays       int
	RetentionDays      int
	AllowRegistration  bool
}

// Resolver holds the static Config and a pointer to the latest resolved
// Snapshot, refreshed on demand from the database. Reads are lock-free via
// atomic.Pointer; a Refresh in progress does not block readers using the
// previous snapshot.
type Resolver struct {
	cfg       *config.Config
	db        *database.DB
	decryptor *config.CredentialEncryptor
	current   atomic.Pointer[Snapshot]
}

// New builds a Resolver seeded with cfg's defaults and performs an initial
// Refresh from db. decryptor may be nil if cfg.Security.JWTSecret is empty,
// in which case stored NNTP passwords are treated as plaintext.
func New(ctx context.Context, cfg *config.Config, db *database.DB) (*Resolver, error) {
	var decryptor *config.CredentialEncryptor
	if cfg.Security.JWTSecret != "" {
		enc, err := config.NewCredentialEncryptor(cfg.Security.JWTSecret)
		if err != nil {
			return nil, err
		}
		decryptor = enc
	}

	r := &Resolver{cfg: cfg, db: db, decryptor: decryptor}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads every mutable setting from the database in one round
// trip and atomically swaps in the new Snapshot. Unset keys fall back to
// the static Config's defaults, per §6's "all optional with defaults"
// contract.
func (r *Resolver) Refresh(ctx context.Context) error {
	stored, err := r.db.AllSettings(ctx)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		NNTPServer:         r.cfg.NNTP.Server,
		NNTPPort:           r.cfg.NNTP.Port,
		NNTPSSL:            r.cfg.NNTP.SSL,
		NNTPSSLPort:        r.cfg.NNTP.SSLPort,
		NNTPUsername:       r.cfg.NNTP.Username,
		NNTPPassword:       r.cfg.NNTP.Password,
		UpdateThreads:      r.cfg.Scheduler.UpdateThreads,
		ReleasesThreads:    r.cfg.Scheduler.ReleasesThreads,
		PostprocessThreads: r.cfg.Scheduler.PostprocessThreads,
		BackfillDays:       r.cfg.Scheduler.BackfillDays,
		RetentionDays:      r.cfg.Scheduler.RetentionDays,
		AllowRegistration:  false,
	}

	if v, ok := stored[database.SettingNNTPServer]; ok && v != "" {
		snap.NNTPServer = v
	}
	if v, ok := stored[database.SettingNNTPPort]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.NNTPPort = n
		}
	}
	if v, ok := stored[database.SettingNNTPSSL]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			snap.NNTPSSL = b
		}
	}
	if v, ok := stored[database.SettingNNTPSSLPort]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			snap.NNTPSSLPort = n
		}
	}
	if v, ok := stored[database.SettingNNTPUsername]; ok && v != "" {
		snap.NNTPUsername = v
	}
	if v, ok := stored[database.SettingNNTPPassword]; ok && v != "" {
		if r.decryptor != nil {
			if plain, err := r.decryptor.Decrypt(v); err == nil {
				snap.NNTPPassword = plain
			}
		} else {
			snap.NNTPPassword = v
		}
	}
	if v, ok := stored[database.SettingUpdateThreads]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			snap.UpdateThreads = n
		}
	}
	if v, ok := stored[database.SettingReleasesThreads]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			snap.ReleasesThreads = n
		}
	}
	if v, ok := stored[database.SettingPostprocessThreads]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			snap.PostprocessThreads = n
		}
	}
	if v, ok := stored[database.SettingBackfillDays]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			snap.BackfillDays = n
		}
	}
	if v, ok := stored[database.SettingRetentionDays]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			snap.RetentionDays = n
		}
	}
	if v, ok := stored[database.SettingAllowRegistration]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			snap.AllowRegistration = b
		}
	}

	r.current.Store(snap)
	return nil
}

// Current returns the most recently resolved Snapshot. Safe for concurrent
// use; never blocks on a Refresh in progress.
func (r *Resolver) Current() *Snapshot {
	return r.current.Load()
}
