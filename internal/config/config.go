// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment
// variables and an optional config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every optional setting
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Configuration Categories:
//
//  1. NNTP: upstream Usenet server connection and credentials
//  2. Scheduler: update/backfill loop tuning (worker counts, intervals)
//  3. Deobfuscation: which pipeline stages run and their budgets
//  4. PreDB / Newznab: external lookup endpoints consulted by the
//     deobfuscation pipeline's external stage
//  5. Database: DuckDB connection tuning
//  6. Server: the narrow internal HTTP surface (healthz, metrics, ORN
//     sharing boundary) — never the out-of-scope admin surface
//  7. Security: JWT/casbin for the ORN sharing boundary only
//  8. EventBus: optional embedded NATS JetStream bus between the Binary
//     Assembler and Release Materializer
//  9. Cache: optional on-disk Badger front cache for ORN/regex lookups
//  10. Logging: log level and output format
//
// Most of these settings also exist as mutable rows in the Store's
// `setting` table (see internal/database/settings.go); SettingsResolver
// (settings.go in this package) layers those over the static Config at
// runtime, matching spec.md §6/§10.
//
// Thread Safety: Config is immutable after Load() and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	NNTP          NNTPConfig          `koanf:"nntp"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Deobfuscation DeobfuscationConfig `koanf:"deobfuscation"`
	PreDB         PreDBConfig         `koanf:"predb"`
	Newznab       NewznabConfig       `koanf:"newznab"`
	NZBHydra2     NewznabConfig       `koanf:"nzbhydra2"`
	Database      DatabaseConfig      `koanf:"database"`
	Server        ServerConfig        `koanf:"server"`
	Security      SecurityConfig      `koanf:"security"`
	EventBus      EventBusConfig      `koanf:"eventbus"`
	Cache         CacheConfig         `koanf:"cache"`
	Storage       StorageConfig       `koanf:"storage"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// StorageConfig holds the filesystem layout for emitted artifacts (§6):
// NZB documents, plus the covers/samples directories reserved for
// post-processing stages this repo does not implement.
type StorageConfig struct {
	NZBDir     string `koanf:"nzb_dir"`
	CoversDir  string `koanf:"covers_dir"`
	SamplesDir string `koanf:"samples_dir"`
}

// NNTPConfig holds the upstream Usenet server connection settings consumed
// by the NNTP Client (C2). NNTPPassword is encrypted at rest via
// internal/config/encryption.go and decrypted only in memory.
type NNTPConfig struct {
	Server            string        `koanf:"server"`
	Port              int           `koanf:"port"`
	SSL               bool          `koanf:"ssl"`
	SSLPort           int           `koanf:"ssl_port"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	MaxConnections    int           `koanf:"max_connections"`
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	CommandTimeout    time.Duration `koanf:"command_timeout"`
	RateLimitPerSec   float64       `koanf:"rate_limit_per_sec"`
	OverFetchBatch    int           `koanf:"over_fetch_batch"`
	HeadFallbackBatch int           `koanf:"head_fallback_batch"`
}

// SchedulerConfig tunes the Group Scheduler's (C9) two loops and their
// bounded worker pools.
type SchedulerConfig struct {
	UpdateThreads      int           `koanf:"update_threads"`
	ReleasesThreads    int           `koanf:"releases_threads"`
	PostprocessThreads int           `koanf:"postprocess_threads"`
	UpdateInterval     time.Duration `koanf:"update_interval"`
	BackfillInterval   time.Duration `koanf:"backfill_interval"`
	BackfillDays       int           `koanf:"backfill_days"`
	RetentionDays      int           `koanf:"retention_days"`
	ArticleBatchSize   int           `koanf:"article_batch_size"`
}

// DeobfuscationConfig controls which deobfuscation pipeline stages (§4.6)
// run and their relative budgets. Stage order itself (cache, regex,
// hash-decode, archive, external) is fixed by the pipeline, not config.
type DeobfuscationConfig struct {
	HashDecodeEnabled bool          `koanf:"hash_decode_enabled"`
	ArchiveEnabled    bool          `koanf:"archive_enabled"`
	ExternalEnabled   bool          `koanf:"external_enabled"`
	RegexCacheTTL     time.Duration `koanf:"regex_cache_ttl"`
	MaxArticleBytes   int           `koanf:"max_article_bytes"`
}

// PreDBEndpoint is one configured PreDB lookup endpoint. Confidence is
// fixed per endpoint (Open Question decision in SPEC_FULL.md): the
// first-listed, most-trusted endpoint defaults to 0.95, subsequent ones to
// 0.85.
type PreDBEndpoint struct {
	Name       string        `koanf:"name"`
	URL        string        `koanf:"url"`
	APIKey     string        `koanf:"api_key"`
	Confidence float64       `koanf:"confidence"`
	Timeout    time.Duration `koanf:"timeout"`
}

// PreDBConfig holds the external PreDB client (C11) settings, including its
// circuit breaker tuning.
type PreDBConfig struct {
	Enabled               bool            `koanf:"enabled"`
	Endpoints             []PreDBEndpoint `koanf:"endpoints"`
	CircuitMaxRequests    uint32          `koanf:"circuit_max_requests"`
	CircuitOpenTimeout    time.Duration   `koanf:"circuit_open_timeout"`
	CircuitFailureRatio   float64         `koanf:"circuit_failure_ratio"`
	RateLimitPerSec       float64         `koanf:"rate_limit_per_sec"`
}

// NewznabConfig holds one Newznab-compatible client's settings. Config's
// Newznab and NZBHydra2 fields both use this shape: per §4.9 "NZBHydra2
// client: the same contract as a Newznab client pointed at a
// meta-indexer."
type NewznabConfig struct {
	Enabled            bool          `koanf:"enabled"`
	URL                string        `koanf:"url"`
	APIKey             string        `koanf:"api_key"`
	Confidence         float64       `koanf:"confidence"`
	Timeout            time.Duration `koanf:"timeout"`
	CircuitMaxRequests uint32        `koanf:"circuit_max_requests"`
	CircuitOpenTimeout time.Duration `koanf:"circuit_open_timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                   // 0 = use runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`  // DuckDB default
}

// ServerConfig holds the internal HTTP server settings for the narrow
// surface the core owns: /healthz, /metrics, /ws/ingest, and the §6 ORN
// sharing boundary. The out-of-scope admin surface is not served here.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds auth settings for the ORN sharing boundary, the only
// authz-shaped edge the core owns (§6).
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	JWTRequired     bool          `koanf:"jwt_required"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	Casbin          CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig points at the RBAC model/policy authorizing community ORN
// writes.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
}

// EventBusConfig controls the optional embedded NATS JetStream bus that can
// decouple the Binary Assembler (producer) from the Release Materializer
// (consumer). When Enabled is false, the assembler dispatches synchronously
// by direct call, which is the default and the path exercised by tests.
type EventBusConfig struct {
	Enabled        bool          `koanf:"enabled"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	URL            string        `koanf:"url"`
	StoreDir       string        `koanf:"store_dir"`
	StreamName     string        `koanf:"stream_name"`
	ConsumerName   string        `koanf:"consumer_name"`
	AckWait        time.Duration `koanf:"ack_wait"`
}

// CacheConfig controls the optional on-disk Badger front cache for hot ORN
// mappings and compiled regex patterns, reducing DuckDB round trips across
// restarts.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the loaded configuration for internal consistency beyond
// what koanf's unmarshal already guarantees.
func (c *Config) Validate() error {
	if c.NNTP.Server == "" {
		return fmt.Errorf("nntp.server is required")
	}
	if c.NNTP.Port <= 0 || c.NNTP.Port > 65535 {
		return fmt.Errorf("nntp.port must be between 1 and 65535, got %d", c.NNTP.Port)
	}
	if c.NNTP.SSL && (c.NNTP.SSLPort <= 0 || c.NNTP.SSLPort > 65535) {
		return fmt.Errorf("nntp.ssl_port must be between 1 and 65535 when nntp.ssl is true, got %d", c.NNTP.SSLPort)
	}
	if c.NNTP.MaxConnections <= 0 {
		return fmt.Errorf("nntp.max_connections must be positive, got %d", c.NNTP.MaxConnections)
	}
	if c.Scheduler.UpdateThreads <= 0 {
		return fmt.Errorf("scheduler.update_threads must be positive, got %d", c.Scheduler.UpdateThreads)
	}
	if c.Scheduler.UpdateInterval <= 0 {
		return fmt.Errorf("scheduler.update_interval must be positive")
	}
	if c.Scheduler.BackfillInterval <= 0 {
		return fmt.Errorf("scheduler.backfill_interval must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	for i, ep := range c.PreDB.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("predb.endpoints[%d].url is required", i)
		}
		if err := validateHTTPURL(ep.URL, fmt.Sprintf("predb.endpoints[%d].url", i)); err != nil {
			return err
		}
		if ep.Confidence < 0 || ep.Confidence > 1 {
			return fmt.Errorf("predb.endpoints[%d].confidence must be in [0,1], got %f", i, ep.Confidence)
		}
	}
	if c.Newznab.Enabled {
		if err := validateHTTPURL(c.Newznab.URL, "newznab.url"); err != nil {
			return err
		}
		if c.Newznab.Confidence < 0 || c.Newznab.Confidence > 1 {
			return fmt.Errorf("newznab.confidence must be in [0,1], got %f", c.Newznab.Confidence)
		}
	}
	if c.NZBHydra2.Enabled {
		if err := validateHTTPURL(c.NZBHydra2.URL, "nzbhydra2.url"); err != nil {
			return err
		}
		if c.NZBHydra2.Confidence < 0 || c.NZBHydra2.Confidence > 1 {
			return fmt.Errorf("nzbhydra2.confidence must be in [0,1], got %f", c.NZBHydra2.Confidence)
		}
	}
	if c.EventBus.Enabled {
		if err := validateNATSURL(c.EventBus.URL); err != nil {
			return fmt.Errorf("eventbus.url: %w", err)
		}
	}
	if c.Security.JWTRequired && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required when security.jwt_required is true")
	}
	return nil
}
