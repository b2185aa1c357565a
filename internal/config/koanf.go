// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nzbindexer/config.yaml",
	"/etc/nzbindexer/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// Defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		NNTP: NNTPConfig{
			Port:              119,
			SSL:               false,
			SSLPort:           563,
			MaxConnections:    10,
			ConnectTimeout:    30 * time.Second,
			CommandTimeout:    60 * time.Second,
			RateLimitPerSec:   20,
			OverFetchBatch:    5000,
			HeadFallbackBatch: 500,
		},
		Scheduler: SchedulerConfig{
			UpdateThreads:      1,
			ReleasesThreads:    1,
			PostprocessThreads: 1,
			UpdateInterval:     60 * time.Second,
			BackfillInterval:   300 * time.Second,
			BackfillDays:       3,
			RetentionDays:      1100,
			ArticleBatchSize:   25000,
		},
		Deobfuscation: DeobfuscationConfig{
			HashDecodeEnabled: true,
			ArchiveEnabled:    true,
			ExternalEnabled:   true,
			RegexCacheTTL:     10 * time.Minute,
			MaxArticleBytes:   10240,
		},
		PreDB: PreDBConfig{
			Enabled:             false,
			CircuitMaxRequests:  3,
			CircuitOpenTimeout:  60 * time.Second,
			CircuitFailureRatio: 0.6,
			RateLimitPerSec:     5,
		},
		Newznab: NewznabConfig{
			Enabled:            false,
			Confidence:         0.85,
			Timeout:            15 * time.Second,
			CircuitMaxRequests: 3,
			CircuitOpenTimeout: 60 * time.Second,
		},
		NZBHydra2: NewznabConfig{
			Enabled:            false,
			Confidence:         0.9,
			Timeout:            15 * time.Second,
			CircuitMaxRequests: 3,
			CircuitOpenTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:                   "/data/nzbindexer.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Server: ServerConfig{
			Port:    8085,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			JWTRequired:     false,
			TokenTTL:        24 * time.Hour,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Casbin: CasbinConfig{
				ModelPath:  "",
				PolicyPath: "",
			},
		},
		EventBus: EventBusConfig{
			Enabled:        false,
			EmbeddedServer: true,
			URL:            "nats://127.0.0.1:4222",
			StoreDir:       "/data/nats/jetstream",
			StreamName:     "BINARIES",
			ConsumerName:   "materializer",
			AckWait:        30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     "/data/cache",
		},
		Storage: StorageConfig{
			NZBDir:     "/data/nzb",
			CoversDir:  "/data/covers",
			SamplesDir: "/data/samples",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML config file (if one is found)
//  3. Environment Variables: override any setting
//
// Precedence is ENV > File > Defaults. The returned Config is validated and
// immutable; callers needing runtime-mutable settings should layer
// SettingsResolver on top (settings.go).
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths, honoring
// CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when set via environment variable.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string env values into slices
// for known slice fields (YAML-provided slices pass through unchanged).
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths, e.g. NNTP_SERVER -> nntp.server.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"nntp_server":             "nntp.server",
		"nntp_port":               "nntp.port",
		"nntp_ssl":                "nntp.ssl",
		"nntp_ssl_port":           "nntp.ssl_port",
		"nntp_username":           "nntp.username",
		"nntp_password":           "nntp.password",
		"nntp_max_connections":    "nntp.max_connections",
		"nntp_connect_timeout":    "nntp.connect_timeout",
		"nntp_command_timeout":    "nntp.command_timeout",
		"nntp_rate_limit_per_sec": "nntp.rate_limit_per_sec",

		"update_threads":       "scheduler.update_threads",
		"releases_threads":     "scheduler.releases_threads",
		"postprocess_threads":  "scheduler.postprocess_threads",
		"update_interval":      "scheduler.update_interval",
		"backfill_interval":    "scheduler.backfill_interval",
		"backfill_days":        "scheduler.backfill_days",
		"retention_days":       "scheduler.retention_days",
		"article_batch_size":   "scheduler.article_batch_size",

		"deobfuscation_hash_decode_enabled": "deobfuscation.hash_decode_enabled",
		"deobfuscation_archive_enabled":     "deobfuscation.archive_enabled",
		"deobfuscation_external_enabled":    "deobfuscation.external_enabled",
		"deobfuscation_regex_cache_ttl":     "deobfuscation.regex_cache_ttl",
		"deobfuscation_max_article_bytes":   "deobfuscation.max_article_bytes",

		"predb_enabled":               "predb.enabled",
		"predb_circuit_max_requests":  "predb.circuit_max_requests",
		"predb_circuit_open_timeout":  "predb.circuit_open_timeout",
		"predb_circuit_failure_ratio": "predb.circuit_failure_ratio",
		"predb_rate_limit_per_sec":    "predb.rate_limit_per_sec",

		"newznab_enabled":             "newznab.enabled",
		"newznab_url":                 "newznab.url",
		"newznab_api_key":             "newznab.api_key",
		"newznab_confidence":          "newznab.confidence",
		"newznab_timeout":             "newznab.timeout",
		"newznab_circuit_max_requests": "newznab.circuit_max_requests",
		"newznab_circuit_open_timeout": "newznab.circuit_open_timeout",

		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		"jwt_secret":          "security.jwt_secret",
		"jwt_required":        "security.jwt_required",
		"jwt_token_ttl":       "security.token_ttl",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",
		"casbin_model_path":   "security.casbin.model_path",
		"casbin_policy_path":  "security.casbin.policy_path",

		"eventbus_enabled":         "eventbus.enabled",
		"eventbus_embedded_server": "eventbus.embedded_server",
		"eventbus_url":             "eventbus.url",
		"eventbus_store_dir":       "eventbus.store_dir",

		"cache_enabled": "cache.enabled",
		"cache_dir":     "cache.dir",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables don't
	// pollute config.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage (testing
// with mock configurations, custom sources).
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when accessing configuration
// during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
