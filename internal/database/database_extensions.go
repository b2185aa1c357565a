// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
database_extensions.go - DuckDB Extension Installation

This file handles installation and loading of the DuckDB extensions the
indexer needs.

Required Extensions (installed in every build):
  - icu: Timezone-aware timestamp operations, needed for TIMESTAMPTZ columns
  - json: JSON path extraction, used by the external PreDB/Newznab clients
    when caching raw API responses

Installation Strategy:
Each extension follows a fallback installation pattern:
 1. Try INSTALL <extension>
 2. If install fails, try LOAD <extension> (may already be installed)
 3. If load fails, try FORCE INSTALL <extension>
 4. If optional=true and all fail, disable feature gracefully

Environment Variables:
  - DUCKDB_EXTENSIONS_OPTIONAL=true: allow startup without these extensions
    (testing only)
  - DUCKDB_EXTENSION_TIMEOUT: override the hard timeout for extension ops
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/cartographus/internal/logging"
)

// communityExtensionTimeout is the hard timeout for extension operations.
// CGO calls don't respect context cancellation, so the retry/timeout logic
// below enforces one with a goroutine and a select.
var communityExtensionTimeout = getExtensionTimeout()

// extensionRetryConfig controls retry behavior for extension operations
type extensionRetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BackoffMult float64
}

// defaultRetryConfig provides sensible defaults for extension loading retries
var defaultRetryConfig = extensionRetryConfig{
	MaxRetries:  3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffMult: 2.0,
}

// getExtensionTimeout returns the timeout for extension operations,
// configurable via DUCKDB_EXTENSION_TIMEOUT.
func getExtensionTimeout() time.Duration {
	if timeoutStr := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// duckdbVersion is the DuckDB version used for extension paths.
// Must match the duckdb-go driver version in go.mod.
const duckdbVersion = "v1.4.3"

// isExtensionInstalledLocally checks if an extension file exists in the
// local DuckDB extension directory, so INSTALL can be skipped when
// extensions are pre-installed (e.g. by a setup script in CI).
func isExtensionInstalledLocally(extensionName string) bool {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return false
	}

	platform := runtime.GOOS + "_" + runtime.GOARCH
	extPath := filepath.Join(homeDir, ".duckdb", "extensions", duckdbVersion, platform, extensionName+".duckdb_extension")

	_, err = os.Stat(extPath)
	return err == nil
}

// execResult holds the result of an async exec operation
type execResult struct {
	err error
}

// queryResult holds the result of an async query operation
type queryResult struct {
	value interface{}
	err   error
}

// execWithHardTimeout executes a SQL statement with a goroutine-based hard
// timeout. Necessary because DuckDB CGO calls don't respect context
// cancellation; ExecContext is still used for proper resource cleanup.
func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan execResult, 1)

	ctx, cancel := extensionContext()
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- execResult{err: err}
	}()

	select {
	case result := <-resultCh:
		return result.err
	case <-time.After(communityExtensionTimeout):
		return fmt.Errorf("operation timed out after %v", communityExtensionTimeout)
	}
}

// queryRowWithHardTimeout executes a query and scans a single value with a
// hard timeout, for the same CGO-cancellation reason as execWithHardTimeout.
func (db *DB) queryRowWithHardTimeout(query string) (interface{}, error) {
	resultCh := make(chan queryResult, 1)

	ctx, cancel := extensionContext()
	defer cancel()

	go func() {
		var result interface{}
		err := db.conn.QueryRowContext(ctx, query).Scan(&result)
		resultCh <- queryResult{value: result, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.value, result.err
	case <-time.After(communityExtensionTimeout):
		return nil, fmt.Errorf("query timed out after %v", communityExtensionTimeout)
	}
}

// execWithRetry executes a SQL statement with retry logic and exponential
// backoff, to ride out transient network failures when downloading an
// extension.
func (db *DB) execWithRetry(query string, config extensionRetryConfig) error {
	var lastErr error
	delay := config.BaseDelay

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("query", query).
				Msg("Retrying extension operation")
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * config.BackoffMult)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		err := db.execWithHardTimeout(query)
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := err.Error()
		isRetryable := strings.Contains(errStr, "timed out") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "503") ||
			strings.Contains(errStr, "temporary failure")

		if !isRetryable {
			return err
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", config.MaxRetries+1).
			Msg("Extension operation failed, will retry")
	}

	return fmt.Errorf("extension operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// extensionInstaller is a function type for installing an extension
type extensionInstaller func(optional bool) error

// installExtension installs an extension and returns error only if not optional
func installExtension(installer extensionInstaller, optional bool) error {
	if err := installer(optional); err != nil && !optional {
		return err
	}
	return nil
}

// installExtensions installs and loads the DuckDB extensions the indexer
// needs: icu (timezone-aware timestamps) and json (external API response
// caching). Both are required unless DUCKDB_EXTENSIONS_OPTIONAL=true.
func (db *DB) installExtensions() error {
	optional := os.Getenv("DUCKDB_EXTENSIONS_OPTIONAL") == "true"

	if err := db.configureExtensionRepository(); err != nil {
		logging.Warn().Err(err).Msg("Failed to set custom extension repository, will use default")
	}

	coreExtensions := []extensionInstaller{
		db.installICU,
		db.installJSON,
	}
	for _, installer := range coreExtensions {
		if err := installExtension(installer, optional); err != nil {
			return err
		}
	}

	return nil
}

// configureExtensionRepository sets HTTPS for extension downloads.
func (db *DB) configureExtensionRepository() error {
	return db.execWithHardTimeout("SET custom_extension_repository = 'https://extensions.duckdb.org';")
}

// installICU installs the ICU extension for timezone support
func (db *DB) installICU(optional bool) error {
	spec := &extensionSpec{
		Name:              "icu",
		VerifyQuery:       "SELECT timezone('UTC', TIMESTAMP '2024-01-01 12:00:00')::VARCHAR",
		AvailabilityField: func(db *DB) *bool { return &db.icuAvailable },
		WarningMessage:    "ICU extension unavailable (DUCKDB_EXTENSIONS_OPTIONAL=true), timezone operations will be limited",
	}
	return db.installCoreExtension(spec, optional)
}

// installJSON installs the JSON extension for JSON operations
func (db *DB) installJSON(optional bool) error {
	spec := &extensionSpec{
		Name:              "json",
		VerifyQuery:       "SELECT json_extract('{\"name\":\"test\"}', '$.name')::VARCHAR",
		AvailabilityField: func(db *DB) *bool { return &db.jsonAvailable },
		WarningMessage:    "JSON extension unavailable (DUCKDB_EXTENSIONS_OPTIONAL=true), JSON operations will be limited",
	}
	return db.installCoreExtension(spec, optional)
}
