// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package external implements the External Deobfuscation Clients (C11,
// §4.9): PreDB, Newznab, and NZBHydra2 HTTP clients consulted by stages
// 4 and 5 of the Deobfuscation Pipeline (internal/deobfuscate). Each
// client wraps its HTTP calls in a sony/gobreaker circuit breaker,
// following the same wrapping style the teacher uses for its Tautulli
// client, so a slow or down external indexer degrades to "silent skip"
// rather than blocking the pipeline.
package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/nntperr"
)

// maxErrorBodyBytes caps how much of a non-2xx response body is read for
// diagnostics, mirroring the teacher's readBodyForError guard against
// unbounded error payloads.
const maxErrorBodyBytes = 64 * 1024

// breaker wraps an *http.Client with a named gobreaker.CircuitBreaker and
// the logging/metrics side effects the teacher attaches to state
// transitions.
type breaker struct {
	name   string
	http   *http.Client
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger *slog.Logger
}

// breakerConfig is the subset of settings every external client's circuit
// breaker needs; callers derive it from config.PreDBConfig/NewznabConfig.
type breakerConfig struct {
	name        string
	timeout     time.Duration
	maxRequests uint32
	interval    time.Duration
	openTimeout time.Duration
}

func newBreaker(cfg breakerConfig, logger *slog.Logger) *breaker {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.name
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.maxRequests,
		Interval:    cfg.interval,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("external client circuit breaker state transition",
				"client", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &breaker{
		name:   name,
		http:   &http.Client{Timeout: cfg.timeout},
		cb:     cb,
		logger: logger,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// get issues a GET against req and returns the response body under
// circuit-breaker protection. A non-2xx status is treated as a breaker
// failure.
func (b *breaker) get(ctx context.Context, url string) ([]byte, error) {
	body, err := b.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := b.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
			return nil, fmt.Errorf("%s: status %d: %s", b.name, resp.StatusCode, string(errBody))
		}
		return io.ReadAll(resp.Body)
	})

	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, requestOutcome(err)).Inc()
		if requestOutcome(err) == "failure" {
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		}
		return nil, nntperr.New(nntperr.KindNetwork, b.name+".get", err)
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return body, nil
}

func requestOutcome(err error) string {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "rejected"
	}
	return "failure"
}
