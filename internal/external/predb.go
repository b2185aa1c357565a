// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cartographus/internal/config"
)

// defaultPreDBTimeout matches spec.md §4.5 stage 4's default per-request
// timeout.
const defaultPreDBTimeout = 10 * time.Second

// PreDBClient queries a single configured PreDB endpoint (§4.9). It
// implements internal/deobfuscate.PreDBClient.
type PreDBClient struct {
	endpoint config.PreDBEndpoint
	br       *breaker
	limiter  *rate.Limiter
}

// preDBResponse is the minimal shape common to PreDB release-lookup JSON
// APIs: a list of matched release names for the query, most specific
// first.
type preDBResponse struct {
	Releases []struct {
		Name string `json:"name"`
	} `json:"releases"`
}

// NewPreDBClient builds a client for one configured endpoint. A nil
// logger uses slog.Default.
func NewPreDBClient(endpoint config.PreDBEndpoint, limiter *rate.Limiter, logger *slog.Logger) *PreDBClient {
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = defaultPreDBTimeout
	}
	return &PreDBClient{
		endpoint: endpoint,
		limiter:  limiter,
		br: newBreaker(breakerConfig{
			name:        "predb-" + endpoint.Name,
			timeout:     timeout,
			maxRequests: 3,
			interval:    time.Minute,
			openTimeout: time.Minute,
		}, logger),
	}
}

// NewPreDBClients builds one PreDBClient per configured endpoint, sharing
// a single rate.Limiter sized by cfg.RateLimitPerSec (per §5's "per-PreDB-
// endpoint rate limiting", applied pool-wide since PreDB endpoints are
// typically a shared community resource).
func NewPreDBClients(cfg config.PreDBConfig, logger *slog.Logger) []*PreDBClient {
	if !cfg.Enabled {
		return nil
	}
	var limiter *rate.Limiter
	if cfg.RateLimitPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), 1)
	}
	clients := make([]*PreDBClient, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		clients = append(clients, NewPreDBClient(ep, limiter, logger))
	}
	return clients
}

// Name returns the endpoint label used to build the "predb_<endpoint>"
// ORN source, per §3's source enumeration.
func (c *PreDBClient) Name() string {
	return c.endpoint.Name
}

// Lookup queries the endpoint for query, returning the first matched
// release name. A non-2xx response, a request error, or a breaker trip is
// a silent skip (§4.9: "Failure = silent skip to the next endpoint"): the
// returned error is always nil so callers never need to distinguish
// "not found" from "endpoint unreachable" — the breaker's own metrics and
// OnStateChange logging record the distinction.
func (c *PreDBClient) Lookup(ctx context.Context, query string) (string, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", false, err
		}
	}

	u, err := buildPreDBURL(c.endpoint, query)
	if err != nil {
		return "", false, nil
	}

	body, err := c.br.get(ctx, u)
	if err != nil {
		return "", false, nil
	}

	var parsed preDBResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, nil
	}
	for _, r := range parsed.Releases {
		if r.Name != "" {
			return r.Name, true, nil
		}
	}
	return "", false, nil
}

func buildPreDBURL(ep config.PreDBEndpoint, query string) (string, error) {
	base, err := url.Parse(ep.URL)
	if err != nil {
		return "", fmt.Errorf("parse predb endpoint %q url: %w", ep.Name, err)
	}
	q := base.Query()
	q.Set("q", query)
	if ep.APIKey != "" {
		q.Set("apikey", ep.APIKey)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
