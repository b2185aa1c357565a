// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/cartographus/internal/config"
)

// defaultNewznabTimeout matches spec.md §4.9's 10-15s default total
// timeout for PreDB/Newznab/NZBHydra2 HTTP calls.
const defaultNewznabTimeout = 15 * time.Second

// newznabRSS is the subset of the Newznab RSS 2.0 response (with the
// newznab XML namespace's attr extension) this client needs: one item
// per matched release, each carrying a guid and a title.
//
// Grounded on the RSS shape the other_examples Newznab-facade handler
// emits (rss/channel/item, newznab:attr name/value pairs) — this client
// is the consuming side of that same wire format.
type newznabRSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []newznabItem `xml:"item"`
	} `xml:"channel"`
}

type newznabItem struct {
	Title string `xml:"title"`
	GUID  string `xml:"guid"`
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

// NewznabClient queries a single Newznab-compatible search API (a direct
// Newznab indexer, or an NZBHydra2 instance exposing the same API — per
// §4.9 "NZBHydra2 client: the same contract as a Newznab client pointed
// at a meta-indexer", one type serves both roles).
type NewznabClient struct {
	name       string
	baseURL    string
	apiKey     string
	confidence float64
	br         *breaker
}

// NewNewznabClient builds a client from config.NewznabConfig. label
// distinguishes multiple configured instances in logs/metrics (e.g.
// "newznab" vs "nzbhydra2").
func NewNewznabClient(label string, cfg config.NewznabConfig, logger *slog.Logger) *NewznabClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultNewznabTimeout
	}
	confidence := cfg.Confidence
	if confidence <= 0 {
		confidence = 0.85
	}
	maxRequests := cfg.CircuitMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	openTimeout := cfg.CircuitOpenTimeout
	if openTimeout <= 0 {
		openTimeout = time.Minute
	}
	return &NewznabClient{
		name:       label,
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		confidence: confidence,
		br: newBreaker(breakerConfig{
			name:        "newznab-" + label,
			timeout:     timeout,
			maxRequests: maxRequests,
			interval:    time.Minute,
			openTimeout: openTimeout,
		}, logger),
	}
}

// NewNewznabPool builds the configured Newznab and NZBHydra2 clients as a
// single slice suitable for deobfuscate.New's newznab argument, so stage
// 5's fan-out (in the pipeline itself) treats both uniformly as required
// by §4.9's "the same contract as a Newznab client".
func NewNewznabPool(newznab config.NewznabConfig, nzbhydra2 config.NewznabConfig, logger *slog.Logger) []*NewznabClient {
	var pool []*NewznabClient
	if newznab.Enabled {
		pool = append(pool, NewNewznabClient("newznab", newznab, logger))
	}
	if nzbhydra2.Enabled {
		pool = append(pool, NewNewznabClient("nzbhydra2", nzbhydra2, logger))
	}
	return pool
}

// Lookup queries the search API for query (§4.9's "lookup_by_hash returns
// the first title that differs from the query" rule: a result whose
// title equals the query verbatim carries no information and is
// skipped). A request failure, parse failure, or breaker trip returns
// ok=false with a nil error — consistent with stage 5's silent-skip
// fan-out in the pipeline.
func (c *NewznabClient) Lookup(ctx context.Context, query string) (string, float64, bool, error) {
	u, err := c.searchURL(query)
	if err != nil {
		return "", 0, false, nil
	}

	body, err := c.br.get(ctx, u)
	if err != nil {
		return "", 0, false, nil
	}

	var parsed newznabRSS
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return "", 0, false, nil
	}

	for _, item := range parsed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" || strings.EqualFold(title, query) {
			continue
		}
		return title, c.confidence, true, nil
	}
	return "", 0, false, nil
}

func (c *NewznabClient) searchURL(query string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse newznab %q url: %w", c.name, err)
	}
	q := base.Query()
	q.Set("t", "search")
	q.Set("q", query)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
