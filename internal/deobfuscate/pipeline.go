// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package deobfuscate implements the Deobfuscation Pipeline (C6, §4.5): a
// five-stage chain (ORN cache, regex, archive, PreDB, Newznab/NZBHydra2)
// that turns an obfuscated Usenet subject into a real release name, and
// the obfuscation detector used to decide whether a name needs this
// treatment at all.
package deobfuscate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/cartographus/internal/archive"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/nntperr"
	"github.com/tomtom215/cartographus/internal/yenc"
)

// Sources used in ORNMapping.Source, per spec.md §3's enumerated list.
const (
	SourceManual      = "manual"
	SourceArchive     = "archive"
	SourceNewznab     = "newznab"
	SourceCommunity   = "community"
	SourceImported    = "imported"
	regexSourcePrefix = "regex_pattern_"
	predbSourcePrefix = "predb_"
)

// CommunityConfidenceCap is the maximum confidence a community-sourced
// contribution may be stored with (§4.5's community ingestion rule).
const CommunityConfidenceCap = 0.85

// Input is what the pipeline needs to attempt deobfuscation of one
// article's release name.
type Input struct {
	Subject    string
	GroupName  string
	MessageID  string
	BodyPrefix []byte // optional, obtained via ArticleFetcher+yenc upstream
}

// Result is a successfully resolved real name plus its provenance.
type Result struct {
	RealName   string
	Source     string
	Confidence float64
}

// ArticleFetcher is the subset of internal/nntp.Client the archive stage
// needs. Declared here (rather than imported) so this package has no
// dependency on the NNTP wire protocol — any connection-owning caller
// can satisfy it.
type ArticleFetcher interface {
	FetchArticlePrefix(ctx context.Context, idOrMessageID string, maxBytes int) ([]byte, error)
}

// PreDBClient looks up a release name from a single configured PreDB
// endpoint (stage 4, §4.5). Implemented by internal/external.
type PreDBClient interface {
	Name() string // endpoint label, used to build the "predb_<endpoint>" source
	Lookup(ctx context.Context, query string) (name string, ok bool, err error)
}

// NewznabClient looks up a release name from a Newznab-compatible index
// or NZBHydra2 meta-search (stage 5, §4.5). Implemented by
// internal/external.
type NewznabClient interface {
	Lookup(ctx context.Context, query string) (name string, confidence float64, ok bool, err error)
}

// compiledRegex is one release_regexes row with its patterns compiled.
type compiledRegex struct {
	id           int64
	groupPattern *regexp.Regexp // nil when GroupPattern == "*"
	pattern      *regexp.Regexp
}

// Pipeline runs the five deobfuscation stages against the Store's ORN
// cache and regex table, falling back to archive parsing and the
// configured external lookup clients.
type Pipeline struct {
	db  *database.DB
	cfg config.DeobfuscationConfig

	preDB   []PreDBClient
	newznab []NewznabClient

	mu         sync.RWMutex
	compiled   []compiledRegex
	compiledAt time.Time
}

// New builds a Pipeline. preDB and newznab may be empty (stages 4/5 are
// then skipped).
func New(db *database.DB, cfg config.DeobfuscationConfig, preDB []PreDBClient, newznab []NewznabClient) *Pipeline {
	return &Pipeline{db: db, cfg: cfg, preDB: preDB, newznab: newznab}
}

// Deobfuscate runs the pipeline's stages in order, halting on the first
// success. Every success (other than a cache hit) writes/updates the ORN
// cache (§4.5).
func (p *Pipeline) Deobfuscate(ctx context.Context, fetcher ArticleFetcher, in Input) (Result, error) {
	key := Normalize(in.Subject)
	if key == "" {
		return Result{}, nntperr.New(nntperr.KindDecode, "deobfuscate.Deobfuscate", errors.New("empty normalized key"))
	}

	if res, ok, err := p.lookupCache(ctx, key); err != nil {
		return Result{}, err
	} else if ok {
		metrics.RecordDeobfuscationCache(true)
		return res, nil
	}
	metrics.RecordDeobfuscationCache(false)

	if res, ok, err := p.matchRegex(ctx, in); err != nil {
		return Result{}, err
	} else if ok {
		metrics.RecordDeobfuscationStage("regex")
		p.save(ctx, key, res)
		return res, nil
	}

	if len(in.BodyPrefix) > 0 {
		if res, ok := p.parseArchive(in.BodyPrefix); ok {
			metrics.RecordDeobfuscationStage("archive")
			p.save(ctx, key, res)
			return res, nil
		}
	} else if fetcher != nil && in.MessageID != "" && p.cfg.ArchiveEnabled {
		body, err := fetcher.FetchArticlePrefix(ctx, in.MessageID, p.maxArticleBytes())
		if err == nil {
			decoded := yenc.Decode(body, p.maxArticleBytes())
			if res, ok := p.parseArchive(decoded.Data); ok {
				metrics.RecordDeobfuscationStage("archive")
				p.save(ctx, key, res)
				return res, nil
			}
		}
	}

	if p.cfg.ExternalEnabled {
		predbStart := time.Now()
		res, ok := p.queryPreDB(ctx, in.Subject)
		metrics.RecordExternalLookup("predb", time.Since(predbStart))
		if ok {
			metrics.RecordDeobfuscationStage("predb")
			p.save(ctx, key, res)
			return res, nil
		}

		newznabStart := time.Now()
		res, ok = p.queryNewznab(ctx, in.Subject)
		metrics.RecordExternalLookup("newznab", time.Since(newznabStart))
		if ok {
			metrics.RecordDeobfuscationStage("newznab")
			p.save(ctx, key, res)
			return res, nil
		}
	}

	return Result{}, nntperr.New(nntperr.KindNotFound, "deobfuscate.Deobfuscate", errors.New("no stage resolved a name"))
}

func (p *Pipeline) maxArticleBytes() int {
	if p.cfg.MaxArticleBytes > 0 {
		return p.cfg.MaxArticleBytes
	}
	return yenc.DefaultMaxBytes
}

// lookupCache is stage 1.
func (p *Pipeline) lookupCache(ctx context.Context, key string) (Result, bool, error) {
	m, err := p.db.ORNLookup(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("orn cache lookup: %w", err)
	}
	return Result{RealName: m.RealName, Source: m.Source, Confidence: m.Confidence}, true, nil
}

// matchRegex is stage 2.
func (p *Pipeline) matchRegex(ctx context.Context, in Input) (Result, bool, error) {
	if !p.cfg.HashDecodeEnabled {
		return Result{}, false, nil
	}
	patterns, err := p.patternsFor(ctx, in.GroupName)
	if err != nil {
		return Result{}, false, err
	}

	for _, cr := range patterns {
		m := cr.pattern.FindStringSubmatch(in.Subject)
		if m == nil {
			continue
		}
		name := extractedName(cr.pattern, m)
		if !validCandidateName(name) {
			continue
		}
		if err := p.db.IncrementRegexMatchCount(ctx, cr.id); err != nil {
			return Result{}, false, fmt.Errorf("increment regex match count: %w", err)
		}
		return Result{
			RealName:   name,
			Source:     regexSourcePrefix + strconv.FormatInt(cr.id, 10),
			Confidence: 0.9,
		}, true, nil
	}
	return Result{}, false, nil
}

// extractedName prefers the named groups "name"/"release"/"title"/
// "releasename" (in that order); falls back to capture group 1 (§4.5).
func extractedName(re *regexp.Regexp, m []string) string {
	names := re.SubexpNames()
	for _, want := range []string{"name", "release", "title", "releasename"} {
		for i, n := range names {
			if n == want && i < len(m) {
				return strings.TrimSpace(m[i])
			}
		}
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// validCandidateName applies §4.5 stage 2's validation: length 5-250,
// at least 3 alphanumerics, and not itself a bare obfuscated-looking hash.
func validCandidateName(name string) bool {
	if len(name) < 5 || len(name) > 250 {
		return false
	}
	alnum := 0
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	if alnum < 3 {
		return false
	}
	return !IsObfuscated(name)
}

// patternsFor returns the compiled patterns applicable to groupName,
// refreshing the cache from the Store when it's empty or past its TTL
// (§4.5 stage 2, "load and cache compiled patterns").
func (p *Pipeline) patternsFor(ctx context.Context, groupName string) ([]compiledRegex, error) {
	p.mu.RLock()
	stale := p.compiled == nil || (p.cfg.RegexCacheTTL > 0 && time.Since(p.compiledAt) > p.cfg.RegexCacheTTL)
	p.mu.RUnlock()

	if stale {
		if err := p.refreshPatterns(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	var applicable []compiledRegex
	for _, cr := range p.compiled {
		if cr.groupPattern == nil || cr.groupPattern.MatchString(groupName) {
			applicable = append(applicable, cr)
		}
	}
	return applicable, nil
}

// InvalidatePatternCache forces the next patternsFor call to reload from
// the Store, for callers that just inserted/updated/deleted a pattern.
func (p *Pipeline) InvalidatePatternCache() {
	p.mu.Lock()
	p.compiled = nil
	p.mu.Unlock()
}

func (p *Pipeline) refreshPatterns(ctx context.Context) error {
	rows, err := p.db.ActiveRegexes(ctx)
	if err != nil {
		return fmt.Errorf("load active regexes: %w", err)
	}

	compiled := make([]compiledRegex, 0, len(rows))
	for _, row := range rows {
		pattern, err := regexp.Compile(row.Regex)
		if err != nil {
			continue // a malformed stored pattern is skipped, not fatal
		}
		var groupRe *regexp.Regexp
		if row.GroupPattern != "*" {
			groupRe, err = regexp.Compile(row.GroupPattern)
			if err != nil {
				continue
			}
		}
		compiled = append(compiled, compiledRegex{id: row.ID, groupPattern: groupRe, pattern: pattern})
	}

	p.mu.Lock()
	p.compiled = compiled
	p.compiledAt = time.Now()
	p.mu.Unlock()
	return nil
}

// parseArchive is stage 3.
func (p *Pipeline) parseArchive(bodyPrefix []byte) (Result, bool) {
	name, ok := archive.ExtractFilename(bodyPrefix)
	if !ok {
		return Result{}, false
	}
	return Result{RealName: name, Source: SourceArchive, Confidence: 0.9}, true
}

// queryPreDB is stage 4: first non-empty answer wins.
func (p *Pipeline) queryPreDB(ctx context.Context, query string) (Result, bool) {
	for _, c := range p.preDB {
		name, ok, err := c.Lookup(ctx, query)
		if err != nil || !ok || name == "" {
			continue
		}
		return Result{RealName: name, Source: predbSourcePrefix + c.Name(), Confidence: 0.95}, true
	}
	return Result{}, false
}

// queryNewznab is stage 5: broadcasts to all configured clients and takes
// the first non-empty answer (§4.5 describes this as parallel; the
// worker-pool-bounded caller already runs one deobfuscation per worker,
// so this fans out across the configured pool itself).
func (p *Pipeline) queryNewznab(ctx context.Context, query string) (Result, bool) {
	type answer struct {
		res Result
		ok  bool
	}
	results := make(chan answer, len(p.newznab))
	var wg sync.WaitGroup
	for _, c := range p.newznab {
		wg.Add(1)
		go func(c NewznabClient) {
			defer wg.Done()
			name, confidence, ok, err := c.Lookup(ctx, query)
			if err != nil || !ok || name == "" {
				results <- answer{}
				return
			}
			results <- answer{res: Result{RealName: name, Source: SourceNewznab, Confidence: confidence}, ok: true}
		}(c)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for a := range results {
		if a.ok {
			return a.res, true
		}
	}
	return Result{}, false
}

// save writes/updates the ORN cache for key, per §4.5's "every success
// writes/updates the ORN cache" rule. Failures are logged by the caller's
// surrounding instrumentation, not fatal to the pipeline call that just
// succeeded.
func (p *Pipeline) save(ctx context.Context, key string, res Result) {
	_ = p.db.ORNSave(ctx, key, res.RealName, res.Source, res.Confidence)
}

// SaveCommunityContribution stores a contribution from the public ORN
// sharing boundary (§6/§4.5's community ingestion rule), capping
// confidence at CommunityConfidenceCap regardless of what the caller
// requested.
func (p *Pipeline) SaveCommunityContribution(ctx context.Context, obfuscatedHash, realName string, confidence float64) error {
	if confidence > CommunityConfidenceCap {
		confidence = CommunityConfidenceCap
	}
	return p.db.ORNSave(ctx, Normalize(obfuscatedHash), realName, SourceCommunity, confidence)
}
