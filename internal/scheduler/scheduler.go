// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package scheduler implements the Group Scheduler (C9, §4.8): an update
// loop and a backfill loop, each dispatching a bounded worker pool over
// tracked newsgroups, feeding fetched article headers through the Binary
// Assembler and completed binaries through the Release Materializer.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/cartographus/internal/assembler"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/database"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/nntp"
	"github.com/tomtom215/cartographus/internal/release"
)

// Backfill-target recompute bounds and invalidity threshold, §4.8.
const (
	minBackfillTargetArticles = 1000
	maxBackfillTargetArticles = 100000
	invalidBackfillDistance   = 200000
	defaultArticleBatchSize   = 25000
)

// GroupClient is the per-connection NNTP capability the scheduler needs:
// select a group, fetch a range of headers, and fetch an article body
// prefix for the assembler's yEnc fallback path. Declared locally (not
// imported from internal/nntp beyond the Header type) so a fake can
// satisfy it in tests without dialing anything. internal/nntp.Client
// satisfies it structurally.
type GroupClient interface {
	SelectGroup(ctx context.Context, name string) (count, first, last int64, err error)
	OverRange(ctx context.Context, lo, hi int64) ([]nntp.Header, error)
	FetchArticlePrefix(ctx context.Context, idOrMessageID string, maxBytes int) ([]byte, error)
	Quit()
}

// ClientFactory opens one GroupClient connection. A new connection is
// requested per group-pass worker because NNTP's GROUP selection is
// connection-scoped; concurrent workers can never share one.
type ClientFactory func(ctx context.Context) (GroupClient, error)

// ProgressSink receives scheduler activity for operator-facing
// broadcast (internal/progress.Hub satisfies this). Optional: a
// Scheduler with no sink attached simply skips these calls.
type ProgressSink interface {
	BroadcastLoopTick(loop string, duration time.Duration)
	BroadcastGroupResult(loop, group string, articles int)
	BroadcastRelease(group, name, guid string)
}

// EventPublisher decouples binary completion from materialization
// (internal/eventbus.Bus satisfies this). When attached and enabled, a
// completed Binary is published instead of materialized synchronously;
// a separate eventbus consumer service does the materializing.
type EventPublisher interface {
	Enabled() bool
	Publish(ctx context.Context, bin *assembler.Binary) error
}

// Scheduler runs the update and backfill loops against the Store's
// tracked groups.
type Scheduler struct {
	db              *database.DB
	materializer    *release.Materializer
	newClient       ClientFactory
	cfg             config.SchedulerConfig
	maxArticleBytes int
	log             *slog.Logger
	progress        ProgressSink
	events          EventPublisher

	mu     sync.Mutex
	active map[string]struct{}
}

// SetProgress attaches a ProgressSink the scheduler reports loop ticks,
// group results, and materialized releases to.
func (s *Scheduler) SetProgress(p ProgressSink) {
	s.progress = p
}

// SetEventBus attaches an EventPublisher. When its Enabled() is true,
// processHeaders publishes completed binaries instead of materializing
// them synchronously.
func (s *Scheduler) SetEventBus(e EventPublisher) {
	s.events = e
}

// New builds a Scheduler. maxArticleBytes bounds the yEnc-fallback body
// prefetch the assembler performs when a subject doesn't parse.
func New(db *database.DB, materializer *release.Materializer, newClient ClientFactory, cfg config.SchedulerConfig, maxArticleBytes int, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		db:              db,
		materializer:    materializer,
		newClient:       newClient,
		cfg:             cfg,
		maxArticleBytes: maxArticleBytes,
		log:             log,
		active:          make(map[string]struct{}),
	}
}

// loopService is a suture.Service that ticks tick at a fixed interval
// until its context is canceled.
type loopService struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	progress ProgressSink
}

func (l *loopService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			l.tick(ctx)
			dur := time.Since(start)
			metrics.RecordSchedulerLoop(l.name, dur)
			if l.progress != nil {
				l.progress.BroadcastLoopTick(l.name, dur)
			}
		}
	}
}

func (l *loopService) String() string { return l.name }

// UpdateLoopService returns the suture.Service for the 60s update loop,
// ready to be registered on a Tree via AddUpdateService.
func (s *Scheduler) UpdateLoopService() suture.Service {
	return &loopService{name: "group-update-loop", interval: s.cfg.UpdateInterval, tick: s.updateTick, progress: s.progress}
}

// BackfillLoopService returns the suture.Service for the 300s backfill
// loop, ready to be registered on a Tree via AddBackfillService.
func (s *Scheduler) BackfillLoopService() suture.Service {
	return &loopService{name: "group-backfill-loop", interval: s.cfg.BackfillInterval, tick: s.backfillTick, progress: s.progress}
}

func (s *Scheduler) tryAcquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[name]; busy {
		return false
	}
	s.active[name] = struct{}{}
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	delete(s.active, name)
	s.mu.Unlock()
}

func poolSize(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// updateTick dispatches one update pass: snapshot active groups, skip any
// already being processed, and run the rest across a pool sized
// update_threads (§4.8).
func (s *Scheduler) updateTick(ctx context.Context) {
	groups, err := s.db.ActiveGroups(ctx)
	if err != nil {
		s.log.Error("scheduler: list active groups", "error", err)
		return
	}

	sem := make(chan struct{}, poolSize(s.cfg.UpdateThreads))
	var wg sync.WaitGroup
	for _, g := range groups {
		if !s.tryAcquire(g.Name) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(g database.Group) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.release(g.Name)
			s.updateGroup(ctx, g)
		}(g)
	}
	wg.Wait()
}

// backfillTick dispatches one backfill pass across a pool sized
// max(1, update_threads/2) (§4.8).
func (s *Scheduler) backfillTick(ctx context.Context) {
	groups, err := s.db.BackfillGroups(ctx)
	if err != nil {
		s.log.Error("scheduler: list backfill groups", "error", err)
		return
	}

	sem := make(chan struct{}, poolSize(s.cfg.UpdateThreads/2))
	var wg sync.WaitGroup
	for _, g := range groups {
		if !s.tryAcquire(g.Name) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(g database.Group) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.release(g.Name)
			s.backfillGroup(ctx, g)
		}(g)
	}
	wg.Wait()
}

// updateGroup polls g's forward range [current_article_id+1...last],
// feeds fetched headers through a fresh assembler.Batch, materializes
// every binary that crosses a completion trigger, and advances the
// forward cursor to the highest article id scanned.
func (s *Scheduler) updateGroup(ctx context.Context, g database.Group) {
	client, err := s.newClient(ctx)
	if err != nil {
		s.log.Error("scheduler: open client", "group", g.Name, "error", err)
		return
	}
	defer client.Quit()

	_, first, last, err := client.SelectGroup(ctx, g.Name)
	if err != nil {
		s.log.Error("scheduler: select group", "group", g.Name, "error", err)
		return
	}
	if err := s.db.SetServerRange(ctx, g.ID, first, last); err != nil {
		s.log.Error("scheduler: set server range", "group", g.Name, "error", err)
		return
	}

	cur, err := s.db.GroupByName(ctx, g.Name)
	if err != nil {
		s.log.Error("scheduler: reload group", "group", g.Name, "error", err)
		return
	}

	lo, hi := cur.CurrentArticleID+1, s.boundedHi(cur.CurrentArticleID+1, cur.LastArticleID)
	if lo > hi {
		return
	}

	headers, err := client.OverRange(ctx, lo, hi)
	if err != nil {
		s.log.Error("scheduler: over range", "group", g.Name, "lo", lo, "hi", hi, "error", err)
		return
	}

	s.processHeaders(ctx, "group-update-loop", client, g.Name, headers)

	if err := s.db.AdvanceCurrentArticleID(ctx, g.ID, hi); err != nil {
		s.log.Error("scheduler: advance current article id", "group", g.Name, "error", err)
	}
}

// backfillGroup polls g's backward range [backfill_target...current-1],
// recomputing an invalid target first, then advances the target forward
// by the number of articles scanned.
func (s *Scheduler) backfillGroup(ctx context.Context, g database.Group) {
	if err := s.ensureValidBackfillTarget(ctx, g); err != nil {
		s.log.Error("scheduler: recompute backfill target", "group", g.Name, "error", err)
		return
	}

	cur, err := s.db.GroupByName(ctx, g.Name)
	if err != nil {
		s.log.Error("scheduler: reload group", "group", g.Name, "error", err)
		return
	}

	lo, hi := cur.BackfillTarget, s.boundedHi(cur.BackfillTarget, cur.CurrentArticleID-1)
	if lo > hi {
		return
	}

	client, err := s.newClient(ctx)
	if err != nil {
		s.log.Error("scheduler: open client", "group", g.Name, "error", err)
		return
	}
	defer client.Quit()

	if _, _, _, err := client.SelectGroup(ctx, g.Name); err != nil {
		s.log.Error("scheduler: select group", "group", g.Name, "error", err)
		return
	}

	headers, err := client.OverRange(ctx, lo, hi)
	if err != nil {
		s.log.Error("scheduler: over range", "group", g.Name, "lo", lo, "hi", hi, "error", err)
		return
	}

	s.processHeaders(ctx, "group-backfill-loop", client, g.Name, headers)

	if err := s.db.AdvanceBackfillTarget(ctx, g.ID, hi+1); err != nil {
		s.log.Error("scheduler: advance backfill target", "group", g.Name, "error", err)
	}
}

// boundedHi caps a [lo...naturalHi] range to the configured
// article_batch_size so one tick never tries to OVER an unbounded range.
func (s *Scheduler) boundedHi(lo, naturalHi int64) int64 {
	batch := int64(s.cfg.ArticleBatchSize)
	if batch <= 0 {
		batch = defaultArticleBatchSize
	}
	if naturalHi-lo+1 > batch {
		return lo + batch - 1
	}
	return naturalHi
}

// processHeaders folds headers into a fresh Batch and materializes every
// Binary that crosses a completion trigger.
func (s *Scheduler) processHeaders(ctx context.Context, loop string, client GroupClient, groupName string, headers []nntp.Header) {
	metrics.RecordArticlesProcessed(groupName, len(headers))
	if s.progress != nil {
		s.progress.BroadcastGroupResult(loop, groupName, len(headers))
	}

	batch := assembler.NewBatch()
	for _, h := range headers {
		batch.AddArticle(ctx, assembler.ArticleHeader{
			ArticleNum: h.ArticleNum,
			Subject:    h.Subject,
			From:       h.From,
			Date:       h.Date,
			MessageID:  h.MessageID,
			Bytes:      h.Bytes,
			GroupName:  groupName,
		}, client, s.maxArticleBytes)
	}

	for _, bin := range batch.Binaries() {
		if !release.Trigger(bin) {
			continue
		}

		if s.events != nil && s.events.Enabled() {
			if err := s.events.Publish(ctx, bin); err != nil {
				s.log.Error("scheduler: publish binary to event bus", "binary", bin.Name, "error", err)
			}
			continue
		}

		s.materialize(ctx, groupName, bin)
	}
}

// materialize upserts a completed Binary synchronously: the default
// path, and the one an eventbus consumer also calls per decoded Binary
// when EventBusConfig.Enabled routes completion through the bus
// instead.
func (s *Scheduler) materialize(ctx context.Context, groupName string, bin *assembler.Binary) {
	r, err := s.materializer.Materialize(ctx, bin)
	if err != nil {
		s.log.Error("scheduler: materialize release", "binary", bin.Name, "error", err)
		return
	}
	metrics.RecordReleaseMaterialized()
	if s.progress != nil {
		s.progress.BroadcastRelease(groupName, r.Name, r.GUID)
	}
	if err := s.materializer.EmitNZB(r.GUID, bin, time.Now()); err != nil {
		s.log.Error("scheduler: emit nzb", "release", r.Name, "error", err)
	}
}

// MaterializeBinary exposes the synchronous materialize path for an
// eventbus consumer built outside this package.
func (s *Scheduler) MaterializeBinary(ctx context.Context, groupName string, bin *assembler.Binary) {
	s.materialize(ctx, groupName, bin)
}

// ensureValidBackfillTarget recomputes g's backfill_target when it's
// invalid — zero, at/above current_article_id, or implying a backfill
// distance over invalidBackfillDistance articles — per §4.8's worked
// example: refresh the server range, then recompute
// max(server_first, current - target_articles) where target_articles is
// clamp(articles_per_day*backfill_days, 1000, 100000) and
// articles_per_day ≈ (server_last-server_first)/retention_days.
func (s *Scheduler) ensureValidBackfillTarget(ctx context.Context, g database.Group) error {
	invalid := g.BackfillTarget == 0 ||
		g.BackfillTarget >= g.CurrentArticleID ||
		g.CurrentArticleID-g.BackfillTarget > invalidBackfillDistance
	if !invalid {
		return nil
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Quit()

	_, first, last, err := client.SelectGroup(ctx, g.Name)
	if err != nil {
		return err
	}
	if err := s.db.SetServerRange(ctx, g.ID, first, last); err != nil {
		return err
	}

	cur, err := s.db.GroupByName(ctx, g.Name)
	if err != nil {
		return err
	}

	retentionDays := s.cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 1
	}
	backfillDays := s.cfg.BackfillDays
	if backfillDays <= 0 {
		backfillDays = 1
	}

	articlesPerDay := float64(last-first) / float64(retentionDays)
	targetArticles := clampFloat(articlesPerDay*float64(backfillDays), minBackfillTargetArticles, maxBackfillTargetArticles)

	newTarget := cur.CurrentArticleID - int64(targetArticles)
	if newTarget < first {
		newTarget = first
	}
	return s.db.SetBackfillTarget(ctx, g.ID, newTarget)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
