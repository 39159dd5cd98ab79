package stream

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/shared"
	"github.com/charmbracelet/log"
)

// DefaultExpiryHorizon is the assumed signed URL lifetime. It is a
// conservative platform constant, not a value the platform reports; treat it
// as configuration and verify empirically.
const DefaultExpiryHorizon = 5 * time.Hour

// Extractor resolves the media variants for a track. Implemented by
// [extractor.Client]; replaced by doubles in tests.
type Extractor interface {
	Extract(ctx context.Context, trackID string) (*extractor.TrackInfo, error)
}

// Stats describes engine state for operational visibility.
type Stats struct {
	CacheSize          int  `json:"cacheSize"`
	CacheValid         int  `json:"cacheValid"`
	PendingExtractions int  `json:"pendingExtractions"`
	QueueSize          int  `json:"queueSize"`
	WarmedUp           bool `json:"warmedUp"`
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Background  Extractor      // handle drained by the background queue
	Urgent      Extractor      // handle for the priority-1 bypass path
	Cache       *ArtifactCache // defaults to a cache of DefaultCacheCapacity
	Horizon     time.Duration  // artifact expiry horizon, defaults to DefaultExpiryHorizon
	WarmupTrack string         // optional track extracted once at startup
	Logger      *log.Logger
}

// Engine coordinates extraction across the cache, the background priority
// queue, and the urgent bypass path. Construct one per process and pass it to
// handlers; there is no ambient singleton.
type Engine struct {
	cache      *ArtifactCache
	background Extractor
	urgent     Extractor
	bgGate     chan struct{}
	urgentGate chan struct{}

	horizon     time.Duration
	warmupTrack string
	logger      *log.Logger

	mu           sync.Mutex
	cond         *sync.Cond
	queue        requestQueue
	pendingSlots map[string]*pending
	seq          uint64
	closed       bool

	warmed atomic.Bool
	wg     sync.WaitGroup
}

// NewEngine creates an engine around the two extraction handles.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Cache == nil {
		opts.Cache = NewArtifactCache(DefaultCacheCapacity)
	}
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultExpiryHorizon
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	e := &Engine{
		cache:        opts.Cache,
		background:   opts.Background,
		urgent:       opts.Urgent,
		bgGate:       make(chan struct{}, 1),
		urgentGate:   make(chan struct{}, 1),
		horizon:      opts.Horizon,
		warmupTrack:  opts.WarmupTrack,
		logger:       opts.Logger,
		pendingSlots: make(map[string]*pending),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start warms the background handle and launches the scheduler worker.
//
// Warm-up primes the extractor's signature cache so the first real request
// does not pay that cost; a warm-up failure is logged and non-fatal.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		e.warmup(ctx)
		e.worker()
	}()
}

// warmup runs the priming extraction under the background gate so queued
// requests wait for it rather than racing it for handle state.
func (e *Engine) warmup(ctx context.Context) {
	if e.warmupTrack == "" {
		return
	}

	start := time.Now()
	e.bgGate <- struct{}{}
	_, err := e.extract(ctx, e.background, e.warmupTrack)
	<-e.bgGate
	if err != nil {
		e.logger.Warn("warm-up extraction failed", "track", e.warmupTrack, "error", err)
		return
	}
	e.warmed.Store(true)
	e.logger.Info("extraction engine warmed", "elapsed", time.Since(start))
}

// Close stops the scheduler worker after the current extraction finishes.
// Queued requests that never ran are settled with [shared.ErrTimeout].
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for len(e.queue) > 0 {
		req := heap.Pop(&e.queue).(*request)
		delete(e.pendingSlots, req.trackID)
		req.slot.settle(nil, fmt.Errorf("%w: engine shutting down", shared.ErrTimeout))
	}
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()
}

// Resolve returns a usable artifact for trackID, extracting on cache miss.
//
// Priority 1 takes the urgent path: it bypasses the queue and contends only
// with other urgent callers. Lower priorities enter the background queue,
// joining any extraction already pending for the same track. The context
// bounds only this caller's wait; an extraction already started runs to
// completion and populates the cache.
func (e *Engine) Resolve(ctx context.Context, trackID string, priority int) (*Artifact, error) {
	if a, ok := e.cache.Get(trackID); ok {
		return a, nil
	}

	if priority <= PriorityUrgent {
		return e.urgentResolve(ctx, trackID)
	}

	slot, _ := e.enqueue(trackID, priority)
	select {
	case <-slot.done:
		return slot.artifact, slot.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: extraction for %s", shared.ErrTimeout, trackID)
	}
}

// Prefetch queues a speculative extraction and returns immediately.
//
// Returns true when a new request was queued, false when the track is
// already cached or already pending.
func (e *Engine) Prefetch(trackID string, priority int) bool {
	if _, ok := e.cache.Get(trackID); ok {
		return false
	}
	_, queued := e.enqueue(trackID, priority)
	return queued
}

// Cached returns the cached artifact for trackID without triggering extraction.
func (e *Engine) Cached(trackID string) (*Artifact, bool) {
	return e.cache.Get(trackID)
}

// Stats reports engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	pendingCount := len(e.pendingSlots)
	queueSize := len(e.queue)
	e.mu.Unlock()

	return Stats{
		CacheSize:          e.cache.Len(),
		CacheValid:         e.cache.ValidCount(),
		PendingExtractions: pendingCount,
		QueueSize:          queueSize,
		WarmedUp:           e.warmed.Load(),
	}
}

// enqueue creates or joins the pending slot for trackID. The second return
// is false when an extraction was already pending.
func (e *Engine) enqueue(trackID string, priority int) (*pending, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if slot, ok := e.pendingSlots[trackID]; ok {
		return slot, false
	}

	slot := newPending()
	e.pendingSlots[trackID] = slot
	e.seq++
	heap.Push(&e.queue, &request{
		trackID:    trackID,
		priority:   priority,
		enqueuedAt: time.Now(),
		seq:        e.seq,
		slot:       slot,
	})
	e.cond.Signal()
	return slot, true
}

// worker drains the background queue one request at a time.
func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		req := heap.Pop(&e.queue).(*request)
		e.mu.Unlock()

		// Another caller may have resolved this track while it sat queued.
		if a, ok := e.cache.Get(req.trackID); ok {
			e.finish(req.trackID, a, nil)
			continue
		}

		e.bgGate <- struct{}{}
		if a, ok := e.cache.Get(req.trackID); ok {
			<-e.bgGate
			e.finish(req.trackID, a, nil)
			continue
		}

		start := time.Now()
		a, err := e.extract(context.Background(), e.background, req.trackID)
		<-e.bgGate

		if err != nil {
			e.logger.Warn("background extraction failed", "track", req.trackID, "error", err)
		} else {
			e.logger.Info("background extraction complete", "track", req.trackID, "priority", req.priority, "elapsed", time.Since(start))
		}
		e.finish(req.trackID, a, err)
	}
}

// finish settles the pending slot for trackID and drops the dedup entry.
func (e *Engine) finish(trackID string, artifact *Artifact, err error) {
	e.mu.Lock()
	slot, ok := e.pendingSlots[trackID]
	if ok {
		delete(e.pendingSlots, trackID)
	}
	e.mu.Unlock()

	if ok {
		slot.settle(artifact, err)
	}
}

// urgentResolve serves a priority-1 request through the urgent handle.
func (e *Engine) urgentResolve(ctx context.Context, trackID string) (*Artifact, error) {
	select {
	case e.urgentGate <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: urgent extraction for %s", shared.ErrTimeout, trackID)
	}

	// Another urgent caller may have resolved this track while we waited on
	// the gate.
	if a, ok := e.cache.Get(trackID); ok {
		<-e.urgentGate
		return a, nil
	}

	type result struct {
		artifact *Artifact
		err      error
	}
	done := make(chan result, 1)

	// Extraction keeps its own timeout and runs to completion even if this
	// caller gives up, so the cache still gets populated.
	go func() {
		defer func() { <-e.urgentGate }()
		a, err := e.extract(context.Background(), e.urgent, trackID)
		done <- result{a, err}
	}()

	select {
	case r := <-done:
		return r.artifact, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: urgent extraction for %s", shared.ErrTimeout, trackID)
	}
}

// extract runs one extraction on the given handle and caches the artifact.
// The caller must hold the handle's gate.
func (e *Engine) extract(ctx context.Context, handle Extractor, trackID string) (*Artifact, error) {
	info, err := handle.Extract(ctx, trackID)
	if err != nil {
		return nil, err
	}

	f := extractor.SelectProgressiveAudio(info)
	if f == nil {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNoFormatAvailable, trackID)
	}

	a := &Artifact{
		TrackID:         trackID,
		URL:             f.URL,
		ContentType:     extractor.MIMEType(f),
		ExpiresAt:       time.Now().Add(e.horizon),
		Title:           info.Title,
		Artist:          info.Artist(),
		ThumbnailURL:    info.Thumbnail,
		DurationSeconds: int(info.Duration),
	}
	e.cache.Put(trackID, a)
	return a, nil
}
