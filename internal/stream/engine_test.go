package stream

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/J-Derek/onyxandroid/internal/extractor"
	"github.com/J-Derek/onyxandroid/internal/shared"
	mocks "github.com/J-Derek/onyxandroid/internal/testing"
)

func TestRequestQueueOrdering(t *testing.T) {
	q := requestQueue{}
	base := time.Now()

	push := func(trackID string, priority int, offset time.Duration, seq uint64) {
		heap.Push(&q, &request{
			trackID:    trackID,
			priority:   priority,
			enqueuedAt: base.Add(offset),
			seq:        seq,
			slot:       newPending(),
		})
	}

	push("visible-late", PriorityVisible, 3*time.Second, 4)
	push("next", PriorityNext, 2*time.Second, 3)
	push("visible-early", PriorityVisible, time.Second, 2)
	push("urgent", PriorityUrgent, 4*time.Second, 5)
	push("tied", PriorityVisible, time.Second, 1)

	want := []string{"urgent", "next", "tied", "visible-early", "visible-late"}
	for i, expected := range want {
		req := heap.Pop(&q).(*request)
		if req.trackID != expected {
			t.Errorf("pop %d = %q, want %q", i, req.trackID, expected)
		}
	}
}

func TestPendingSettleOnce(t *testing.T) {
	p := newPending()
	first := testArtifact("x", time.Now().Add(time.Hour))

	p.settle(first, nil)
	p.settle(nil, errors.New("late loser"))

	<-p.done
	if p.artifact != first || p.err != nil {
		t.Errorf("settle should be first-wins: artifact=%v err=%v", p.artifact, p.err)
	}
}

func TestResolveUrgentPopulatesCache(t *testing.T) {
	mock := &mocks.MockExtractor{Info: mocks.ProgressiveInfo("abc", "A Song")}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	a, err := e.Resolve(context.Background(), "abc", PriorityUrgent)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.ContentType != "audio/mp4" || a.Title != "A Song" {
		t.Errorf("Resolve() artifact = %+v", a)
	}
	if !a.Valid() {
		t.Error("fresh artifact should be valid")
	}

	if _, ok := e.Cached("abc"); !ok {
		t.Error("resolved artifact should be cached")
	}

	// Second resolve must come from cache without another extraction.
	if _, err := e.Resolve(context.Background(), "abc", PriorityUrgent); err != nil {
		t.Fatalf("cached Resolve() error = %v", err)
	}
	if got := mock.Calls.Load(); got != 1 {
		t.Errorf("extraction calls = %d, want 1", got)
	}
}

func TestResolveNoProgressiveFormat(t *testing.T) {
	mock := &mocks.MockExtractor{Info: &extractor.TrackInfo{
		ID: "abc",
		Formats: []extractor.Format{
			{FormatID: "140", Protocol: "m3u8_native", ACodec: "mp4a.40.2", URL: "https://x/manifest"},
		},
	}}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	_, err := e.Resolve(context.Background(), "abc", PriorityUrgent)
	if !errors.Is(err, shared.ErrNoFormatAvailable) {
		t.Fatalf("Resolve() error = %v, want ErrNoFormatAvailable", err)
	}
	if _, ok := e.Cached("abc"); ok {
		t.Error("failed extraction must not populate the cache")
	}
}

func TestConcurrentBackgroundResolvesDeduplicate(t *testing.T) {
	release := make(chan struct{})
	mock := &mocks.MockExtractor{
		ExtractFunc: func(ctx context.Context, trackID string) (*extractor.TrackInfo, error) {
			<-release
			return mocks.ProgressiveInfo(trackID, "Shared"), nil
		},
	}

	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})
	e.Start(context.Background())
	defer e.Close()

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Resolve(context.Background(), "shared-track", PriorityNext)
			results <- err
		}()
	}

	// Give callers time to pile onto the pending slot, then let the single
	// extraction finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Errorf("Resolve() error = %v", err)
		}
	}
	if got := mock.Calls.Load(); got != 1 {
		t.Errorf("extraction calls = %d, want 1 for %d concurrent callers", got, callers)
	}
}

func TestPrefetchDeduplicates(t *testing.T) {
	release := make(chan struct{})
	mock := &mocks.MockExtractor{
		ExtractFunc: func(ctx context.Context, trackID string) (*extractor.TrackInfo, error) {
			<-release
			return mocks.ProgressiveInfo(trackID, "Prefetched"), nil
		},
	}

	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})
	e.Start(context.Background())
	defer e.Close()

	if !e.Prefetch("abc", PriorityVisible) {
		t.Error("first Prefetch() should queue")
	}
	if e.Prefetch("abc", PriorityVisible) {
		t.Error("Prefetch() while pending should report false")
	}

	close(release)

	// Wait for the background extraction to land in the cache.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := e.Cached("abc"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("prefetched track never reached the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if e.Prefetch("abc", PriorityVisible) {
		t.Error("Prefetch() of a cached track should report false")
	}
	if got := mock.Calls.Load(); got != 1 {
		t.Errorf("extraction calls = %d, want 1", got)
	}
}

func TestResolveBackgroundTimeout(t *testing.T) {
	// No worker is started, so the queued request can never settle and the
	// caller's context decides.
	mock := &mocks.MockExtractor{Info: mocks.ProgressiveInfo("abc", "Never")}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Resolve(ctx, "abc", PriorityNext)
	if !errors.Is(err, shared.ErrTimeout) {
		t.Fatalf("Resolve() error = %v, want ErrTimeout", err)
	}
}

func TestUrgentExtractionSurvivesCallerTimeout(t *testing.T) {
	mock := &mocks.MockExtractor{
		ExtractFunc: func(ctx context.Context, trackID string) (*extractor.TrackInfo, error) {
			time.Sleep(60 * time.Millisecond)
			return mocks.ProgressiveInfo(trackID, "Slow"), nil
		},
	}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.Resolve(ctx, "abc", PriorityUrgent)
	if !errors.Is(err, shared.ErrTimeout) {
		t.Fatalf("Resolve() error = %v, want ErrTimeout", err)
	}

	// The abandoned extraction still runs to completion and caches.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := e.Cached("abc"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned urgent extraction never populated the cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCloseSettlesQueuedRequests(t *testing.T) {
	mock := &mocks.MockExtractor{Info: mocks.ProgressiveInfo("abc", "Never")}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	errs := make(chan error, 1)
	go func() {
		_, err := e.Resolve(context.Background(), "abc", PriorityNext)
		errs <- err
	}()

	// Let the resolver enqueue before shutting down.
	deadline := time.Now().Add(time.Second)
	for e.Stats().QueueSize == 0 {
		if time.Now().After(deadline) {
			t.Fatal("request never queued")
		}
		time.Sleep(time.Millisecond)
	}

	e.Close()

	select {
	case err := <-errs:
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("queued Resolve() after Close = %v, want ErrTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued resolver never settled after Close")
	}
}

func TestStartWarmsEngine(t *testing.T) {
	mock := &mocks.MockExtractor{Info: mocks.ProgressiveInfo("warm", "Warmup")}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock, WarmupTrack: "warm"})
	e.Start(context.Background())
	defer e.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !e.Stats().WarmedUp {
		if time.Now().After(deadline) {
			t.Fatal("engine never reported warmed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := e.Cached("warm"); !ok {
		t.Error("warm-up extraction should populate the cache")
	}
}

func TestStats(t *testing.T) {
	mock := &mocks.MockExtractor{Info: mocks.ProgressiveInfo("abc", "Stats")}
	e := NewEngine(EngineOpts{Urgent: mock, Background: mock})

	if _, err := e.Resolve(context.Background(), "abc", PriorityUrgent); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	e.Prefetch("queued-track", PriorityVisible)

	stats := e.Stats()
	if stats.CacheSize != 1 || stats.CacheValid != 1 {
		t.Errorf("cache stats = %d/%d, want 1/1", stats.CacheSize, stats.CacheValid)
	}
	if stats.PendingExtractions != 1 || stats.QueueSize != 1 {
		t.Errorf("pending/queue = %d/%d, want 1/1", stats.PendingExtractions, stats.QueueSize)
	}
	if stats.WarmedUp {
		t.Error("engine without warm-up should not report warmed")
	}
}
