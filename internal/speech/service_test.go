package speech

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bmo-gateway/internal/cache"
)

type mockSynthesizer struct {
	calls atomic.Int32
	audio []byte
	err   error
}

func (m *mockSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.audio, nil
}

func newTestService(t *testing.T, synth Synthesizer) *Service {
	t.Helper()
	store := cache.New[[]byte](cache.Config{Capacity: DefaultCapacity})
	t.Cleanup(func() { store.Close() })
	return NewService(store, synth, time.Minute, nil)
}

func TestSynthesizeCachesAudio(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00}
	m := &mockSynthesizer{audio: audio}
	svc := newTestService(t, m)
	ctx := context.Background()

	first, status, err := svc.Synthesize(ctx, "Hello friend!")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if status != cache.StatusMiss {
		t.Fatalf("first status = %s, want MISS", status)
	}
	if !bytes.Equal(first, audio) {
		t.Fatalf("audio not byte-identical on miss")
	}

	second, status, err := svc.Synthesize(ctx, "Hello friend!")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if status != cache.StatusHit {
		t.Fatalf("second status = %s, want HIT", status)
	}
	if !bytes.Equal(second, audio) {
		t.Fatalf("audio not byte-identical on hit")
	}
	if m.calls.Load() != 1 {
		t.Fatalf("upstream invoked %d times, want 1", m.calls.Load())
	}
}

func TestSynthesizeNormalizedVariantsShareEntry(t *testing.T) {
	m := &mockSynthesizer{audio: []byte("mp3")}
	svc := newTestService(t, m)
	ctx := context.Background()

	if _, _, err := svc.Synthesize(ctx, "Hello!"); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, status, err := svc.Synthesize(ctx, "hello")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if status != cache.StatusHit {
		t.Fatalf("punctuation variant missed the cache, status = %s", status)
	}
	if m.calls.Load() != 1 {
		t.Fatalf("upstream invoked %d times, want 1", m.calls.Load())
	}
}

// blockingSynthesizer parks inside the upstream call until released, so
// a second request can join the in-flight one.
type blockingSynthesizer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	audio   []byte
}

func (m *blockingSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	if m.calls.Add(1) == 1 {
		close(m.started)
	}
	<-m.release
	return m.audio, nil
}

func TestSynthesizeConcurrentRequestsShareOneCall(t *testing.T) {
	m := &blockingSynthesizer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		audio:   []byte{0xFF, 0xFB, 0x01},
	}
	svc := newTestService(t, m)
	ctx := context.Background()

	type result struct {
		audio  []byte
		status cache.Status
		err    error
	}
	results := make(chan result, 2)
	call := func() {
		audio, status, err := svc.Synthesize(ctx, "Hello friend!")
		results <- result{audio, status, err}
	}

	go call()
	<-m.started

	// The first caller is parked upstream; the second joins its flight.
	go call()
	time.Sleep(50 * time.Millisecond)

	if got := svc.InFlight(); got != 1 {
		t.Fatalf("InFlight = %d with a parked upstream call, want 1", got)
	}
	close(m.release)

	miss, dedup := 0, 0
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("caller %d errored: %v", i, r.err)
		}
		if !bytes.Equal(r.audio, m.audio) {
			t.Fatalf("caller %d got different audio: %v", i, r.audio)
		}
		switch r.status {
		case cache.StatusMiss:
			miss++
		case cache.StatusDedup:
			dedup++
		default:
			t.Fatalf("caller %d got status %s", i, r.status)
		}
	}
	if miss != 1 || dedup != 1 {
		t.Fatalf("statuses = %d MISS / %d DEDUP, want exactly one of each", miss, dedup)
	}
	if m.calls.Load() != 1 {
		t.Fatalf("upstream invoked %d times, want 1", m.calls.Load())
	}
}

func TestSynthesizeErrorPropagatesAndRetries(t *testing.T) {
	m := &mockSynthesizer{err: errors.New("tts down")}
	svc := newTestService(t, m)
	ctx := context.Background()

	if _, _, err := svc.Synthesize(ctx, "hi"); err == nil {
		t.Fatalf("expected upstream error")
	}

	m.err = nil
	m.audio = []byte("ok")
	audio, status, err := svc.Synthesize(ctx, "hi")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if status != cache.StatusMiss {
		t.Fatalf("retry status = %s, want MISS", status)
	}
	if !bytes.Equal(audio, []byte("ok")) {
		t.Fatalf("unexpected retry audio: %q", audio)
	}
}

func TestPreloadPrimesCacheInBackground(t *testing.T) {
	m := &mockSynthesizer{audio: []byte("mp3")}
	svc := newTestService(t, m)

	phrases := []string{"Hello! BMO is so happy to see you!", "BMO is thinking..."}
	queued := svc.Preload(phrases)
	if queued != 2 {
		t.Fatalf("queued = %d, want 2", queued)
	}

	// Preload is fire-and-forget; poll until the background goroutines
	// have landed both entries.
	deadline := time.After(2 * time.Second)
	for svc.Size() < 2 {
		select {
		case <-deadline:
			t.Fatalf("preload did not populate the cache, size = %d", svc.Size())
		case <-time.After(10 * time.Millisecond):
		}
	}

	_, status, err := svc.Synthesize(context.Background(), "BMO is thinking...")
	if err != nil {
		t.Fatalf("Synthesize after preload: %v", err)
	}
	if status != cache.StatusHit {
		t.Fatalf("expected preloaded phrase to hit, got %s", status)
	}
}

func TestPreloadSkipsAlreadyCachedPhrases(t *testing.T) {
	m := &mockSynthesizer{audio: []byte("mp3")}
	svc := newTestService(t, m)

	if _, _, err := svc.Synthesize(context.Background(), "Hello!"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if queued := svc.Preload([]string{"hello"}); queued != 0 {
		t.Fatalf("queued = %d, want 0 for already-cached phrase", queued)
	}
}
