package voice

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
)

type fakeSource struct {
	mu      sync.Mutex
	level   byte
	samples int
	paused  int
	resumed int
	closed  int
}

func (s *fakeSource) setLevel(v byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = v
}

func (s *fakeSource) Levels() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	return []byte{s.level, s.level, s.level, s.level}, nil
}

func (s *fakeSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused++
}

func (s *fakeSource) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed++
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSource) sampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

type fakeRecorder struct {
	mu      sync.Mutex
	starts  int
	stops   int
	paused  int
	resumed int
}

func (r *fakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return nil
}

func (r *fakeRecorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused++
}

func (r *fakeRecorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed++
}

func (r *fakeRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return []byte(fmt.Sprintf("segment-%d", r.stops)), nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakeSource, *fakeRecorder, *clock.Fake, *[]string) {
	t.Helper()
	source := &fakeSource{}
	recorder := &fakeRecorder{}
	clk := clock.NewFake(time.Unix(1700000000, 0))

	var mu sync.Mutex
	segments := &[]string{}
	p, err := NewPipeline(PipelineConfig{
		Source:   source,
		Recorder: recorder,
		Clock:    clk,
		Logger:   slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		OnSegment: func(data []byte) {
			mu.Lock()
			defer mu.Unlock()
			*segments = append(*segments, string(data))
		},
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, source, recorder, clk, segments
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func advanceTicks(clk *clock.Fake, n int) {
	for i := 0; i < n; i++ {
		clk.Advance(100 * time.Millisecond)
	}
}

func TestPipelineFlushesOneSegmentPerEpisode(t *testing.T) {
	t.Parallel()

	p, source, recorder, clk, segments := newTestPipeline(t)
	defer p.Close()
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	source.setLevel(100)
	advanceTicks(clk, 3)
	if recorder.starts != 1 {
		t.Fatalf("recorder starts = %d, want 1", recorder.starts)
	}

	source.setLevel(5)
	advanceTicks(clk, 20)
	if got := len(*segments); got != 1 {
		t.Fatalf("segments flushed = %d, want 1", got)
	}
	if (*segments)[0] != "segment-1" {
		t.Errorf("segment = %q", (*segments)[0])
	}

	// Further silence never re-flushes.
	advanceTicks(clk, 20)
	if got := len(*segments); got != 1 {
		t.Fatalf("segments after more silence = %d, want 1", got)
	}

	// A new episode re-arms and flushes again.
	source.setLevel(100)
	advanceTicks(clk, 2)
	source.setLevel(5)
	advanceTicks(clk, 20)
	if got := len(*segments); got != 2 {
		t.Fatalf("segments after second episode = %d, want 2", got)
	}
	if recorder.starts != 2 || recorder.stops != 2 {
		t.Errorf("recorder starts/stops = %d/%d, want 2/2", recorder.starts, recorder.stops)
	}
}

func TestPipelineStopFlushesInProgressEpisode(t *testing.T) {
	t.Parallel()

	p, source, recorder, clk, segments := newTestPipeline(t)
	defer p.Close()
	p.Start()

	source.setLevel(100)
	advanceTicks(clk, 3)

	p.Stop()
	if got := len(*segments); got != 1 {
		t.Fatalf("segments after mid-episode stop = %d, want 1", got)
	}
	if recorder.stops != 1 {
		t.Errorf("recorder stops = %d, want 1", recorder.stops)
	}

	// Stopped pipeline stops sampling.
	before := source.sampleCount()
	advanceTicks(clk, 10)
	if got := source.sampleCount(); got != before {
		t.Errorf("samples after stop = %d, want %d", got, before)
	}
}

func TestPipelineStopWhileSilentFlushesNothing(t *testing.T) {
	t.Parallel()

	p, source, _, clk, segments := newTestPipeline(t)
	defer p.Close()
	p.Start()

	source.setLevel(5)
	advanceTicks(clk, 5)
	p.Stop()
	if got := len(*segments); got != 0 {
		t.Fatalf("segments after silent stop = %d, want 0", got)
	}
}

func TestPipelinePlaybackGating(t *testing.T) {
	t.Parallel()

	p, source, recorder, clk, _ := newTestPipeline(t)
	defer p.Close()
	p.Start()

	source.setLevel(100)
	advanceTicks(clk, 2)

	p.PlaybackStarted()
	if source.paused != 1 {
		t.Errorf("source pauses = %d, want 1", source.paused)
	}
	if recorder.paused != 1 {
		t.Errorf("recorder pauses = %d, want 1", recorder.paused)
	}
	before := source.sampleCount()
	advanceTicks(clk, 10)
	if got := source.sampleCount(); got != before {
		t.Fatalf("sampling continued during playback: %d -> %d", before, got)
	}

	p.PlaybackEnded()
	if source.resumed != 1 || recorder.resumed != 1 {
		t.Errorf("resumes source/recorder = %d/%d, want 1/1", source.resumed, recorder.resumed)
	}
	advanceTicks(clk, 2)
	if got := source.sampleCount(); got <= before {
		t.Error("sampling never resumed after playback")
	}
}

func TestPipelinePlaybackEndDoesNotResumeDisabledMic(t *testing.T) {
	t.Parallel()

	p, source, _, clk, _ := newTestPipeline(t)
	defer p.Close()
	p.Start()
	advanceTicks(clk, 1)

	p.PlaybackStarted()
	p.Stop()
	p.PlaybackEnded()

	// The device unpauses so a later Start works, but no tick runs while
	// the mic is disabled.
	if source.paused != 1 || source.resumed != 1 {
		t.Errorf("source pauses/resumes = %d/%d, want 1/1", source.paused, source.resumed)
	}
	before := source.sampleCount()
	advanceTicks(clk, 10)
	if got := source.sampleCount(); got != before {
		t.Errorf("sampling resumed with mic disabled: %d -> %d", before, got)
	}
}

func TestPipelineMicReenableAfterMutedPlaybackSamples(t *testing.T) {
	t.Parallel()

	p, source, _, clk, _ := newTestPipeline(t)
	defer p.Close()
	p.Start()
	advanceTicks(clk, 1)

	p.Stop()
	p.PlaybackStarted()
	p.PlaybackEnded()
	if source.paused != source.resumed {
		t.Fatalf("source pauses/resumes = %d/%d, want balanced", source.paused, source.resumed)
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	before := source.sampleCount()
	advanceTicks(clk, 2)
	if got := source.sampleCount(); got <= before {
		t.Error("re-enabled mic never sampled after muted playback")
	}
}

func TestPipelineCloseReleasesSourceOnce(t *testing.T) {
	t.Parallel()

	p, source, recorder, clk, segments := newTestPipeline(t)
	p.Start()
	source.setLevel(100)
	advanceTicks(clk, 2)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if source.closed != 1 {
		t.Errorf("source closes = %d, want 1", source.closed)
	}
	// Close discards the in-progress episode instead of emitting it.
	if got := len(*segments); got != 0 {
		t.Errorf("segments emitted on close = %d, want 0", got)
	}
	if recorder.stops != 1 {
		t.Errorf("recorder stops = %d, want 1 (discard)", recorder.stops)
	}
	if err := p.Start(); err == nil {
		t.Error("Start after Close succeeded, want error")
	}
}
