package voice

import (
	"sync"
	"testing"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
)

func TestPlaybackBufferCoalescesUntilIdle(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(1700000000, 0))
	var mu sync.Mutex
	var clips []string
	b := NewPlaybackBuffer(clk, func(data []byte) {
		mu.Lock()
		defer mu.Unlock()
		clips = append(clips, string(data))
	})

	b.Push([]byte("aa"))
	clk.Advance(100 * time.Millisecond)
	b.Push([]byte("bb"))
	clk.Advance(100 * time.Millisecond)
	b.Push([]byte("cc"))

	// The stream is still live; nothing flushes yet.
	clk.Advance(200 * time.Millisecond)
	mu.Lock()
	if len(clips) != 0 {
		t.Fatalf("clips before idle window = %d, want 0", len(clips))
	}
	mu.Unlock()

	clk.Advance(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(clips) != 1 {
		t.Fatalf("clips = %d, want 1", len(clips))
	}
	if clips[0] != "aabbcc" {
		t.Errorf("clip = %q, want aabbcc", clips[0])
	}
}

func TestPlaybackBufferSeparateBursts(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(1700000000, 0))
	var clips []string
	b := NewPlaybackBuffer(clk, func(data []byte) { clips = append(clips, string(data)) })

	b.Push([]byte("first"))
	clk.Advance(300 * time.Millisecond)
	b.Push([]byte("second"))
	clk.Advance(300 * time.Millisecond)

	if len(clips) != 2 {
		t.Fatalf("clips = %d, want 2", len(clips))
	}
	if clips[0] != "first" || clips[1] != "second" {
		t.Errorf("clips = %v", clips)
	}
}

func TestPlaybackBufferManualFlush(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(1700000000, 0))
	var clips []string
	b := NewPlaybackBuffer(clk, func(data []byte) { clips = append(clips, string(data)) })

	b.Push([]byte("xy"))
	b.Flush()
	if len(clips) != 1 || clips[0] != "xy" {
		t.Fatalf("clips after manual flush = %v", clips)
	}

	// The idle timer was cancelled; no double flush.
	clk.Advance(time.Second)
	if len(clips) != 1 {
		t.Fatalf("clips after idle = %d, want 1", len(clips))
	}

	// Flushing an empty buffer emits nothing.
	b.Flush()
	if len(clips) != 1 {
		t.Fatalf("clips after empty flush = %d, want 1", len(clips))
	}
}
