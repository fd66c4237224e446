package voice

import (
	"sync"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
)

const defaultCoalesceWindow = 300 * time.Millisecond

// PlaybackBuffer coalesces the server's inbound audio chunks into clips. The
// server streams synthesized speech as many small binary frames; playing
// them individually stutters, so chunks accumulate until the stream goes
// idle for the coalesce window, then flush as one clip.
type PlaybackBuffer struct {
	clk    clock.Clock
	window time.Duration
	onClip func(data []byte)

	mu     sync.Mutex
	chunks [][]byte
	size   int
	idle   clock.Timer
}

// NewPlaybackBuffer builds a buffer flushing to onClip after the default
// 300ms idle window.
func NewPlaybackBuffer(clk clock.Clock, onClip func(data []byte)) *PlaybackBuffer {
	if clk == nil {
		clk = clock.System()
	}
	return &PlaybackBuffer{clk: clk, window: defaultCoalesceWindow, onClip: onClip}
}

// Push appends one inbound chunk and restarts the idle timer.
func (b *PlaybackBuffer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, owned)
	b.size += len(owned)
	if b.idle != nil {
		b.idle.Stop()
	}
	b.idle = b.clk.AfterFunc(b.window, b.flushIdle)
}

// Flush emits whatever is buffered immediately and cancels the idle timer.
func (b *PlaybackBuffer) Flush() {
	b.mu.Lock()
	if b.idle != nil {
		b.idle.Stop()
		b.idle = nil
	}
	clip := b.takeLocked()
	b.mu.Unlock()

	b.emit(clip)
}

func (b *PlaybackBuffer) flushIdle() {
	b.mu.Lock()
	b.idle = nil
	clip := b.takeLocked()
	b.mu.Unlock()

	b.emit(clip)
}

func (b *PlaybackBuffer) takeLocked() []byte {
	if b.size == 0 {
		return nil
	}
	clip := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		clip = append(clip, c...)
	}
	b.chunks = nil
	b.size = 0
	return clip
}

func (b *PlaybackBuffer) emit(clip []byte) {
	if clip == nil {
		return
	}
	metrics.PlaybackClips.Inc()
	if b.onClip != nil {
		b.onClip(clip)
	}
}
