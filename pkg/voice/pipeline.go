package voice

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
)

const defaultTickInterval = 100 * time.Millisecond

// CaptureSource exposes microphone energy levels. Pause and Resume gate
// sampling during playback; Close releases the device.
type CaptureSource interface {
	Levels() ([]byte, error)
	Pause()
	Resume()
	Close() error
}

// Recorder buffers raw audio between Start and Stop. Stop returns the
// captured bytes and leaves the recorder ready for the next Start.
type Recorder interface {
	Start() error
	Pause()
	Resume()
	Stop() ([]byte, error)
}

// PipelineConfig wires a capture pipeline.
type PipelineConfig struct {
	Source       CaptureSource
	Recorder     Recorder
	Clock        clock.Clock
	Logger       *slog.Logger
	Detector     *Detector
	TickInterval time.Duration

	// OnSegment receives each flushed speech segment, exactly once per
	// episode.
	OnSegment func(data []byte)
}

// Pipeline samples the capture source on a fixed tick, runs the detector and
// flushes one audio segment per speech episode. Playback gating and the mic
// toggle both pause sampling; only Close releases the source.
type Pipeline struct {
	cfg PipelineConfig

	mu         sync.Mutex
	micEnabled bool
	inPlayback bool
	closed     bool
	episode    bool
	tick       clock.Timer
}

// NewPipeline builds a stopped pipeline. Source and Recorder are required.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Source == nil || cfg.Recorder == nil {
		return nil, core.NewInvalidRequestError("voice pipeline needs a source and a recorder")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Detector == nil {
		cfg.Detector = NewDetector()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	return &Pipeline{cfg: cfg}, nil
}

// Start enables the microphone and begins sampling. No-op while playback is
// in progress beyond marking the mic enabled; sampling resumes when playback
// ends.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return core.NewInvalidRequestError("voice pipeline is closed")
	}
	if p.micEnabled {
		return nil
	}
	p.micEnabled = true
	if !p.inPlayback {
		p.scheduleTickLocked()
	}
	return nil
}

// Stop disables the microphone. An in-progress speech episode flushes its
// segment; nothing re-arms until Start is called again. The capture device
// stays held.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.micEnabled || p.closed {
		p.mu.Unlock()
		return
	}
	p.micEnabled = false
	p.stopTickLocked()
	flush := p.endEpisodeLocked()
	p.cfg.Detector.Reset()
	p.mu.Unlock()

	p.emit(flush)
}

// PlaybackStarted gates the pipeline while remote audio plays: the tick
// stops and the source and recorder pause so the mic does not hear the
// speaker.
func (p *Pipeline) PlaybackStarted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.inPlayback {
		return
	}
	p.inPlayback = true
	p.stopTickLocked()
	p.cfg.Source.Pause()
	if p.episode {
		p.cfg.Recorder.Pause()
	}
}

// PlaybackEnded lifts the gate. The source always resumes; the tick and
// recorder come back only if the mic is still enabled, so a mic re-enable
// after playback never samples a paused device.
func (p *Pipeline) PlaybackEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.inPlayback {
		return
	}
	p.inPlayback = false
	p.cfg.Source.Resume()
	if !p.micEnabled {
		return
	}
	if p.episode {
		p.cfg.Recorder.Resume()
	}
	p.scheduleTickLocked()
}

// Close tears the pipeline down and releases the capture device. Safe to
// call twice; the in-progress episode, if any, is discarded.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.micEnabled = false
	p.stopTickLocked()
	if p.episode {
		p.episode = false
		if _, err := p.cfg.Recorder.Stop(); err != nil {
			p.cfg.Logger.Warn("discarding recording on close failed", "error", err)
		}
	}
	p.mu.Unlock()

	return p.cfg.Source.Close()
}

func (p *Pipeline) scheduleTickLocked() {
	if p.tick != nil {
		return
	}
	p.tick = p.cfg.Clock.AfterFunc(p.cfg.TickInterval, p.onTick)
}

func (p *Pipeline) stopTickLocked() {
	if p.tick != nil {
		p.tick.Stop()
		p.tick = nil
	}
}

func (p *Pipeline) onTick() {
	p.mu.Lock()
	if p.closed || !p.micEnabled || p.inPlayback {
		p.mu.Unlock()
		return
	}
	p.tick = nil
	p.scheduleTickLocked()

	bins, err := p.cfg.Source.Levels()
	if err != nil {
		p.cfg.Logger.Warn("sampling capture source failed", "error", err)
		p.mu.Unlock()
		return
	}
	level := AverageLevel(bins)

	var flush []byte
	switch p.cfg.Detector.Observe(level, p.cfg.Clock.Now()) {
	case EventSpeechStart:
		p.episode = true
		if err := p.cfg.Recorder.Start(); err != nil {
			p.cfg.Logger.Error("starting recorder failed", "error", err)
			p.episode = false
			p.cfg.Detector.Reset()
		}
	case EventSpeechEnd:
		flush = p.endEpisodeLocked()
	}
	p.mu.Unlock()

	p.emit(flush)
}

// endEpisodeLocked stops the recorder if an episode is active and returns
// the segment to emit, or nil.
func (p *Pipeline) endEpisodeLocked() []byte {
	if !p.episode {
		return nil
	}
	p.episode = false
	data, err := p.cfg.Recorder.Stop()
	if err != nil {
		p.cfg.Logger.Error("stopping recorder failed", "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func (p *Pipeline) emit(segment []byte) {
	if segment == nil {
		return
	}
	metrics.SpeechSegments.Inc()
	if p.cfg.OnSegment != nil {
		p.cfg.OnSegment(segment)
	}
}
