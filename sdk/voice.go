package chatkit

import (
	"context"

	"github.com/leadergroupsaudi/chatkit-go/pkg/channel"
	"github.com/leadergroupsaudi/chatkit-go/pkg/core"
	"github.com/leadergroupsaudi/chatkit-go/pkg/protocol"
	"github.com/leadergroupsaudi/chatkit-go/pkg/voice"
)

// voiceSession bundles the voice channel with the microphone pipeline and
// the inbound playback buffer.
type voiceSession struct {
	ch       *channel.Channel
	pipeline *voice.Pipeline
	playback *voice.PlaybackBuffer
}

// StartVoice opens the voice channel and begins streaming: outbound speech
// segments upload as WAV blobs, inbound audio coalesces into clips delivered
// via OnAudioClip. The microphone stays live until StopVoice or Close.
func (s *WidgetSession) StartVoice(ctx context.Context, source voice.CaptureSource, recorder voice.Recorder) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.NewInvalidRequestError("session is closed")
	}
	if s.voice != nil || s.voiceStarting {
		s.mu.Unlock()
		return core.NewInvalidRequestError("voice is already active")
	}
	// Reserve the voice slot before releasing the lock; the dial below
	// blocks and a second StartVoice must not pass the guard meanwhile.
	s.voiceStarting = true
	s.mu.Unlock()

	c := s.client
	vs := &voiceSession{}

	vs.playback = voice.NewPlaybackBuffer(c.clk, func(clip []byte) {
		pipeline := vs.pipeline
		pipeline.PlaybackStarted()
		if s.req.OnAudioClip == nil {
			pipeline.PlaybackEnded()
			return
		}
		s.req.OnAudioClip(clip, pipeline.PlaybackEnded)
	})

	vs.ch = channel.New(channel.Config{
		URL: protocol.VoiceURL(c.wsBaseURL, s.req.CompanyID, s.req.AgentID,
			s.sessionID, s.settings.VoiceID, s.settings.STTProvider),
		Dialer:   c.dialer,
		Clock:    c.clk,
		Logger:   c.logger,
		OnBinary: vs.playback.Push,
	})

	pipeline, err := voice.NewPipeline(voice.PipelineConfig{
		Source:   source,
		Recorder: recorder,
		Clock:    c.clk,
		Logger:   c.logger,
		OnSegment: func(segment []byte) {
			encoded, err := voice.EncodeWAV(segment, voice.DefaultSampleRate)
			if err != nil {
				c.logger.Error("encoding speech segment failed", "error", err)
				return
			}
			if err := vs.ch.SendBinary(encoded); err != nil {
				c.logger.Warn("uploading speech segment failed", "error", err)
			}
		},
	})
	if err != nil {
		s.clearVoiceStarting()
		return err
	}
	vs.pipeline = pipeline

	if err := vs.ch.Open(ctx); err != nil {
		_ = pipeline.Close()
		s.clearVoiceStarting()
		return err
	}
	if err := pipeline.Start(); err != nil {
		vs.ch.Close()
		_ = pipeline.Close()
		s.clearVoiceStarting()
		return err
	}

	s.mu.Lock()
	s.voiceStarting = false
	if s.closed {
		s.mu.Unlock()
		vs.close()
		return core.NewInvalidRequestError("session is closed")
	}
	s.voice = vs
	s.mu.Unlock()
	return nil
}

func (s *WidgetSession) clearVoiceStarting() {
	s.mu.Lock()
	s.voiceStarting = false
	s.mu.Unlock()
}

// MuteMic disables the microphone without closing the voice channel. An
// in-progress utterance flushes first.
func (s *WidgetSession) MuteMic() {
	s.mu.Lock()
	vs := s.voice
	s.mu.Unlock()
	if vs != nil {
		vs.pipeline.Stop()
	}
}

// UnmuteMic re-enables the microphone.
func (s *WidgetSession) UnmuteMic() error {
	s.mu.Lock()
	vs := s.voice
	s.mu.Unlock()
	if vs == nil {
		return core.NewInvalidRequestError("voice is not active")
	}
	return vs.pipeline.Start()
}

// StopVoice tears the voice leg down: the microphone releases and the voice
// channel closes. The chat channel is unaffected.
func (s *WidgetSession) StopVoice() {
	s.mu.Lock()
	vs := s.voice
	s.voice = nil
	s.mu.Unlock()
	if vs != nil {
		vs.close()
	}
}

func (vs *voiceSession) close() {
	_ = vs.pipeline.Close()
	vs.playback.Flush()
	vs.ch.Close()
}
