// Package metrics exposes Prometheus collectors for the realtime client core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_channel_reconnect_attempts_total",
		Help: "Reconnect attempts scheduled after unexpected socket closes",
	})

	ReconnectExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_channel_reconnect_exhausted_total",
		Help: "Channels that gave up after the reconnect budget ran out",
	})

	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_channel_heartbeats_sent_total",
		Help: "Ping control frames sent by the heartbeat timer",
	})

	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_frames_received_total",
		Help: "Inbound frames by decoded kind",
	}, []string{"kind"})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_frames_dropped_total",
		Help: "Inbound frames dropped because they failed to decode",
	})

	SendsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_sends_dropped_total",
		Help: "Outbound sends rejected because the channel was not open",
	})

	SpeechSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_speech_segments_total",
		Help: "Utterance segments flushed by the voice activity pipeline",
	})

	PlaybackClips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_playback_clips_total",
		Help: "Coalesced remote audio clips handed to playback",
	})

	DraftSaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "draft_saves_total",
		Help: "Debounced draft writes that reached storage",
	})
)
