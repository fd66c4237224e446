// Package voice implements the microphone capture pipeline: energy based
// voice activity detection, speech segment flushing, playback gating and
// inbound audio coalescing.
package voice

import "time"

const (
	// DefaultThreshold is the average frequency-bin magnitude (0..255)
	// above which a tick counts as speech.
	DefaultThreshold = 30.0
	// DefaultSilenceWindow is how long the level must stay below the
	// threshold before a speech episode ends.
	DefaultSilenceWindow = 1500 * time.Millisecond
)

// Event is the detector's verdict for one observation.
type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeechEnd
)

// Detector is the speaking/silent state machine. Transitions to speaking are
// immediate; transitions back to silent require the level to hold below the
// threshold for the full silence window. Detector is not safe for concurrent
// use; the pipeline serializes observations.
type Detector struct {
	Threshold     float64
	SilenceWindow time.Duration

	speaking    bool
	silentSince time.Time
	haveSilent  bool
}

// NewDetector returns a detector with the default threshold and window.
func NewDetector() *Detector {
	return &Detector{Threshold: DefaultThreshold, SilenceWindow: DefaultSilenceWindow}
}

// Observe feeds one sampled level at the given instant and returns the
// transition it caused, if any.
func (d *Detector) Observe(level float64, now time.Time) Event {
	if level >= d.Threshold {
		d.haveSilent = false
		if !d.speaking {
			d.speaking = true
			return EventSpeechStart
		}
		return EventNone
	}

	if !d.speaking {
		return EventNone
	}
	if !d.haveSilent {
		d.haveSilent = true
		d.silentSince = now
		return EventNone
	}
	if now.Sub(d.silentSince) >= d.SilenceWindow {
		d.speaking = false
		d.haveSilent = false
		return EventSpeechEnd
	}
	return EventNone
}

// Speaking reports whether the detector is inside a speech episode.
func (d *Detector) Speaking() bool { return d.speaking }

// Reset returns the detector to the silent state without emitting an event.
func (d *Detector) Reset() {
	d.speaking = false
	d.haveSilent = false
}

// AverageLevel reduces a frame of frequency bins to a single energy level.
func AverageLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}
