package voice

import (
	"testing"
	"time"
)

func TestDetectorSpeechStartsImmediately(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	now := time.Unix(1700000000, 0)
	if ev := d.Observe(10, now); ev != EventNone {
		t.Fatalf("silent observation produced %v", ev)
	}
	if ev := d.Observe(45, now.Add(100*time.Millisecond)); ev != EventSpeechStart {
		t.Fatalf("loud observation produced %v, want speech start", ev)
	}
	if !d.Speaking() {
		t.Error("detector not speaking after speech start")
	}
}

func TestDetectorSpeechEndsOnlyAfterSustainedSilence(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	now := time.Unix(1700000000, 0)
	d.Observe(100, now)

	// 1400ms of silence is not enough.
	for i := 1; i <= 14; i++ {
		if ev := d.Observe(5, now.Add(time.Duration(i)*100*time.Millisecond)); ev != EventNone {
			t.Fatalf("observation at %dms produced %v", i*100, ev)
		}
	}
	// The window is measured from the first silent observation, so the
	// boundary falls at 100ms + 1500ms.
	if ev := d.Observe(5, now.Add(1600*time.Millisecond)); ev != EventSpeechEnd {
		t.Fatalf("observation past silence window produced %v, want speech end", ev)
	}
	if d.Speaking() {
		t.Error("detector still speaking after speech end")
	}
}

func TestDetectorBriefDipDoesNotEndSpeech(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	now := time.Unix(1700000000, 0)
	d.Observe(100, now)
	d.Observe(5, now.Add(100*time.Millisecond))
	d.Observe(5, now.Add(200*time.Millisecond))
	// Speech resumes before the window elapses; the silence clock resets.
	d.Observe(80, now.Add(300*time.Millisecond))
	d.Observe(5, now.Add(400*time.Millisecond))
	if ev := d.Observe(5, now.Add(1700*time.Millisecond)); ev != EventNone {
		t.Fatalf("observation at 1300ms of new silence produced %v", ev)
	}
	if ev := d.Observe(5, now.Add(1900*time.Millisecond)); ev != EventSpeechEnd {
		t.Fatalf("observation at 1500ms of new silence produced %v, want speech end", ev)
	}
}

func TestDetectorThresholdBoundary(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	now := time.Unix(1700000000, 0)
	if ev := d.Observe(29.9, now); ev != EventNone {
		t.Fatalf("level below threshold produced %v", ev)
	}
	if ev := d.Observe(30, now); ev != EventSpeechStart {
		t.Fatalf("level at threshold produced %v, want speech start", ev)
	}
}

func TestAverageLevel(t *testing.T) {
	t.Parallel()

	if got := AverageLevel(nil); got != 0 {
		t.Errorf("AverageLevel(nil) = %v, want 0", got)
	}
	if got := AverageLevel([]byte{10, 20, 30}); got != 20 {
		t.Errorf("AverageLevel = %v, want 20", got)
	}
}
