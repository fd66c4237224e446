package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
	"github.com/leadergroupsaudi/chatkit-go/pkg/metrics"
)

// DraftDebounce is the quiet period after the last keystroke before a draft
// persists.
const DraftDebounce = 500 * time.Millisecond

// Draft kinds the widget persists independently per session.
const (
	DraftKindMessage = "message"
	DraftKindNote    = "note"
)

type draftState struct {
	text  string
	dirty bool
	timer clock.Timer
}

// DraftStore persists in-progress input per session and kind, debounced so
// typing does not hammer storage. Loading stored drafts into the composer
// echoes back through SetText; a timed guard swallows that echo so a load
// never rewrites what it just read.
type DraftStore struct {
	kv     KV
	clk    clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	sessionID  string
	drafts     map[string]*draftState
	guard      bool
	guardTimer clock.Timer
}

// NewDraftStore wraps kv. A nil clock or logger picks the defaults.
func NewDraftStore(kv KV, clk clock.Clock, logger *slog.Logger) *DraftStore {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftStore{
		kv:     kv,
		clk:    clk,
		logger: logger,
		drafts: make(map[string]*draftState),
	}
}

func draftKey(sessionID, kind string) string {
	return "draft:" + sessionID + ":" + kind
}

// SwitchSession makes sessionID current and returns its stored drafts by
// kind. Pending writes for the previous session persist synchronously first,
// under the previous session's keys, so nothing leaks across conversations.
// The write guard arms for one debounce window.
func (d *DraftStore) SwitchSession(ctx context.Context, sessionID string) map[string]string {
	d.mu.Lock()
	d.flushLocked(ctx)
	d.sessionID = sessionID
	d.drafts = make(map[string]*draftState)

	d.guard = true
	if d.guardTimer != nil {
		d.guardTimer.Stop()
	}
	d.guardTimer = d.clk.AfterFunc(DraftDebounce, func() {
		d.mu.Lock()
		d.guard = false
		d.guardTimer = nil
		d.mu.Unlock()
	})
	d.mu.Unlock()

	loaded := make(map[string]string)
	for _, kind := range []string{DraftKindMessage, DraftKindNote} {
		raw, found, err := d.kv.Get(ctx, draftKey(sessionID, kind))
		if err != nil {
			d.logger.Warn("loading draft failed", "session", sessionID, "kind", kind, "error", err)
			continue
		}
		if found && raw != "" {
			loaded[kind] = raw
		}
	}
	return loaded
}

// SetText records the latest composer text for kind and schedules a
// debounced write. Empty text clears the draft immediately. Calls inside the
// guard window are the echo of a load and are dropped.
func (d *DraftStore) SetText(ctx context.Context, kind, text string) {
	d.mu.Lock()
	if d.guard {
		d.mu.Unlock()
		return
	}
	if text == "" {
		d.clearLocked(ctx, kind)
		d.mu.Unlock()
		return
	}

	st := d.drafts[kind]
	if st == nil {
		st = &draftState{}
		d.drafts[kind] = st
	}
	st.text = text
	st.dirty = true
	if st.timer != nil {
		st.timer.Stop()
	}
	sessionID := d.sessionID
	st.timer = d.clk.AfterFunc(DraftDebounce, func() {
		d.persist(sessionID, kind)
	})
	d.mu.Unlock()
}

// Clear removes the draft for kind immediately, bypassing the debounce.
func (d *DraftStore) Clear(ctx context.Context, kind string) {
	d.mu.Lock()
	d.clearLocked(ctx, kind)
	d.mu.Unlock()
}

// Flush persists every dirty draft now. Called on teardown.
func (d *DraftStore) Flush(ctx context.Context) {
	d.mu.Lock()
	d.flushLocked(ctx)
	d.mu.Unlock()
}

func (d *DraftStore) clearLocked(ctx context.Context, kind string) {
	if st := d.drafts[kind]; st != nil {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(d.drafts, kind)
	}
	if d.sessionID == "" {
		return
	}
	if err := d.kv.Delete(ctx, draftKey(d.sessionID, kind)); err != nil {
		d.logger.Warn("clearing draft failed", "session", d.sessionID, "kind", kind, "error", err)
	}
}

func (d *DraftStore) flushLocked(ctx context.Context) {
	for kind, st := range d.drafts {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		if !st.dirty {
			continue
		}
		st.dirty = false
		d.write(ctx, d.sessionID, kind, st.text)
	}
}

// persist runs on the debounce timer. The session id was captured when the
// timer was armed, so a switch that raced the timer still writes under the
// right session.
func (d *DraftStore) persist(sessionID, kind string) {
	d.mu.Lock()
	st := d.drafts[kind]
	if st == nil || !st.dirty || d.sessionID != sessionID {
		d.mu.Unlock()
		return
	}
	st.dirty = false
	st.timer = nil
	text := st.text
	d.mu.Unlock()

	d.write(context.Background(), sessionID, kind, text)
}

func (d *DraftStore) write(ctx context.Context, sessionID, kind, text string) {
	if sessionID == "" {
		return
	}
	if err := d.kv.Set(ctx, draftKey(sessionID, kind), text); err != nil {
		d.logger.Warn("persisting draft failed", "session", sessionID, "kind", kind, "error", err)
		return
	}
	metrics.DraftSaves.Inc()
}
