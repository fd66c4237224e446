package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/clock"
)

// SessionWindow is how long a stored session id stays resumable. Records
// older than this are discarded and a fresh session minted.
const SessionWindow = 30 * 24 * time.Hour

type sessionRecord struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
}

// SessionStore maps a (company, agent) pair to a stable session id so a
// visitor keeps the same conversation across page loads. Storage failures
// never break the widget: the store logs them and falls back to an
// in-process mirror, losing only cross-load persistence.
type SessionStore struct {
	kv     KV
	clk    clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	mirror map[string]sessionRecord
}

// NewSessionStore wraps kv. A nil clock or logger picks the defaults.
func NewSessionStore(kv KV, clk clock.Clock, logger *slog.Logger) *SessionStore {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		kv:     kv,
		clk:    clk,
		logger: logger,
		mirror: make(map[string]sessionRecord),
	}
}

func sessionKey(companyID, agentID string) string {
	return "chat_session:" + companyID + ":" + agentID
}

// Resolve returns the session id for the pair, resuming a stored one inside
// the window or minting a new id from the current unix-millisecond time.
// resumed reports whether an existing session was kept.
func (s *SessionStore) Resolve(ctx context.Context, companyID, agentID string) (sessionID string, resumed bool) {
	key := sessionKey(companyID, agentID)
	now := s.clk.Now()

	if rec, ok := s.load(ctx, key); ok {
		age := now.Sub(time.UnixMilli(rec.Timestamp))
		if age >= 0 && age < SessionWindow {
			rec.Timestamp = now.UnixMilli()
			s.save(ctx, key, rec)
			return rec.SessionID, true
		}
	}

	rec := sessionRecord{
		SessionID: strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp: now.UnixMilli(),
	}
	s.save(ctx, key, rec)
	return rec.SessionID, false
}

// Forget drops the stored session so the next Resolve starts a fresh
// conversation.
func (s *SessionStore) Forget(ctx context.Context, companyID, agentID string) {
	key := sessionKey(companyID, agentID)
	s.mu.Lock()
	delete(s.mirror, key)
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warn("deleting session record failed", "key", key, "error", err)
	}
}

func (s *SessionStore) load(ctx context.Context, key string) (sessionRecord, bool) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("reading session record failed, using in-process mirror",
			"key", key, "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, ok := s.mirror[key]
		return rec, ok
	}
	if !found {
		return sessionRecord{}, false
	}
	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("corrupt session record, starting fresh", "key", key, "error", err)
		return sessionRecord{}, false
	}
	return rec, true
}

func (s *SessionStore) save(ctx context.Context, key string, rec sessionRecord) {
	s.mu.Lock()
	s.mirror[key] = rec
	s.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("encoding session record failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, string(raw)); err != nil {
		s.logger.Warn("persisting session record failed, session lives in memory only",
			"key", key, "error", err)
	}
}
