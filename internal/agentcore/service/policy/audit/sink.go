// Package audit holds the append-only sinks for policy decisions.
package audit

import (
	"context"
	"sync"

	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const (
	SinkLog    = "log"
	SinkSQLite = "sqlite"
	SinkMemory = "memory"
	SinkNone   = "none"
)

// Reader returns the most recent audit entries, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]*entity.AuditEntry, error)
}

// LogSink writes entries as structured log lines.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (LogSink) Record(_ context.Context, e *entity.AuditEntry) error {
	logger.WithFields(map[string]any{
		"module":     "policy.audit",
		"action_id":  e.ActionID,
		"verdict":    e.Verdict,
		"mode":       e.Mode,
		"rule_id":    e.RuleID,
		"actor_id":   e.Caller.ActorID,
		"session_id": e.Caller.SessionID,
		"tags":       e.Caller.PrincipalTags,
		"timestamp":  e.Timestamp,
	}).Info(e.Reason)
	return nil
}

// MemorySink keeps a bounded ring of entries in process memory.
type MemorySink struct {
	mu      sync.RWMutex
	entries []*entity.AuditEntry
	max     int
	closed  bool
}

// NewMemorySink keeps at most max entries; max <= 0 means unbounded.
func NewMemorySink(max int) *MemorySink {
	return &MemorySink{max: max}
}

func (s *MemorySink) Record(_ context.Context, e *entity.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errno.ErrAuditClosed
	}
	cp := *e
	s.entries = append(s.entries, &cp)
	if s.max > 0 && len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}
	return nil
}

func (s *MemorySink) Recent(_ context.Context, limit int) ([]*entity.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*entity.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		cp := *s.entries[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Fanout records into every sink and returns the first error.
type Fanout []interface {
	Record(ctx context.Context, e *entity.AuditEntry) error
}

func (f Fanout) Record(ctx context.Context, e *entity.AuditEntry) error {
	var first error
	for _, s := range f {
		if err := s.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
