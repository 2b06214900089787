package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/pkg/utils/json"
	_ "github.com/mattn/go-sqlite3" // Register SQLite3 driver
)

const tableAudit = "policy_audit"

// SQLiteSink appends audit entries to a sqlite table. Rows are never updated.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) the audit database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + tableAudit + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_id TEXT NOT NULL,
			verdict TEXT NOT NULL,
			mode TEXT NOT NULL,
			reason TEXT NOT NULL,
			rule_id TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			principal_tags TEXT NOT NULL DEFAULT '[]',
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_policy_audit_ts ON ` + tableAudit + `(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_policy_audit_action ON ` + tableAudit + `(action_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec schema: %w", err)
		}
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Record(ctx context.Context, e *entity.AuditEntry) error {
	tags, err := json.MarshalString(e.Caller.PrincipalTags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+tableAudit+` (action_id, verdict, mode, reason, rule_id, actor_id, session_id, principal_tags, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ActionID, string(e.Verdict), string(e.Mode), e.Reason, e.RuleID,
		e.Caller.ActorID, e.Caller.SessionID, tags, e.Timestamp.UnixNano())
	return err
}

func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT action_id, verdict, mode, reason, rule_id, actor_id, session_id, principal_tags, ts FROM `+tableAudit+` ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.AuditEntry
	for rows.Next() {
		var (
			e       entity.AuditEntry
			verdict string
			mode    string
			tags    string
			ts      int64
			c       caller.Context
		)
		if err := rows.Scan(&e.ActionID, &verdict, &mode, &e.Reason, &e.RuleID, &c.ActorID, &c.SessionID, &tags, &ts); err != nil {
			return nil, err
		}
		if tags != "" {
			_ = json.UnmarshalString(tags, &c.PrincipalTags)
		}
		e.Verdict = entity.Verdict(verdict)
		e.Mode = entity.Mode(mode)
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Caller = c
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
