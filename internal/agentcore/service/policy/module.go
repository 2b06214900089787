package policy

import (
	"context"
	"fmt"

	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/audit"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const ModuleName = "policy"

// Config holds the configuration for the Policy module.
// Follows K8S-style: Config → Complete() → New(ctx).
type Config struct {
	// Mode overrides the mode declared in the rules file when set.
	Mode string
	// RulesFile is a YAML/JSON rule set; missing means no rules.
	RulesFile string
	// Rules are appended after the file's rules.
	Rules []entity.Rule

	// AuditSink is one of log, sqlite, memory, none (default: log).
	AuditSink string
	// AuditSQLitePath is used when AuditSink is sqlite.
	AuditSQLitePath string
	// AuditMemoryMax bounds the in-memory audit ring (default: 1000).
	AuditMemoryMax int
}

type CompletedConfig struct {
	*Config
}

func (c *Config) Complete() CompletedConfig {
	if c.AuditSink == "" {
		c.AuditSink = audit.SinkLog
	}
	if c.AuditSQLitePath == "" {
		c.AuditSQLitePath = "data/policy_audit.db"
	}
	if c.AuditMemoryMax <= 0 {
		c.AuditMemoryMax = 1000
	}
	return CompletedConfig{c}
}

// Module exposes the evaluator and a reader over recent decisions.
type Module struct {
	Evaluator *service.Evaluator
	Audit     audit.Reader
	closers   []func() error
}

func (m *Module) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New loads rules and opens the audit sink.
func (c CompletedConfig) New(_ context.Context) (*Module, error) {
	rs, err := LoadRuleSet(c.RulesFile)
	if err != nil {
		return nil, err
	}

	modeStr := rs.Mode
	if c.Mode != "" {
		modeStr = c.Mode
	}
	if modeStr == "" {
		modeStr = string(entity.Enforce)
	}
	mode, err := entity.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	m := &Module{}
	mem := audit.NewMemorySink(c.AuditMemoryMax)
	var sink service.AuditSink
	switch c.AuditSink {
	case audit.SinkSQLite:
		sq, err := audit.OpenSQLiteSink(c.AuditSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit sink: %w", err)
		}
		m.closers = append(m.closers, sq.Close)
		m.Audit = sq
		sink = audit.Fanout{audit.NewLogSink(), sq}
	case audit.SinkMemory:
		m.Audit = mem
		sink = mem
	case audit.SinkNone:
		m.Audit = mem
	default:
		m.Audit = mem
		sink = audit.Fanout{audit.NewLogSink(), mem}
	}

	rules := append(rs.Rules, c.Rules...)
	ev, err := service.NewEvaluator(mode, rules, sink)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	m.Evaluator = ev

	logger.InfoX(ModuleName, "policy engine ready (mode=%s, rules=%d, audit=%s)", mode, len(rules), c.AuditSink)
	return m, nil
}
