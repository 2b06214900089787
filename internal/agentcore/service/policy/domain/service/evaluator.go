package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/pkg/errno"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const moduleName = "policy"

// AuditSink receives one entry per evaluation. It is append-only.
type AuditSink interface {
	Record(ctx context.Context, entry *entity.AuditEntry) error
}

// Evaluator decides allow/deny for an action with first-match semantics.
// It is safe for concurrent use; the rule set is immutable after construction.
type Evaluator struct {
	mode  entity.Mode
	rules []entity.Rule
	sink  AuditSink
	now   func() time.Time
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithClock replaces time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func ruleValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// NewEvaluator validates and orders rules. A nil sink discards audit entries.
func NewEvaluator(mode entity.Mode, rules []entity.Rule, sink AuditSink, opts ...Option) (*Evaluator, error) {
	if mode != entity.Enforce && mode != entity.LogOnly {
		return nil, fmt.Errorf("%w: %q", errno.ErrInvalidMode, mode)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	ordered := make([]entity.Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Effect == entity.Deny && ordered[j].Effect != entity.Deny
	})

	e := &Evaluator{mode: mode, rules: ordered, sink: sink, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ValidateRules checks rule structure and id uniqueness.
func ValidateRules(rules []entity.Rule) error {
	seen := make(map[string]struct{}, len(rules))
	var errs []error
	for i := range rules {
		if err := ruleValidator().Struct(&rules[i]); err != nil {
			errs = append(errs, fmt.Errorf("rule[%d] %q: %w", i, rules[i].ID, err))
			continue
		}
		if _, dup := seen[rules[i].ID]; dup {
			errs = append(errs, fmt.Errorf("rule[%d]: duplicate id %q", i, rules[i].ID))
		}
		seen[rules[i].ID] = struct{}{}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errno.ErrInvalidRuleSet, errors.Join(errs...))
	}
	return nil
}

// Mode returns the engine-wide mode.
func (e *Evaluator) Mode() entity.Mode { return e.mode }

// Rules returns the rules in evaluation order.
func (e *Evaluator) Rules() []entity.Rule {
	out := make([]entity.Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate decides and records an audit entry.
func (e *Evaluator) Evaluate(ctx context.Context, actionID string, args map[string]any, c caller.Context) entity.Decision {
	d := e.decide(actionID, args, c)

	if e.sink != nil {
		entry := &entity.AuditEntry{
			ActionID:  actionID,
			Verdict:   d.Verdict,
			Mode:      d.Mode,
			Reason:    d.Reason,
			RuleID:    d.RuleID,
			Timestamp: e.now().UTC(),
			Caller:    c.Clone(),
		}
		if err := e.sink.Record(ctx, entry); err != nil {
			logger.WarnX(moduleName, "audit record for %s failed: %v", actionID, err)
		}
	}
	return d
}

// DryRun decides without writing an audit entry.
func (e *Evaluator) DryRun(actionID string, args map[string]any, c caller.Context) entity.Decision {
	return e.decide(actionID, args, c)
}

func (e *Evaluator) decide(actionID string, args map[string]any, c caller.Context) entity.Decision {
	for i := range e.rules {
		r := &e.rules[i]
		if !ruleMatches(r, actionID, args, c) {
			continue
		}
		reason := fmt.Sprintf("rule %q matched (%s)", r.ID, r.Effect)
		if r.Description != "" {
			reason += ": " + r.Description
		}
		return entity.Decision{Verdict: r.Effect, Mode: e.mode, Reason: reason, RuleID: r.ID}
	}

	if e.mode == entity.LogOnly {
		return entity.Decision{Verdict: entity.Allow, Mode: e.mode, Reason: "no rule matched; default allow in LOG_ONLY mode"}
	}
	return entity.Decision{Verdict: entity.Deny, Mode: e.mode, Reason: "no rule matched; default deny"}
}

func ruleMatches(r *entity.Rule, actionID string, args map[string]any, c caller.Context) bool {
	if !globMatch(r.Action, actionID) {
		return false
	}
	if !matchPrincipal(r.Principal, c) {
		return false
	}
	for _, cond := range r.Conditions {
		if !matchCondition(cond, args) {
			return false
		}
	}
	return true
}
