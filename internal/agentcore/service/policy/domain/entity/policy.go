package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
)

// Verdict is the outcome of a rule or of the engine default.
type Verdict string

const (
	Allow Verdict = "ALLOW"
	Deny  Verdict = "DENY"
)

// Mode is the engine-wide enforcement setting.
type Mode string

const (
	Enforce Mode = "ENFORCE"
	LogOnly Mode = "LOG_ONLY"
)

// ParseMode accepts ENFORCE / LOG_ONLY in any case, with '-' for '_'.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")) {
	case Enforce:
		return Enforce, nil
	case LogOnly:
		return LogOnly, nil
	}
	return "", fmt.Errorf("unknown policy mode %q", s)
}

// Decision is what the engine tells the registry.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Mode    Mode    `json:"mode"`
	Reason  string  `json:"reason"`
	RuleID  string  `json:"rule_id,omitempty"`
}

// Blocks reports whether the action must not execute.
func (d Decision) Blocks() bool {
	return d.Verdict == Deny && d.Mode == Enforce
}

// Operator of an argument condition.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpIn      Operator = "in"
	OpNotIn   Operator = "not_in"
	OpLike    Operator = "like"
	OpNotLike Operator = "not_like"
	OpExists  Operator = "exists"
	OpAbsent  Operator = "absent"
)

// Condition constrains one argument of the call.
type Condition struct {
	Arg   string   `json:"arg"   mapstructure:"arg"   validate:"required"`
	Op    Operator `json:"op"    mapstructure:"op"    validate:"required,oneof=eq ne gt gte lt lte in not_in like not_like exists absent"`
	Value any      `json:"value" mapstructure:"value"`
}

// PrincipalMatch constrains the caller.
type PrincipalMatch struct {
	// HasTags must all be present on the principal.
	HasTags []string `json:"has_tags,omitempty"   mapstructure:"has_tags"`
	// TagValues maps tag keys to the allowed values.
	TagValues map[string][]string `json:"tag_values,omitempty" mapstructure:"tag_values"`
	// Actors restricts the rule to specific actor ids (glob).
	Actors []string `json:"actors,omitempty"     mapstructure:"actors"`
}

// Rule is one declarative policy statement.
type Rule struct {
	ID          string          `json:"id"                    mapstructure:"id"                    validate:"required"`
	Effect      Verdict         `json:"effect"                mapstructure:"effect"                validate:"required,oneof=ALLOW DENY"`
	Priority    int             `json:"priority,omitempty"    mapstructure:"priority"`
	Action      string          `json:"action"                mapstructure:"action"                validate:"required"`
	Principal   *PrincipalMatch `json:"principal,omitempty"   mapstructure:"principal"`
	Conditions  []Condition     `json:"conditions,omitempty"  mapstructure:"conditions"  validate:"dive"`
	Description string          `json:"description,omitempty" mapstructure:"description"`
}

// RuleSet is the on-disk shape of a policy file.
type RuleSet struct {
	Mode  string `json:"mode,omitempty" mapstructure:"mode"`
	Rules []Rule `json:"rules"          mapstructure:"rules" validate:"dive"`
}

// AuditEntry records one evaluation.
type AuditEntry struct {
	ActionID  string         `json:"action_id"`
	Verdict   Verdict        `json:"verdict"`
	Mode      Mode           `json:"mode"`
	Reason    string         `json:"reason"`
	RuleID    string         `json:"rule_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Caller    caller.Context `json:"caller_context"`
}
