package service

import (
	"fmt"

	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
)

// Rule templates for the common guardrails.
//
// Conditions never hold on a missing argument, so a guard on an argument comes
// as a pair: one DENY rule for the absent argument and one for the bad value.

// RegionRestriction denies actionPattern unless the region argument is one of
// regions. A call without a region is denied too.
func RegionRestriction(id, actionPattern string, regions []string) []entity.Rule {
	return []entity.Rule{
		{
			ID:          id + "-missing",
			Effect:      entity.Deny,
			Priority:    100,
			Action:      actionPattern,
			Conditions:  []entity.Condition{{Arg: "region", Op: entity.OpAbsent}},
			Description: "region is required",
		},
		{
			ID:          id,
			Effect:      entity.Deny,
			Priority:    100,
			Action:      actionPattern,
			Conditions:  []entity.Condition{{Arg: "region", Op: entity.OpNotIn, Value: regions}},
			Description: fmt.Sprintf("region must be one of %v", regions),
		},
	}
}

// ParameterLimit denies actionPattern when the numeric argument arg is missing
// or above max, e.g. a lambda memory size over 1024 MB.
func ParameterLimit(id, actionPattern, arg string, max float64) []entity.Rule {
	return []entity.Rule{
		{
			ID:          id + "-missing",
			Effect:      entity.Deny,
			Priority:    100,
			Action:      actionPattern,
			Conditions:  []entity.Condition{{Arg: arg, Op: entity.OpAbsent}},
			Description: fmt.Sprintf("%s is required", arg),
		},
		{
			ID:          id,
			Effect:      entity.Deny,
			Priority:    100,
			Action:      actionPattern,
			Conditions:  []entity.Condition{{Arg: arg, Op: entity.OpGt, Value: max}},
			Description: fmt.Sprintf("limit %s to max %v", arg, max),
		},
	}
}

// DenyLike denies actionPattern when arg matches the glob pattern,
// e.g. deleting buckets whose name contains "prod".
func DenyLike(id, actionPattern, arg, pattern string) entity.Rule {
	return entity.Rule{
		ID:          id,
		Effect:      entity.Deny,
		Priority:    100,
		Action:      actionPattern,
		Conditions:  []entity.Condition{{Arg: arg, Op: entity.OpLike, Value: pattern}},
		Description: fmt.Sprintf("%s must not match %q", arg, pattern),
	}
}

// RequireTag allows actionPattern only for principals carrying tag.
// It yields an allow rule; callers rely on the default deny for everyone else.
func RequireTag(id, actionPattern, tag string) entity.Rule {
	return entity.Rule{
		ID:          id,
		Effect:      entity.Allow,
		Priority:    10,
		Action:      actionPattern,
		Principal:   &entity.PrincipalMatch{HasTags: []string{tag}},
		Description: fmt.Sprintf("principal must carry tag %q", tag),
	}
}

// AllowAll permits every action matching actionPattern.
func AllowAll(id, actionPattern string) entity.Rule {
	return entity.Rule{ID: id, Effect: entity.Allow, Action: actionPattern}
}
