package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
)

// globMatch matches s against a pattern where '*' is any run of characters
// and '?' is exactly one. Unlike path.Match, '/' is not special, and a '*'
// in the pattern is always a wildcard even when s holds a literal '*'.
func globMatch(pattern, s string) bool {
	p, i := 0, 0
	starP, starI := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP, starI = p, i
			p++
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case starP >= 0:
			p = starP + 1
			starI++
			i = starI
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

func matchPrincipal(m *entity.PrincipalMatch, c caller.Context) bool {
	if m == nil {
		return true
	}
	for _, tag := range m.HasTags {
		if !c.HasTag(tag) {
			return false
		}
	}
	for key, allowed := range m.TagValues {
		v, ok := c.TagValue(key)
		if !ok || !containsString(allowed, v) {
			return false
		}
	}
	if len(m.Actors) > 0 {
		matched := false
		for _, a := range m.Actors {
			if globMatch(a, c.ActorID) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// lookupArg resolves a dotted path inside nested argument maps.
func lookupArg(args map[string]any, path string) (any, bool) {
	var cur any = args
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func matchCondition(cond entity.Condition, args map[string]any) bool {
	v, present := lookupArg(args, cond.Arg)
	switch cond.Op {
	case entity.OpExists:
		return present
	case entity.OpAbsent:
		return !present
	}
	if !present {
		return false
	}

	switch cond.Op {
	case entity.OpEq:
		return equalValues(v, cond.Value)
	case entity.OpNe:
		return !equalValues(v, cond.Value)
	case entity.OpGt, entity.OpGte, entity.OpLt, entity.OpLte:
		a, okA := toFloat(v)
		b, okB := toFloat(cond.Value)
		if !okA || !okB {
			return false
		}
		switch cond.Op {
		case entity.OpGt:
			return a > b
		case entity.OpGte:
			return a >= b
		case entity.OpLt:
			return a < b
		default:
			return a <= b
		}
	case entity.OpIn:
		return inSet(v, cond.Value)
	case entity.OpNotIn:
		return !inSet(v, cond.Value)
	case entity.OpLike:
		return globMatch(fmt.Sprint(cond.Value), fmt.Sprint(v))
	case entity.OpNotLike:
		return !globMatch(fmt.Sprint(cond.Value), fmt.Sprint(v))
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func inSet(v, set any) bool {
	for _, item := range toSlice(set) {
		if equalValues(v, item) {
			return true
		}
	}
	return false
}

func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out
	case string:
		// comma separated lists are accepted from flat config sources
		parts := strings.Split(s, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	case nil:
		return nil
	}
	return []any{v}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
