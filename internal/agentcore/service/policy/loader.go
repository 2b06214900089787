package policy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/pkg/errno"
	"github.com/spf13/viper"
)

// LoadRuleSet reads a YAML or JSON rule file. A missing file yields an empty set.
func LoadRuleSet(path string) (*entity.RuleSet, error) {
	if path == "" {
		return &entity.RuleSet{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &entity.RuleSet{}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errno.ErrInvalidRuleSet, path, err)
	}

	var rs entity.RuleSet
	if err := v.Unmarshal(&rs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", errno.ErrInvalidRuleSet, path, err)
	}
	normalize(&rs)
	return &rs, nil
}

func normalize(rs *entity.RuleSet) {
	for i := range rs.Rules {
		r := &rs.Rules[i]
		r.Effect = entity.Verdict(strings.ToUpper(strings.TrimSpace(string(r.Effect))))
		// viper folds map keys to lower case; keep every source consistent with it.
		if r.Principal != nil && len(r.Principal.TagValues) > 0 {
			tv := make(map[string][]string, len(r.Principal.TagValues))
			for k, vals := range r.Principal.TagValues {
				tv[strings.ToLower(k)] = vals
			}
			r.Principal.TagValues = tv
		}
		for j := range r.Conditions {
			c := &r.Conditions[j]
			c.Op = entity.Operator(strings.ToLower(strings.TrimSpace(string(c.Op))))
		}
	}
}
