// Package policy implements `agentctl policy`, which evaluates rule files
// locally without a running server.
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/kiosk404/agentcore/internal/agentcore/pkg/caller"
	agentpolicy "github.com/kiosk404/agentcore/internal/agentcore/service/policy"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/policy/domain/service"
	cmdutil "github.com/kiosk404/agentcore/internal/agentctl/cmd/util"
	"github.com/kiosk404/agentcore/pkg/utils/json"
	"github.com/spf13/cobra"
)

func NewCmdPolicy(streams cmdutil.IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with policy rule files",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(NewCmdCheck(streams))
	return cmd
}

type CheckOptions struct {
	RulesFile string
	Mode      string
	ActionID  string
	Args      []string
	Tags      []string
	Actor     string

	cmdutil.IOStreams
}

func NewCmdCheck(streams cmdutil.IOStreams) *cobra.Command {
	o := &CheckOptions{IOStreams: streams}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run one action against a rule file",
		Long: heredoc.Doc(`
			Load a rule file, evaluate a single action against it and print the
			decision. Nothing is audited.

			Argument values are parsed as JSON when possible, so --arg count=3 is a
			number and --arg region=us-east-1 is a string.`),
		Example: heredoc.Doc(`
			# Would deleting a bucket in eu-west-1 be allowed?
			agentctl policy check --action 's3___delete_bucket' --arg region=eu-west-1

			# Same, as an admin
			agentctl policy check -f conf/policy.yaml --action 's3___delete_bucket' --tag admin`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}
	cmd.Flags().StringVarP(&o.RulesFile, "rules", "f", "conf/policy.yaml", "Rule file to load (YAML or JSON).")
	cmd.Flags().StringVar(&o.Mode, "mode", "", "Override the file's mode, ENFORCE or LOG_ONLY.")
	cmd.Flags().StringVar(&o.ActionID, "action", "", "Action id to evaluate, <target>___<tool> for remote tools.")
	cmd.Flags().StringArrayVar(&o.Args, "arg", nil, "Tool argument as key=value, repeatable.")
	cmd.Flags().StringArrayVar(&o.Tags, "tag", nil, "Principal tag, repeatable.")
	cmd.Flags().StringVar(&o.Actor, "actor", "agentctl", "Actor id of the caller.")
	return cmd
}

func (o *CheckOptions) Validate() error {
	if o.ActionID == "" {
		return fmt.Errorf("--action is required")
	}
	return nil
}

func (o *CheckOptions) Run() error {
	args, err := ParseArgs(o.Args)
	if err != nil {
		return err
	}

	rs, err := agentpolicy.LoadRuleSet(o.RulesFile)
	if err != nil {
		return err
	}
	modeName := o.Mode
	if modeName == "" {
		modeName = rs.Mode
	}
	if modeName == "" {
		modeName = string(entity.Enforce)
	}
	mode, err := entity.ParseMode(modeName)
	if err != nil {
		return err
	}

	eval, err := service.NewEvaluator(mode, rs.Rules, nil)
	if err != nil {
		return err
	}
	d := eval.DryRun(o.ActionID, args, caller.Context{ActorID: o.Actor, PrincipalTags: o.Tags})

	verdict := color.GreenString(string(d.Verdict))
	if d.Verdict == entity.Deny {
		verdict = color.RedString(string(d.Verdict))
	}
	rule := d.RuleID
	if rule == "" {
		rule = "<default>"
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("ACTION:", o.ActionID)
	table.AddRow("VERDICT:", verdict)
	table.AddRow("MODE:", string(d.Mode))
	table.AddRow("BLOCKS:", strconv.FormatBool(d.Blocks()))
	table.AddRow("RULE:", rule)
	table.AddRow("REASON:", d.Reason)
	table.AddRow("RULES LOADED:", strconv.Itoa(len(rs.Rules)))
	fmt.Fprintln(o.Out, table)
	return nil
}

// ParseArgs turns key=value pairs into an argument map. Dotted keys build
// nested objects; values that parse as JSON keep their JSON type.
func ParseArgs(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", p)
		}
		parts := strings.Split(k, ".")
		m := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = parseValue(v)
	}
	return out, nil
}

func parseValue(v string) any {
	var decoded any
	if err := json.UnmarshalString(v, &decoded); err == nil {
		return decoded
	}
	return v
}
