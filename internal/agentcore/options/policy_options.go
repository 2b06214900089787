package options

import (
	"github.com/spf13/pflag"
)

type PolicyOptions struct {
	Mode            string `json:"mode"              mapstructure:"mode"              validate:"omitempty,oneof=ENFORCE LOG_ONLY"`
	RulesFile       string `json:"rules-file"        mapstructure:"rules-file"`
	AuditSink       string `json:"audit-sink"        mapstructure:"audit-sink"        validate:"oneof=log sqlite memory none"`
	AuditSQLitePath string `json:"audit-sqlite-path" mapstructure:"audit-sqlite-path" validate:"required_if=AuditSink sqlite"`
}

func NewPolicyOptions() *PolicyOptions {
	return &PolicyOptions{
		Mode:            "ENFORCE",
		RulesFile:       "conf/policy.yaml",
		AuditSink:       "log",
		AuditSQLitePath: "data/policy_audit.db",
	}
}

func (o *PolicyOptions) Validate() []error {
	return validateStruct("policy", o)
}

func (o *PolicyOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Mode, "policy.mode", o.Mode, "ENFORCE blocks denied actions, LOG_ONLY only records them. Empty uses the rules file.")
	fs.StringVar(&o.RulesFile, "policy.rules-file", o.RulesFile, "YAML or JSON policy rules.")
	fs.StringVar(&o.AuditSink, "policy.audit-sink", o.AuditSink, "Where decisions are recorded: log, sqlite, memory or none.")
	fs.StringVar(&o.AuditSQLitePath, "policy.audit-sqlite-path", o.AuditSQLitePath, "sqlite file of the audit sink.")
}
