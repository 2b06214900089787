package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ActionSeparator joins a target name and a tool name into an action id.
const ActionSeparator = "___"

// LocalTarget is the reserved target name of in-process tools.
const LocalTarget = "local"

// Source tells where a tool executes.
type Source string

const (
	SourceLocal  Source = "LOCAL"
	SourceRemote Source = "REMOTE"
)

// AuthMode selects how requests to a remote target are authenticated.
type AuthMode string

const (
	AuthBearer AuthMode = "bearer"
	AuthSigV4  AuthMode = "sigv4"
	AuthAPIKey AuthMode = "api_key"
)

func (m AuthMode) Valid() bool {
	switch m {
	case AuthBearer, AuthSigV4, AuthAPIKey:
		return true
	}
	return false
}

// TargetRef identifies the remote endpoint behind a REMOTE tool.
type TargetRef struct {
	// Name is the gateway target name, the left half of the action id.
	Name string `json:"name"`
	// RemoteName is the tool name as the remote endpoint knows it.
	RemoteName string   `json:"remote_name"`
	Auth       AuthMode `json:"auth"`
	Scopes     []string `json:"scopes,omitempty"`
}

// ToolSpec describes one registered tool.
type ToolSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
	Source      Source             `json:"source"`
	Target      *TargetRef         `json:"target,omitempty"`
}

var (
	ErrInvalidToolName = errors.New("invalid tool name")
	ErrInvalidToolSpec = errors.New("invalid tool spec")
)

// Validate checks the structural invariants of a spec.
func (s *ToolSpec) Validate() error {
	if s == nil {
		return ErrInvalidToolSpec
	}
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	switch s.Source {
	case SourceLocal:
		if s.Target != nil {
			return fmt.Errorf("%w: local tool %q must not have a target", ErrInvalidToolSpec, s.Name)
		}
	case SourceRemote:
		if s.Target == nil {
			return fmt.Errorf("%w: remote tool %q has no target", ErrInvalidToolSpec, s.Name)
		}
		if err := ValidateName(s.Target.Name); err != nil {
			return fmt.Errorf("target of %q: %w", s.Name, err)
		}
		if s.Target.Name == LocalTarget {
			return fmt.Errorf("%w: target name %q is reserved", ErrInvalidToolSpec, LocalTarget)
		}
		if !s.Target.Auth.Valid() {
			return fmt.Errorf("%w: remote tool %q has unknown auth mode %q", ErrInvalidToolSpec, s.Name, s.Target.Auth)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidToolSpec, s.Source)
	}
	return nil
}

// ValidateName rejects empty names, names containing the action separator and
// names that start or end with '_'. An edge underscore would run into the
// separator, so "x_"+"y" and "x"+"_y" would share the action id "x____y".
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToolName)
	}
	if strings.Contains(name, ActionSeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidToolName, name, ActionSeparator)
	}
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return fmt.Errorf("%w: %q starts or ends with '_'", ErrInvalidToolName, name)
	}
	return nil
}

// ActionID is the policy key of a tool on a target.
type ActionID struct {
	Target string `json:"target"`
	Tool   string `json:"tool"`
}

func (a ActionID) String() string {
	return a.Target + ActionSeparator + a.Tool
}

// Action returns the policy action id of the tool.
func (s *ToolSpec) Action() ActionID {
	if s.Source == SourceRemote && s.Target != nil {
		return ActionID{Target: s.Target.Name, Tool: s.Name}
	}
	return ActionID{Target: LocalTarget, Tool: s.Name}
}

// ParseActionID splits on the first separator. Registered names neither
// contain the separator nor touch it with an edge '_', so the split is
// unambiguous for registered tools.
func ParseActionID(s string) (ActionID, bool) {
	target, tool, ok := strings.Cut(s, ActionSeparator)
	if !ok || target == "" || tool == "" {
		return ActionID{}, false
	}
	return ActionID{Target: target, Tool: tool}, true
}
