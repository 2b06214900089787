// Package local holds in-process tools.
package local

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/service"
)

// Definition describes a local tool.
type Definition struct {
	// Name is the tool's unique name. (e.g. "get_current_time")
	Name        string
	Description string
	Parameters  []ParameterDef
	Handler     Handler
}

// ParameterDef defines a single parameter for a tool.
type ParameterDef struct {
	Name string
	// Type is the JSON type: "string", "number", "integer", "boolean", "object" or "array".
	Type        string
	Description string
	Required    bool
	Enum        []any
}

// Handler receives the validated arguments of a call.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Schema builds the JSON schema of the parameters.
func (d Definition) Schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(d.Parameters)),
	}
	for _, p := range d.Parameters {
		s.Properties[p.Name] = &jsonschema.Schema{Type: p.Type, Description: p.Description, Enum: p.Enum}
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// Spec returns the registry spec of the definition.
func (d Definition) Spec() *entity.ToolSpec {
	return &entity.ToolSpec{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.Schema(),
		Source:      entity.SourceLocal,
	}
}

// Register adds every definition to r.
func Register(r *service.Registry, defs ...Definition) error {
	for _, d := range defs {
		if d.Handler == nil {
			return fmt.Errorf("local tool %q has no handler", d.Name)
		}
		if err := r.Register(d.Spec(), service.ExecutorFunc(d.Handler)); err != nil {
			return err
		}
	}
	return nil
}

// StringParam returns params[key] when it is a string.
func StringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// IntParam returns params[key] as an int, or def when it is missing or not a
// number. JSON numbers arrive as float64.
func IntParam(params map[string]any, key string, def int) int {
	switch n := params[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// BoolParam returns params[key] and whether it was a bool.
func BoolParam(params map[string]any, key string) (bool, bool) {
	b, ok := params[key].(bool)
	return b, ok
}
