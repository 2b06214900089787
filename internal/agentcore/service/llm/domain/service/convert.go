// Package service adapts eino chat models to the agent loop.
package service

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kiosk404/agentcore/internal/agentcore/service/agents/domain/entity"
	tools "github.com/kiosk404/agentcore/internal/agentcore/service/tools/domain/entity"
	"github.com/kiosk404/agentcore/pkg/utils/json"
)

// RawArgumentsKey holds tool-call arguments the model sent as invalid JSON.
// Schema validation then rejects the call with a readable message.
const RawArgumentsKey = "_raw"

// ToMessages converts conversation history to eino messages, system prompt first.
// A TOOL turn becomes the assistant's tool call followed by the tool result.
func ToMessages(systemPrompt string, history []*entity.ConversationTurn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(systemPrompt))
	}
	for _, t := range history {
		switch t.Role {
		case entity.RoleUser:
			msgs = append(msgs, schema.UserMessage(t.Content))
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(t.Content, nil))
		case entity.RoleTool:
			if t.Tool == nil {
				continue
			}
			args, err := json.MarshalString(t.Tool.Arguments)
			if err != nil || t.Tool.Arguments == nil {
				args = "{}"
			}
			msgs = append(msgs,
				schema.AssistantMessage("", []schema.ToolCall{{
					ID:       t.Tool.CallID,
					Type:     "function",
					Function: schema.FunctionCall{Name: t.Tool.ToolName, Arguments: args},
				}}),
				schema.ToolMessage(t.Content, t.Tool.CallID, schema.WithToolName(t.Tool.ToolName)),
			)
		}
	}
	return msgs
}

// ToToolInfos converts registry specs to the tool descriptions a model binds.
func ToToolInfos(specs []*tools.ToolSpec) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		info := &schema.ToolInfo{Name: s.Name, Desc: s.Description}
		if params := toParams(s.InputSchema); len(params) > 0 {
			info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
		}
		infos = append(infos, info)
	}
	return infos
}

func toParams(s *jsonschema.Schema) map[string]*schema.ParameterInfo {
	if s == nil || len(s.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(s.Properties))
	for name, prop := range s.Properties {
		p := toParam(prop)
		p.Required = required[name]
		params[name] = p
	}
	return params
}

func toParam(s *jsonschema.Schema) *schema.ParameterInfo {
	p := &schema.ParameterInfo{Type: dataType(s), Desc: s.Description}
	for _, e := range s.Enum {
		p.Enum = append(p.Enum, fmt.Sprint(e))
	}
	switch p.Type {
	case schema.Object:
		p.SubParams = toParams(s)
	case schema.Array:
		if s.Items != nil {
			p.ElemInfo = toParam(s.Items)
		}
	}
	return p
}

func dataType(s *jsonschema.Schema) schema.DataType {
	t := s.Type
	if t == "" {
		for _, candidate := range s.Types {
			if candidate != "null" {
				t = candidate
				break
			}
		}
	}
	switch t {
	case "object":
		return schema.Object
	case "array":
		return schema.Array
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "null":
		return schema.Null
	default:
		return schema.String
	}
}

// FromMessage turns a model response into the next action. Only the first
// tool call is used; the loop dispatches one call per step.
func FromMessage(msg *schema.Message) *entity.Action {
	if msg == nil {
		return &entity.Action{Type: entity.ActionFinal}
	}
	if len(msg.ToolCalls) == 0 {
		return &entity.Action{Type: entity.ActionFinal, Text: strings.TrimSpace(msg.Content)}
	}
	call := msg.ToolCalls[0]
	return &entity.Action{
		Type:      entity.ActionToolCall,
		ToolName:  call.Function.Name,
		Arguments: decodeArguments(call.Function.Arguments),
	}
}

func decodeArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	args := map[string]any{}
	if err := json.UnmarshalString(raw, &args); err != nil {
		return map[string]any{RawArgumentsKey: raw}
	}
	return args
}
