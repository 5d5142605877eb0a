package agent

import (
	"encoding/json"
	"fmt"
)

// ActionEnvelope is the action response expected from the model on every
// turn: call a tool or finish with a final answer.
type ActionEnvelope struct {
	Action    string          `json:"action,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	Final     json.RawMessage `json:"final,omitempty"`
}

// ParseAction parses the model response into an action envelope. Responses
// without any envelope fields are treated as a direct final output, which is
// the safest fallback for models that skip the protocol.
func ParseAction(raw json.RawMessage) (ActionEnvelope, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ActionEnvelope{}, err
	}
	if env.Action == "" && env.ToolName == "" && len(env.Final) == 0 {
		env.Action = "final"
		env.Final = raw
	}
	if env.Action == "" {
		switch {
		case len(env.Final) > 0:
			env.Action = "final"
		case env.ToolName != "" || len(env.ToolInput) > 0:
			env.Action = "tool"
		}
	}
	switch env.Action {
	case "final", "tool":
		return env, nil
	default:
		return ActionEnvelope{}, fmt.Errorf("agent: invalid action %q", env.Action)
	}
}

// FinalText extracts the assistant's text from a final payload: a JSON
// string, an object with a message/response field, or the raw JSON as-is.
func FinalText(final json.RawMessage) string {
	var s string
	if err := json.Unmarshal(final, &s); err == nil {
		return s
	}
	var obj struct {
		Message  string `json:"message"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(final, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Response != "" {
			return obj.Response
		}
	}
	return string(final)
}
