package adapters

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/taipm/go-agent-runtime/agent"
)

// Responses API shapes for POST {base}/responses/compact. Items travel as
// raw JSON so that opaque "compacted" items returned by the service can be
// carried verbatim into the next compaction request even though they are
// not representable as agent.Message.
type responsesCompactRequest struct {
	Model        string            `json:"model"`
	Input        []json.RawMessage `json:"input"`
	Instructions string            `json:"instructions,omitempty"`
}

type responsesCompactResponse struct {
	Output []json.RawMessage `json:"output"`
}

type responsesMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Compact asks the Responses API to compact history into a shorter
// equivalent. Output items that decode as plain messages become Messages;
// anything else (the service's opaque compacted items) is retained on the
// adapter and prepended to the input of the next Compact call.
func (a *OpenAIAdapter) Compact(ctx context.Context, history []agent.Message) ([]agent.Message, error) {
	cfg := a.Config()

	a.mu.RLock()
	carried := append([]json.RawMessage(nil), a.compacted...)
	a.mu.RUnlock()

	input := make([]json.RawMessage, 0, len(carried)+len(history))
	input = append(input, carried...)
	for _, msg := range history {
		item, err := json.Marshal(responsesMessage{
			Role:    string(msg.Role),
			Content: mustJSONString(msg.Content),
		})
		if err != nil {
			return nil, agent.APIError("encoding compact input: %v", err)
		}
		input = append(input, item)
	}

	req := responsesCompactRequest{
		Model:        a.model,
		Input:        input,
		Instructions: cfg.SystemPrompt,
	}

	var resp responsesCompactResponse
	if err := a.client.Post(ctx, "responses/compact", req, &resp); err != nil {
		return nil, convertOpenAIError(err)
	}

	var messages []agent.Message
	var opaque []json.RawMessage
	for _, item := range resp.Output {
		msg, ok := decodeResponsesItem(item)
		if ok {
			messages = append(messages, msg)
		} else {
			opaque = append(opaque, item)
		}
	}

	a.mu.Lock()
	a.compacted = opaque
	a.mu.Unlock()

	return messages, nil
}

func mustJSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// decodeResponsesItem converts one Responses output item back into a
// Message. Content may be a bare string or an array of input_text /
// output_text parts; items with any other shape (notably type "compacted")
// report ok=false.
func decodeResponsesItem(item json.RawMessage) (agent.Message, bool) {
	var rm responsesMessage
	if err := json.Unmarshal(item, &rm); err != nil || rm.Role == "" {
		return agent.Message{}, false
	}

	var role agent.Role
	switch rm.Role {
	case "system":
		role = agent.RoleSystem
	case "user":
		role = agent.RoleUser
	case "assistant":
		role = agent.RoleAssistant
	case "tool":
		role = agent.RoleTool
	default:
		return agent.Message{}, false
	}

	var text string
	if err := json.Unmarshal(rm.Content, &text); err == nil {
		return agent.Message{Role: role, Content: text}, true
	}

	var parts []responsesContentPart
	if err := json.Unmarshal(rm.Content, &parts); err != nil {
		return agent.Message{}, false
	}
	var joined []string
	for _, p := range parts {
		if p.Type == "input_text" || p.Type == "output_text" {
			joined = append(joined, p.Text)
		}
	}
	return agent.Message{Role: role, Content: strings.Join(joined, "\n")}, true
}
