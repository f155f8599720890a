package adapters

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/taipm/go-agent-runtime/agent"
)

func TestNewAnthropicAdapter_RejectsUnsupportedModel(t *testing.T) {
	_, err := NewAnthropicAdapter("gpt-4o", "key")
	if !errors.Is(err, agent.ErrConfigError) {
		t.Fatalf("expected ErrConfigError, got %v", err)
	}
}

func TestNewAnthropicAdapter_AcceptsClaudePrefix(t *testing.T) {
	for _, model := range []string{"claude-sonnet-4-5", "claude-3-5-haiku-latest", "claude-opus-4-1"} {
		if _, err := NewAnthropicAdapter(model, "key"); err != nil {
			t.Errorf("model %q unexpectedly rejected: %v", model, err)
		}
	}
}

func TestAnthropicAdapter_PromptCacheNotSupported(t *testing.T) {
	a, _ := NewAnthropicAdapter("claude-sonnet-4-5", "key")
	if err := a.PromptCache("pinned"); !errors.Is(err, agent.ErrCachingNotSupported) {
		t.Fatalf("expected ErrCachingNotSupported, got %v", err)
	}
}

func TestAnthropicBuildParams_LiftsSystemMessages(t *testing.T) {
	a, _ := NewAnthropicAdapter("claude-sonnet-4-5", "key")
	cfg := agent.DefaultProviderConfig()
	cfg.SystemPrompt = "be terse"

	history := []agent.Message{
		agent.System("extra instruction"),
		agent.User("hi"),
	}
	params := a.buildParams(history, nil, cfg)

	if len(params.System) != 2 {
		t.Fatalf("expected 2 system blocks, got %d", len(params.System))
	}
	if params.System[0].Text != "be terse" || params.System[1].Text != "extra instruction" {
		t.Errorf("unexpected system blocks: %+v", params.System)
	}
	if len(params.Messages) != 1 {
		t.Fatalf("system messages must not appear in the conversation, got %d messages", len(params.Messages))
	}
}

func TestAnthropicBuildParams_MergesContiguousToolResults(t *testing.T) {
	a, _ := NewAnthropicAdapter("claude-sonnet-4-5", "key")
	cfg := agent.DefaultProviderConfig()

	history := []agent.Message{
		agent.User("do two things"),
		{Role: agent.RoleAssistant, ToolCalls: []agent.ToolCall{
			{ID: "c1", Name: "alpha", Arguments: json.RawMessage(`{}`)},
			{ID: "c2", Name: "beta", Arguments: json.RawMessage(`{}`)},
		}},
		agent.ToolMessage("c1", "first"),
		agent.ToolMessage("c2", "second"),
	}
	params := a.buildParams(history, nil, cfg)

	if len(params.Messages) != 3 {
		t.Fatalf("expected user + assistant + merged tool-result message, got %d", len(params.Messages))
	}
	results := params.Messages[2]
	if string(results.Role) != "user" {
		t.Errorf("tool results must travel as a user message, got role %q", results.Role)
	}
	if len(results.Content) != 2 {
		t.Errorf("expected 2 tool_result blocks in one message, got %d", len(results.Content))
	}
}

func TestAnthropicBuildParams_ToolUseBlocksOnAssistant(t *testing.T) {
	a, _ := NewAnthropicAdapter("claude-sonnet-4-5", "key")
	cfg := agent.DefaultProviderConfig()

	history := []agent.Message{
		{Role: agent.RoleAssistant, Content: "let me check", ToolCalls: []agent.ToolCall{
			{ID: "c1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)},
		}},
	}
	params := a.buildParams(history, nil, cfg)

	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
	blocks := params.Messages[0].Content
	if len(blocks) != 2 {
		t.Fatalf("expected text + tool_use blocks, got %d", len(blocks))
	}
	if blocks[1].OfToolUse == nil || blocks[1].OfToolUse.ID != "c1" {
		t.Errorf("expected tool_use block with id c1, got %+v", blocks[1])
	}
}

func TestAnthropicBuildParams_ToolsAndThinking(t *testing.T) {
	a, _ := NewAnthropicAdapter("claude-sonnet-4-5", "key")
	cfg := agent.DefaultProviderConfig()
	cfg.EnableReasoning = true

	tools := []agent.Tool{{Name: "math", Description: "does math", Parameters: map[string]interface{}{"type": "object"}}}
	params := a.buildParams([]agent.Message{agent.User("hi")}, tools, cfg)

	if len(params.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(params.Tools))
	}
	if params.Tools[0].OfTool == nil || params.Tools[0].OfTool.Name != "math" {
		t.Errorf("unexpected tool param: %+v", params.Tools[0])
	}
	if params.Thinking.OfEnabled == nil {
		t.Error("expected thinking to be enabled")
	}
}

func TestConvertAnthropicFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want agent.FinishReasonKind
	}{
		{"end_turn", agent.FinishStop},
		{"stop_sequence", agent.FinishStop},
		{"max_tokens", agent.FinishLength},
		{"tool_use", agent.FinishToolCalls},
		{"pause_turn", agent.FinishOther},
	}
	for _, tt := range tests {
		got := convertAnthropicFinishReason(tt.in)
		if got.Kind != tt.want {
			t.Errorf("convertAnthropicFinishReason(%q).Kind = %v, want %v", tt.in, got.Kind, tt.want)
		}
	}
}
