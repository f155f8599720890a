package agent

import "testing"

func TestMessage_HasToolCalls(t *testing.T) {
	plain := Assistant("hello")
	if plain.HasToolCalls() {
		t.Error("plain assistant message should not report HasToolCalls")
	}

	withCalls := Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "x"}}}
	if !withCalls.HasToolCalls() {
		t.Error("assistant message with ToolCalls should report HasToolCalls")
	}

	userWithCalls := Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "1", Name: "x"}}}
	if userWithCalls.HasToolCalls() {
		t.Error("HasToolCalls must require RoleAssistant regardless of ToolCalls content")
	}
}

func TestMessageConstructors(t *testing.T) {
	if m := System("sys"); m.Role != RoleSystem || m.Content != "sys" {
		t.Errorf("System() = %+v", m)
	}
	if m := User("hi"); m.Role != RoleUser || m.Content != "hi" {
		t.Errorf("User() = %+v", m)
	}
	if m := Assistant("reply"); m.Role != RoleAssistant || m.Content != "reply" {
		t.Errorf("Assistant() = %+v", m)
	}
	if m := ToolMessage("call_1", "result"); m.Role != RoleTool || m.ToolCallID != "call_1" || m.Content != "result" {
		t.Errorf("ToolMessage() = %+v", m)
	}
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{Input: 10, Output: 5, Cached: 2}
	b := TokenUsage{Input: 3, Output: 1, Cached: 0}
	sum := a.Add(b)
	if sum.Input != 13 || sum.Output != 6 || sum.Cached != 2 {
		t.Errorf("Add() = %+v, want {13 6 2}", sum)
	}
}

func TestFinishReason_String(t *testing.T) {
	tests := []struct {
		reason FinishReason
		want   string
	}{
		{FinishReason{Kind: FinishStop}, "stop"},
		{FinishReason{Kind: FinishLength}, "length"},
		{FinishReason{Kind: FinishToolCalls}, "tool_calls"},
		{FinishReason{Kind: FinishContentFilter}, "content_filter"},
		{FinishReason{Kind: FinishOther, Other: "safety"}, "other(safety)"},
	}
	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDefaultProviderConfig(t *testing.T) {
	cfg := DefaultProviderConfig()
	if cfg.Temperature != 1.0 {
		t.Errorf("Temperature = %v, want 1.0", cfg.Temperature)
	}
	if cfg.MaxTokens != 40960 {
		t.Errorf("MaxTokens = %v, want 40960", cfg.MaxTokens)
	}
	if cfg.MaxToolTurns == nil || *cfg.MaxToolTurns != 3 {
		t.Errorf("MaxToolTurns = %+v, want 3", cfg.MaxToolTurns)
	}
}

func TestLoopStepConstructors(t *testing.T) {
	if s := Thinking("t"); s.Kind != StepThinking || s.Text != "t" {
		t.Errorf("Thinking() = %+v", s)
	}
	if s := ContentStep("c"); s.Kind != StepContent || s.Text != "c" {
		t.Errorf("ContentStep() = %+v", s)
	}
	calls := []ToolCall{{ID: "1", Name: "x"}}
	if s := ToolCallsRequestedStep(calls, "partial"); s.Kind != StepToolCallsRequested || len(s.ToolCalls) != 1 || s.PartialContent != "partial" {
		t.Errorf("ToolCallsRequestedStep() = %+v", s)
	}
	if s := ToolResultsReceivedStep(3); s.Kind != StepToolResultsReceived || s.ResultCount != 3 {
		t.Errorf("ToolResultsReceivedStep() = %+v", s)
	}
	if s := DoneStep("final", FinishReason{Kind: FinishStop}, TokenUsage{Input: 1}, calls); s.Kind != StepDone || s.Content != "final" {
		t.Errorf("DoneStep() = %+v", s)
	}
}
