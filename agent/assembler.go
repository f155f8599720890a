package agent

import (
	"encoding/json"
	"fmt"
)

// toolCallBuilder accumulates one in-flight tool call: the name (set once,
// first sighting wins) and a growing argument-string buffer.
type toolCallBuilder struct {
	id   string
	name string
	args string
}

// ToolCallAssembler folds a stream of fragmentary deltas into complete
// ToolCalls. OpenAI and Anthropic stream argument JSON a few bytes at a
// time; Gemini emits whole function calls and never drives this type (see
// the Gemini adapter's parseCandidateParts instead).
type ToolCallAssembler struct {
	order   []string // call ids in first-sighting order
	entries map[string]*toolCallBuilder
}

// NewToolCallAssembler returns an empty assembler.
func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{entries: make(map[string]*toolCallBuilder)}
}

// ProcessDelta folds one fragment into the entry for id, creating it on
// first sight. name is set only if this entry has no name yet. argsFragment,
// if non-empty, is appended to the entry's argument buffer.
func (a *ToolCallAssembler) ProcessDelta(id string, name *string, argsFragment *string) {
	entry, ok := a.entries[id]
	if !ok {
		entry = &toolCallBuilder{id: id}
		a.entries[id] = entry
		a.order = append(a.order, id)
	}
	if name != nil && entry.name == "" {
		entry.name = *name
	}
	if argsFragment != nil {
		entry.args += *argsFragment
	}
}

// Finalize parses each entry's accumulated argument buffer as JSON and
// returns the complete ToolCalls in insertion order. An empty argument
// buffer is treated as "{}" since some vendors omit it for no-arg calls.
func (a *ToolCallAssembler) Finalize() ([]ToolCall, error) {
	calls := make([]ToolCall, 0, len(a.order))
	for _, id := range a.order {
		entry := a.entries[id]
		raw := entry.args
		if raw == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("%w: tool call %q (%s) has malformed argument JSON: %q", ErrJSONError, id, entry.name, raw)
		}
		calls = append(calls, ToolCall{ID: id, Name: entry.name, Arguments: json.RawMessage(raw)})
	}
	return calls, nil
}

// Reset clears the assembler for reuse across rounds.
func (a *ToolCallAssembler) Reset() {
	a.order = nil
	a.entries = make(map[string]*toolCallBuilder)
}
