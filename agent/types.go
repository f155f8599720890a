package agent

import "encoding/json"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn in a conversation. Messages are immutable values;
// history is an ordered sequence owned by the provider adapter between rounds.
type Message struct {
	Role    Role   // System, User, Assistant, or Tool
	Content string

	// ToolCalls is present only when Role == RoleAssistant and the turn
	// requested tools.
	ToolCalls []ToolCall

	// ToolCallID is present only when Role == RoleTool; it names the call
	// this message answers.
	ToolCallID string
}

// System creates a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User creates a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant creates a plain assistant message (no tool calls).
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage creates a message reporting a tool's result back to the model.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// HasToolCalls reports whether this message is an assistant turn that
// requested tool execution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// ToolCall is a single function-call request surfaced by the model.
// Ids are assigned by the provider when the vendor does not supply one
// (the Gemini adapter synthesizes monotonically increasing ids).
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage // structured JSON value
}

// ToolResult answers one ToolCall. ToolCallID must match an earlier
// ToolCall.ID from the same loop.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Tool is the vendor-agnostic description of something a model may call.
// Description is the token-cheap short form shown first; FullDescription is
// disclosed only after the tool has been "picked" (see ToolRegistry).
type Tool struct {
	Name            string
	Description     string
	Parameters      map[string]interface{} // JSON-schema value
	FullDescription string
}

// ToolProvider is the capability every built-in or user-supplied tool
// implements. It is polymorphic over concrete tool implementations; the
// registry and orchestrator only ever see this interface.
type ToolProvider interface {
	Name() string
	Brief() string
	FullDescription() string
	Parameters() map[string]interface{}
	Execute(call ToolCall) (string, error)
}

// ToolExecutor is the simpler function-shaped alternative to ToolProvider,
// used by the orchestrator's direct name->executor map when no registry is
// configured.
type ToolExecutor func(call ToolCall) (string, error)

// StepKind tags the variant carried by a LoopStep.
type StepKind int

const (
	StepThinking StepKind = iota
	StepContent
	StepToolCallsRequested
	StepToolResultsReceived
	StepDone
)

// LoopStep is one event emitted by a provider adapter's producer task.
// Exactly one of the per-kind fields is meaningful, selected by Kind.
//
// A producer-side failure is delivered as a single terminal StepDone whose
// Err carries the typed sentinel-wrapped error; no further events follow.
type LoopStep struct {
	Kind StepKind

	// Err is non-nil only on a terminal StepDone that reports a producer
	// failure (transport, vendor, or decode error).
	Err error

	// StepThinking / StepContent
	Text string

	// StepToolCallsRequested
	ToolCalls      []ToolCall
	PartialContent string

	// StepToolResultsReceived
	ResultCount int

	// StepDone
	Content       string
	FinishReason  FinishReason
	Usage         TokenUsage
	AllToolCalls  []ToolCall
}

// Thinking builds a StepThinking LoopStep.
func Thinking(text string) LoopStep { return LoopStep{Kind: StepThinking, Text: text} }

// ContentStep builds a StepContent LoopStep.
func ContentStep(text string) LoopStep { return LoopStep{Kind: StepContent, Text: text} }

// ToolCallsRequestedStep builds a StepToolCallsRequested LoopStep.
func ToolCallsRequestedStep(calls []ToolCall, partial string) LoopStep {
	return LoopStep{Kind: StepToolCallsRequested, ToolCalls: calls, PartialContent: partial}
}

// ToolResultsReceivedStep builds a StepToolResultsReceived LoopStep.
func ToolResultsReceivedStep(count int) LoopStep {
	return LoopStep{Kind: StepToolResultsReceived, ResultCount: count}
}

// DoneStep builds the terminal StepDone LoopStep.
func DoneStep(content string, reason FinishReason, usage TokenUsage, allCalls []ToolCall) LoopStep {
	return LoopStep{Kind: StepDone, Content: content, FinishReason: reason, Usage: usage, AllToolCalls: allCalls}
}

// ErrorStep builds the terminal StepDone LoopStep reporting a producer-side
// failure. err should wrap one of the sentinel error kinds so consumers can
// branch with errors.Is.
func ErrorStep(err error) LoopStep {
	return LoopStep{
		Kind:         StepDone,
		Err:          err,
		FinishReason: FinishReason{Kind: FinishOther, Other: err.Error()},
	}
}

// FinishReason explains why a round (or a whole loop) stopped producing tokens.
type FinishReason struct {
	Kind  FinishReasonKind
	Other string // populated only when Kind == FinishOther
}

type FinishReasonKind int

const (
	FinishStop FinishReasonKind = iota
	FinishLength
	FinishToolCalls
	FinishContentFilter
	FinishOther
)

func (f FinishReason) String() string {
	switch f.Kind {
	case FinishStop:
		return "stop"
	case FinishLength:
		return "length"
	case FinishToolCalls:
		return "tool_calls"
	case FinishContentFilter:
		return "content_filter"
	default:
		return "other(" + f.Other + ")"
	}
}

// TokenUsage carries token accounting for one round or a whole loop.
type TokenUsage struct {
	Input  int
	Output int
	Cached int
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{Input: u.Input + o.Input, Output: u.Output + o.Output, Cached: u.Cached + o.Cached}
}

// ProviderConfig holds the recognized tuning knobs for a chat_loop / chat call.
// Zero-value ProviderConfig is not valid on its own; use DefaultProviderConfig.
type ProviderConfig struct {
	Temperature     float64 // default 1.0; suppressed on vendors that forbid it alongside tools
	MaxTokens       int     // default 40960
	SystemPrompt    string  // prepended as a System message, or lifted into the vendor's system field
	MaxToolTurns    *int    // pruning bound; nil or 0 disables pruning
	EnableReasoning bool    // request thinking tokens when the vendor supports it
	TopP            *float64
	TopK            *int
	StopSequences   []string
	ExtraOptions    map[string]interface{}
}

// DefaultProviderConfig returns the documented defaults.
func DefaultProviderConfig() ProviderConfig {
	maxTurns := 3
	return ProviderConfig{
		Temperature:  1.0,
		MaxTokens:    40960,
		MaxToolTurns: &maxTurns,
	}
}

// ProviderState is the running accounting an adapter keeps across rounds.
type ProviderState struct {
	InputTokens       int
	OutputTokens      int
	CachedTokens      int
	RequestCount      int
	LastRequestUnixNs int64
	ConversationTurns int
	Metadata          map[string]interface{}
}
