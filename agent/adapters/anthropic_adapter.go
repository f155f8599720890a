package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/taipm/go-agent-runtime/agent"
)

// AnthropicAdapter drives Anthropic's Messages streaming protocol through
// github.com/anthropics/anthropic-sdk-go. Tool-use input JSON arrives as
// interleaved input_json_delta fragments inside content blocks, so the
// adapter feeds them through the shared ToolCallAssembler keyed by the
// block's tool_use id.
type AnthropicAdapter struct {
	client sdk.Client
	model  string

	mu      sync.RWMutex
	config  agent.ProviderConfig
	state   agent.ProviderState
	history []agent.Message
}

// NewAnthropicAdapter creates an adapter for a Claude model. Model strings
// must begin with "claude-".
func NewAnthropicAdapter(model, apiKey string) (*AnthropicAdapter, error) {
	if !strings.HasPrefix(model, "claude-") {
		return nil, agent.ConfigError(fmt.Sprintf("unsupported Anthropic model %q (must start with claude-)", model))
	}
	return &AnthropicAdapter{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		config: agent.DefaultProviderConfig(),
		state:  agent.ProviderState{Metadata: map[string]interface{}{}},
	}, nil
}

// Model returns the model identifier this adapter was created for.
func (a *AnthropicAdapter) Model() string { return a.model }

func (a *AnthropicAdapter) State() agent.ProviderState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *AnthropicAdapter) Config() agent.ProviderConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *AnthropicAdapter) UpdateConfig(mutator func(*agent.ProviderConfig)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mutator(&a.config)
}

func (a *AnthropicAdapter) GetHistory() []agent.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]agent.Message, len(a.history))
	copy(out, a.history)
	return out
}

// PromptCache is not wired for Anthropic; explicit cache-control blocks are
// not part of this adapter's request shape.
func (a *AnthropicAdapter) PromptCache(prompt string) error {
	return agent.ErrCachingNotSupported
}

// Chat is the convenience one-shot stream: no tool calling, just text
// chunks and a terminal Done carrying usage.
func (a *AnthropicAdapter) Chat(ctx context.Context, prompt string) (<-chan agent.LoopStep, error) {
	out := make(chan agent.LoopStep, 8)
	cfg := a.Config()
	params := a.buildParams([]agent.Message{agent.User(prompt)}, nil, cfg)
	stream := a.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, convertAnthropicError(err)
	}

	go func() {
		defer close(out)
		var content string
		var usage agent.TokenUsage
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case sdk.MessageStartEvent:
				usage.Input += int(ev.Message.Usage.InputTokens)
				usage.Cached += int(ev.Message.Usage.CacheReadInputTokens + ev.Message.Usage.CacheCreationInputTokens)
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
					content += delta.Text
					out <- agent.ContentStep(delta.Text)
				}
			case sdk.MessageDeltaEvent:
				usage.Output += int(ev.Usage.OutputTokens)
			}
		}
		if err := stream.Err(); err != nil {
			out <- agent.ErrorStep(convertAnthropicError(err))
			return
		}
		out <- agent.DoneStep(content, agent.FinishReason{Kind: agent.FinishStop}, usage, nil)
	}()

	return out, nil
}

// ChatLoop spins up the producer goroutine and returns a handle. Each loop
// iteration is one HTTP round: prune, translate, POST+stream, decode,
// suspend-on-tool-calls, resume.
func (a *AnthropicAdapter) ChatLoop(ctx context.Context, history []agent.Message, tools []agent.Tool) (*agent.LoopHandle, error) {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan agent.LoopStep, 16)
	results := make(chan agent.ToolResultSubmission, 1)

	localHistory := make([]agent.Message, len(history))
	copy(localHistory, history)

	go a.runProducer(ctx, localHistory, tools, events, results)

	return wireHandle(events, results, cancel), nil
}

func (a *AnthropicAdapter) runProducer(ctx context.Context, history []agent.Message, tools []agent.Tool, events chan<- agent.LoopStep, results <-chan agent.ToolResultSubmission) {
	defer close(events)

	var (
		totalUsage   agent.TokenUsage
		allToolCalls []agent.ToolCall
	)

	for {
		cfg := a.Config()
		if cfg.MaxToolTurns != nil && *cfg.MaxToolTurns > 0 {
			history = agent.PruneToolTurns(history, *cfg.MaxToolTurns)
		}

		params := a.buildParams(history, tools, cfg)
		stream := a.client.Messages.NewStreaming(ctx, params)

		a.mu.Lock()
		a.state.RequestCount++
		a.state.LastRequestUnixNs = time.Now().UnixNano()
		a.mu.Unlock()

		assembler := agent.NewToolCallAssembler()
		indexToID := map[int64]string{}
		var roundContent string
		var roundUsage agent.TokenUsage
		var finishReason agent.FinishReason
		sawToolCalls := false

		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case sdk.MessageStartEvent:
				roundUsage.Input += int(ev.Message.Usage.InputTokens)
				roundUsage.Cached += int(ev.Message.Usage.CacheReadInputTokens + ev.Message.Usage.CacheCreationInputTokens)

			case sdk.ContentBlockStartEvent:
				if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
					sawToolCalls = true
					indexToID[ev.Index] = toolUse.ID
					name := toolUse.Name
					assembler.ProcessDelta(toolUse.ID, &name, nil)
				}

			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					if delta.Text == "" {
						continue
					}
					roundContent += delta.Text
					if !trySend(ctx, events, agent.ContentStep(delta.Text)) {
						return
					}
				case sdk.ThinkingDelta:
					if delta.Thinking == "" {
						continue
					}
					if !trySend(ctx, events, agent.Thinking(delta.Thinking)) {
						return
					}
				case sdk.InputJSONDelta:
					if delta.PartialJSON == "" {
						continue
					}
					if id, ok := indexToID[ev.Index]; ok {
						fragment := delta.PartialJSON
						assembler.ProcessDelta(id, nil, &fragment)
					}
				}

			case sdk.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					finishReason = convertAnthropicFinishReason(string(ev.Delta.StopReason))
				}
				roundUsage.Output += int(ev.Usage.OutputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			sendTerminalError(ctx, events, convertAnthropicError(err))
			return
		}

		a.mu.Lock()
		a.state.InputTokens += roundUsage.Input
		a.state.OutputTokens += roundUsage.Output
		a.state.CachedTokens += roundUsage.Cached
		a.state.ConversationTurns++
		a.mu.Unlock()
		totalUsage = totalUsage.Add(roundUsage)

		if sawToolCalls {
			calls, err := assembler.Finalize()
			if err != nil {
				sendTerminalError(ctx, events, err)
				return
			}
			allToolCalls = append(allToolCalls, calls...)
			history = append(history, agent.Message{Role: agent.RoleAssistant, Content: roundContent, ToolCalls: calls})

			if !trySend(ctx, events, agent.ToolCallsRequestedStep(calls, roundContent)) {
				return
			}

			submission, ok := <-results
			if !ok {
				a.writeHistory(history)
				return
			}
			if !trySend(ctx, events, agent.ToolResultsReceivedStep(len(submission.Results))) {
				return
			}
			for _, r := range submission.Results {
				history = append(history, agent.ToolMessage(r.ToolCallID, r.Content))
			}
			continue
		}

		history = append(history, agent.Assistant(roundContent))
		trySend(ctx, events, agent.DoneStep(roundContent, finishReason, totalUsage, allToolCalls))
		a.writeHistory(history)
		return
	}
}

func (a *AnthropicAdapter) writeHistory(history []agent.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = history
}

// buildParams translates the uniform history, tool list, and config into
// sdk.MessageNewParams. System messages are lifted out of the conversation
// into the request's system field, and contiguous Tool messages collapse
// into a single user message of tool_result blocks so each tool_use turn is
// answered by exactly one following message.
func (a *AnthropicAdapter) buildParams(history []agent.Message, tools []agent.Tool, cfg agent.ProviderConfig) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(cfg.MaxTokens),
	}

	var system []sdk.TextBlockParam
	if cfg.SystemPrompt != "" {
		system = append(system, sdk.TextBlockParam{Text: cfg.SystemPrompt})
	}

	i := 0
	for i < len(history) {
		msg := history[i]
		switch msg.Role {
		case agent.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: msg.Content})
			i++
		case agent.RoleUser:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
			i++
		case agent.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(blocks...))
			i++
		case agent.RoleTool:
			var blocks []sdk.ContentBlockParamUnion
			for i < len(history) && history[i].Role == agent.RoleTool {
				blocks = append(blocks, sdk.NewToolResultBlock(history[i].ToolCallID, history[i].Content, false))
				i++
			}
			params.Messages = append(params.Messages, sdk.NewUserMessage(blocks...))
		default:
			i++
		}
	}
	if len(system) > 0 {
		params.System = system
	}

	if len(tools) > 0 {
		params.Tools = convertToolsToAnthropic(tools)
		auto := sdk.ToolChoiceAutoParam{}
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAuto: &auto}
	}
	params.Temperature = sdk.Float(cfg.Temperature)
	if cfg.TopP != nil {
		params.TopP = sdk.Float(*cfg.TopP)
	}
	if cfg.TopK != nil {
		params.TopK = sdk.Int(int64(*cfg.TopK))
	}
	if len(cfg.StopSequences) > 0 {
		params.StopSequences = cfg.StopSequences
	}
	if cfg.EnableReasoning {
		budget := int64(cfg.MaxTokens / 2)
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
	}

	return params
}

func convertToolsToAnthropic(tools []agent.Tool) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := sdk.ToolInputSchemaParam{ExtraFields: t.Parameters}
		u := sdk.ToolUnionParamOfTool(schema, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out
}

func convertAnthropicFinishReason(reason string) agent.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return agent.FinishReason{Kind: agent.FinishStop}
	case "max_tokens":
		return agent.FinishReason{Kind: agent.FinishLength}
	case "tool_use":
		return agent.FinishReason{Kind: agent.FinishToolCalls}
	default:
		return agent.FinishReason{Kind: agent.FinishOther, Other: reason}
	}
}

// convertAnthropicError maps SDK failures onto the runtime's error kinds:
// 401 -> authentication, 429 -> rate limit, other HTTP statuses -> ApiError,
// everything else -> network.
func convertAnthropicError(err error) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401:
			return fmt.Errorf("%w: %v", agent.ErrAuthenticationFailed, err)
		case 429:
			return fmt.Errorf("%w: %v", agent.ErrRateLimitExceeded, err)
		default:
			return agent.APIError("HTTP %d: %s", apierr.StatusCode, apierr.Error())
		}
	}
	return agent.NetworkError(err)
}
