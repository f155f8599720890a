// Package adapters provides the per-vendor provider state machines: one
// goroutine-driven producer task per chat_loop, translating each vendor's
// wire protocol into the uniform agent.LoopStep event sequence.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/taipm/go-agent-runtime/agent"
)

// supportedOpenAIPrefixes gates which model strings the adapter will
// accept; everything else is rejected at construction time.
var supportedOpenAIPrefixes = []string{"gpt-5", "o1", "gpt-4o"}

// OpenAIAdapter drives OpenAI's /chat/completions streaming protocol. It
// owns its config/state/history under a single lock; every exported method
// is safe to call concurrently from any goroutine.
type OpenAIAdapter struct {
	client *openai.Client
	model  string

	mu      sync.RWMutex
	config  agent.ProviderConfig
	state   agent.ProviderState
	history []agent.Message

	// compacted holds opaque items from the last Compact response; they are
	// carried verbatim into the next compaction request.
	compacted []json.RawMessage
}

// NewOpenAIAdapter creates an adapter for OpenAI or an OpenAI-compatible API
// (baseURL empty selects api.openai.com). It rejects model strings that
// don't begin with a supported prefix.
func NewOpenAIAdapter(model, apiKey, baseURL string) (*OpenAIAdapter, error) {
	if !isSupportedOpenAIModel(model) {
		return nil, agent.ConfigError(fmt.Sprintf("unsupported OpenAI model %q (must start with gpt-5, o1, or gpt-4o)", model))
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIAdapter{
		client: &client,
		model:  model,
		config: agent.DefaultProviderConfig(),
		state:  agent.ProviderState{Metadata: map[string]interface{}{}},
	}, nil
}

func isSupportedOpenAIModel(model string) bool {
	for _, prefix := range supportedOpenAIPrefixes {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// Model returns the model identifier this adapter was created for.
func (a *OpenAIAdapter) Model() string { return a.model }

// PromptCache is not supported by the chat-completions surface; OpenAI
// manages prompt caching automatically.
func (a *OpenAIAdapter) PromptCache(prompt string) error {
	return agent.ErrCachingNotSupported
}

func (a *OpenAIAdapter) State() agent.ProviderState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *OpenAIAdapter) Config() agent.ProviderConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *OpenAIAdapter) UpdateConfig(mutator func(*agent.ProviderConfig)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mutator(&a.config)
}

func (a *OpenAIAdapter) GetHistory() []agent.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]agent.Message, len(a.history))
	copy(out, a.history)
	return out
}

// Chat is the convenience one-shot stream: no tool calling, just text
// chunks and a terminal Done carrying usage.
func (a *OpenAIAdapter) Chat(ctx context.Context, prompt string) (<-chan agent.LoopStep, error) {
	out := make(chan agent.LoopStep, 8)
	cfg := a.Config()

	params := a.buildParams([]agent.Message{agent.User(prompt)}, nil, cfg)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	go func() {
		defer close(out)
		var content string
		var usage agent.TokenUsage
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				if delta := chunk.Choices[0].Delta.Content; delta != "" {
					content += delta
					out <- agent.ContentStep(delta)
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = agent.TokenUsage{
					Input:  int(chunk.Usage.PromptTokens),
					Output: int(chunk.Usage.CompletionTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- agent.ErrorStep(convertOpenAIError(err))
			return
		}
		out <- agent.DoneStep(content, agent.FinishReason{Kind: agent.FinishStop}, usage, nil)
	}()

	return out, nil
}

// ChatLoop spins up the producer goroutine and returns a handle. Each loop
// iteration is one HTTP round: prune, translate, POST+stream, decode,
// suspend-on-tool-calls, resume.
func (a *OpenAIAdapter) ChatLoop(ctx context.Context, history []agent.Message, tools []agent.Tool) (*agent.LoopHandle, error) {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan agent.LoopStep, 16)
	results := make(chan agent.ToolResultSubmission, 1)

	localHistory := make([]agent.Message, len(history))
	copy(localHistory, history)

	go a.runProducer(ctx, localHistory, tools, events, results)

	return wireHandle(events, results, cancel), nil
}

func (a *OpenAIAdapter) runProducer(ctx context.Context, history []agent.Message, tools []agent.Tool, events chan<- agent.LoopStep, results <-chan agent.ToolResultSubmission) {
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
		stream := a.client.Chat.Completions.NewStreaming(ctx, params)

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
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				if chunk.Usage.TotalTokens > 0 {
					roundUsage = agent.TokenUsage{
						Input:  int(chunk.Usage.PromptTokens),
						Output: int(chunk.Usage.CompletionTokens),
						Cached: int(chunk.Usage.PromptTokensDetails.CachedTokens),
					}
				}
				continue
			}

			choice := chunk.Choices[0]
			if delta := choice.Delta.Content; delta != "" {
				roundContent += delta
				if !trySend(ctx, events, agent.ContentStep(delta)) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				sawToolCalls = true
				id := tc.ID
				if id == "" {
					// Subsequent deltas supply only the index; resolve it
					// through the side map the first delta populated.
					id = indexToID[tc.Index]
				} else {
					indexToID[tc.Index] = id
				}

				var namePtr *string
				if tc.Function.Name != "" {
					name := tc.Function.Name
					namePtr = &name
				}
				var argsPtr *string
				if tc.Function.Arguments != "" {
					args := tc.Function.Arguments
					argsPtr = &args
				}
				assembler.ProcessDelta(id, namePtr, argsPtr)
			}

			if choice.FinishReason != "" {
				finishReason = convertOpenAIFinishReason(string(choice.FinishReason))
			}
		}

		if err := stream.Err(); err != nil {
			sendTerminalError(ctx, events, convertOpenAIError(err))
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

func (a *OpenAIAdapter) writeHistory(history []agent.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = history
}

func (a *OpenAIAdapter) buildParams(history []agent.Message, tools []agent.Tool, cfg agent.ProviderConfig) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: convertMessagesToOpenAI(history, cfg.SystemPrompt),
	}

	if cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(cfg.MaxTokens))
	}
	if len(tools) > 0 {
		params.Tools = convertToolsToOpenAI(tools)
		// Temperature is suppressed on vendors that forbid it alongside tools.
	} else {
		params.Temperature = openai.Float(cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = openai.Float(*cfg.TopP)
	}
	if len(cfg.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSequences}
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	return params
}

func convertMessagesToOpenAI(history []agent.Message, systemPrompt string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case agent.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case agent.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case agent.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				asst.Content.OfString = openai.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case agent.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return out
}

func convertToolsToOpenAI(tools []agent.Tool) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		})
	}
	return out
}

// convertOpenAIError maps SDK failures onto the runtime's error kinds:
// 401 -> authentication, 429 -> rate limit, other HTTP statuses -> ApiError,
// everything else -> network.
func convertOpenAIError(err error) error {
	var apierr *openai.Error
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

func convertOpenAIFinishReason(reason string) agent.FinishReason {
	switch reason {
	case "stop":
		return agent.FinishReason{Kind: agent.FinishStop}
	case "length":
		return agent.FinishReason{Kind: agent.FinishLength}
	case "tool_calls":
		return agent.FinishReason{Kind: agent.FinishToolCalls}
	case "content_filter":
		return agent.FinishReason{Kind: agent.FinishContentFilter}
	default:
		return agent.FinishReason{Kind: agent.FinishOther, Other: reason}
	}
}

// trySend delivers step unless ctx is already cancelled (handle.Cancel'd);
// it reports whether the send happened.
func trySend(ctx context.Context, events chan<- agent.LoopStep, step agent.LoopStep) bool {
	select {
	case events <- step:
		return true
	case <-ctx.Done():
		return false
	}
}

// sendTerminalError delivers a producer failure as the stream's single
// terminal item, preserving the typed error for errors.Is consumers.
func sendTerminalError(ctx context.Context, events chan<- agent.LoopStep, err error) {
	trySend(ctx, events, agent.ErrorStep(err))
}

// wireHandle is shared by all three adapters to build the consumer-facing handle.
func wireHandle(events <-chan agent.LoopStep, results chan agent.ToolResultSubmission, cancel context.CancelFunc) *agent.LoopHandle {
	return agent.NewLoopHandleForAdapters(events, results, cancel)
}
