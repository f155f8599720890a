package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taipm/go-agent-runtime/agent"
)

// supportedGeminiModels is a fixed enumerated list: unlike
// OpenAI/Anthropic's prefix gating, Gemini only accepts these exact ids.
var supportedGeminiModels = map[string]bool{
	"gemini-3-pro-preview":   true,
	"gemini-3-flash-preview": true,
}

// geminiToolCallMeta is the side-map entry the adapter keeps per synthesized
// call id so a later round can re-attach Gemini's opaque thought_signature
// and recover the original function name for functionResponse parts.
type geminiToolCallMeta struct {
	signature    string
	functionName string
}

// GeminiAdapter drives Gemini's streamGenerateContent SSE protocol over
// net/http. The genai SDK client does not surface thoughtSignature on
// streamed function-call parts, and those signatures must round-trip
// verbatim, so this adapter speaks the documented JSON wire shape directly.
type GeminiAdapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string

	mu      sync.RWMutex
	config  agent.ProviderConfig
	state   agent.ProviderState
	history []agent.Message

	toolCallMeta sync.Map // id string -> geminiToolCallMeta
	callCounter  atomic.Uint64
}

// NewGeminiAdapter creates an adapter for one of the fixed supported Gemini
// 3 preview model identifiers.
func NewGeminiAdapter(model, apiKey, baseURL string) (*GeminiAdapter, error) {
	if !supportedGeminiModels[model] {
		return nil, agent.ConfigError(fmt.Sprintf("unsupported Gemini model %q", model))
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiAdapter{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		config:     agent.DefaultProviderConfig(),
		state:      agent.ProviderState{Metadata: map[string]interface{}{}},
	}, nil
}

// Model returns the model identifier this adapter was created for.
func (a *GeminiAdapter) Model() string { return a.model }

// PromptCache is not wired for Gemini; cachedContents is a separate API
// surface this adapter does not speak.
func (a *GeminiAdapter) PromptCache(prompt string) error {
	return agent.ErrCachingNotSupported
}

func (a *GeminiAdapter) State() agent.ProviderState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *GeminiAdapter) Config() agent.ProviderConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *GeminiAdapter) UpdateConfig(mutator func(*agent.ProviderConfig)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mutator(&a.config)
}

func (a *GeminiAdapter) GetHistory() []agent.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]agent.Message, len(a.history))
	copy(out, a.history)
	return out
}

func (a *GeminiAdapter) nextCallID() string {
	return fmt.Sprintf("gemini_call_%d", a.callCounter.Add(1))
}

func (a *GeminiAdapter) registerToolCall(id, signature, functionName string) {
	a.toolCallMeta.Store(id, geminiToolCallMeta{signature: signature, functionName: functionName})
}

func (a *GeminiAdapter) toolMeta(id string) (geminiToolCallMeta, bool) {
	v, ok := a.toolCallMeta.Load(id)
	if !ok {
		return geminiToolCallMeta{}, false
	}
	return v.(geminiToolCallMeta), true
}

func (a *GeminiAdapter) Chat(ctx context.Context, prompt string) (<-chan agent.LoopStep, error) {
	out := make(chan agent.LoopStep, 8)
	cfg := a.Config()
	body := a.buildRequestBody([]agent.Message{agent.User(prompt)}, nil, cfg)

	resp, err := a.post(ctx, body)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(out)
		defer resp.Body.Close()
		var content string
		var usage agent.TokenUsage
		err := decodeGeminiSSE(resp.Body, func(gr geminiGenerateContentResponse) {
			text, _ := a.parseCandidateParts(gr, func(delta string) {
				content += delta
				out <- agent.ContentStep(delta)
			})
			_ = text
			usage = usage.Add(convertGeminiUsage(gr.UsageMetadata))
		})
		if err != nil {
			out <- agent.ErrorStep(err)
			return
		}
		out <- agent.DoneStep(content, agent.FinishReason{Kind: agent.FinishStop}, usage, nil)
	}()

	return out, nil
}

func (a *GeminiAdapter) ChatLoop(ctx context.Context, history []agent.Message, tools []agent.Tool) (*agent.LoopHandle, error) {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan agent.LoopStep, 16)
	results := make(chan agent.ToolResultSubmission, 1)

	localHistory := make([]agent.Message, len(history))
	copy(localHistory, history)

	go a.runProducer(ctx, localHistory, tools, events, results)

	return wireHandle(events, results, cancel), nil
}

func (a *GeminiAdapter) runProducer(ctx context.Context, history []agent.Message, tools []agent.Tool, events chan<- agent.LoopStep, results <-chan agent.ToolResultSubmission) {
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

		body := a.buildRequestBody(history, tools, cfg)
		resp, err := a.post(ctx, body)
		if err != nil {
			sendTerminalError(ctx, events, err)
			return
		}

		a.mu.Lock()
		a.state.RequestCount++
		a.state.LastRequestUnixNs = time.Now().UnixNano()
		a.mu.Unlock()

		var (
			roundContent string
			roundUsage   agent.TokenUsage
			calls        []agent.ToolCall
			finishReason = agent.FinishReason{Kind: agent.FinishStop}
		)

		decodeErr := decodeGeminiSSE(resp.Body, func(gr geminiGenerateContentResponse) {
			_, newCalls := a.parseCandidateParts(gr, func(delta string) {
				roundContent += delta
				trySend(ctx, events, agent.ContentStep(delta))
			})
			calls = append(calls, newCalls...)
			roundUsage = roundUsage.Add(convertGeminiUsage(gr.UsageMetadata))
			for _, cand := range gr.Candidates {
				if cand.FinishReason != "" {
					finishReason = convertGeminiFinishReason(cand.FinishReason)
				}
			}
		})
		resp.Body.Close()
		if decodeErr != nil {
			sendTerminalError(ctx, events, decodeErr)
			return
		}

		a.mu.Lock()
		a.state.InputTokens += roundUsage.Input
		a.state.OutputTokens += roundUsage.Output
		a.state.CachedTokens += roundUsage.Cached
		a.state.ConversationTurns++
		a.mu.Unlock()
		totalUsage = totalUsage.Add(roundUsage)

		// Gemini sends each functionCall atomically inside one part, so no
		// argument assembly is needed: once the stream has ended, any
		// functionCall seen makes this a tool round, whatever the finish reason.
		if len(calls) > 0 {
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
			trySend(ctx, events, agent.ToolResultsReceivedStep(len(submission.Results)))
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

func (a *GeminiAdapter) writeHistory(history []agent.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = history
}

// --- wire DTOs ---

type geminiPart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *geminiFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResp `json:"functionResponse,omitempty"`
	Thought          bool            `json:"thought,omitempty"`
	ThoughtSignature string          `json:"thoughtSignature,omitempty"`
}

type geminiFuncCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiFuncResp struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type geminiGenerationConfig struct {
	Temperature     float64                `json:"temperature"`
	MaxOutputTokens int                    `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  map[string]interface{} `json:"thinkingConfig,omitempty"`
}

type geminiRequestBody struct {
	Contents          []geminiContent        `json:"contents"`
	Tools             []geminiTool           `json:"tools,omitempty"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	ToolConfig        map[string]interface{} `json:"toolConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
}

type geminiGenerateContentResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

func (a *GeminiAdapter) buildRequestBody(history []agent.Message, tools []agent.Tool, cfg agent.ProviderConfig) geminiRequestBody {
	body := geminiRequestBody{
		GenerationConfig: geminiGenerationConfig{
			// Gemini 3 requires temperature 1.0; the knob is not forwarded.
			Temperature:     1.0,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}
	if level, ok := cfg.ExtraOptions["thinking_level"]; ok {
		body.GenerationConfig.ThinkingConfig = map[string]interface{}{"thinkingLevel": level}
	}
	if cfg.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: cfg.SystemPrompt}}}
	}
	if len(tools) > 0 {
		body.Tools = []geminiTool{convertToolsToGemini(tools)}
		body.ToolConfig = map[string]interface{}{"functionCallingConfig": map[string]interface{}{"mode": "AUTO"}}
	}

	for _, msg := range history {
		switch msg.Role {
		case agent.RoleSystem:
			if body.SystemInstruction == nil {
				body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
			}
		case agent.RoleUser:
			body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		case agent.RoleAssistant:
			parts := []geminiPart{}
			if msg.Content != "" {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				part := geminiPart{FunctionCall: &geminiFuncCall{Name: tc.Name, Args: tc.Arguments}}
				if meta, ok := a.toolMeta(tc.ID); ok {
					part.ThoughtSignature = meta.signature
				}
				parts = append(parts, part)
			}
			body.Contents = append(body.Contents, geminiContent{Role: "model", Parts: parts})
		case agent.RoleTool:
			name := "tool"
			if meta, ok := a.toolMeta(msg.ToolCallID); ok && meta.functionName != "" {
				name = meta.functionName
			}
			body.Contents = append(body.Contents, geminiContent{Role: "user", Parts: []geminiPart{{
				FunctionResponse: &geminiFuncResp{Name: name, Response: parseGeminiToolResponse(msg.Content)},
			}}})
		}
	}
	return body
}

func parseGeminiToolResponse(content string) json.RawMessage {
	if json.Valid([]byte(content)) {
		return json.RawMessage(content)
	}
	wrapped, _ := json.Marshal(map[string]string{"result": content})
	return wrapped
}

func convertToolsToGemini(tools []agent.Tool) geminiTool {
	decls := make([]geminiFunctionDecl, len(tools))
	for i, t := range tools {
		decls[i] = geminiFunctionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	return geminiTool{FunctionDeclarations: decls}
}

// parseCandidateParts accumulates text via onText and synthesizes a ToolCall
// (with a freshly minted id) for every functionCall part seen, registering
// its thought_signature and function name in the side map for later
// history rebuilds.
func (a *GeminiAdapter) parseCandidateParts(gr geminiGenerateContentResponse, onText func(string)) (string, []agent.ToolCall) {
	var text string
	var calls []agent.ToolCall
	for _, cand := range gr.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				text += part.Text
				onText(part.Text)
			}
			if part.FunctionCall != nil {
				id := a.nextCallID()
				a.registerToolCall(id, part.ThoughtSignature, part.FunctionCall.Name)
				args := part.FunctionCall.Args
				if len(args) == 0 {
					args = json.RawMessage("{}")
				}
				calls = append(calls, agent.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
			}
		}
	}
	return text, calls
}

func convertGeminiFinishReason(reason string) agent.FinishReason {
	switch reason {
	case "STOP":
		return agent.FinishReason{Kind: agent.FinishStop}
	case "MAX_TOKENS":
		return agent.FinishReason{Kind: agent.FinishLength}
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return agent.FinishReason{Kind: agent.FinishContentFilter}
	default:
		return agent.FinishReason{Kind: agent.FinishOther, Other: reason}
	}
}

func convertGeminiUsage(u geminiUsageMetadata) agent.TokenUsage {
	return agent.TokenUsage{Input: u.PromptTokenCount, Output: u.CandidatesTokenCount, Cached: u.CachedContentTokenCount}
}

func (a *GeminiAdapter) post(ctx context.Context, body geminiRequestBody) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrJSONError, err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", a.baseURL, a.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, agent.NetworkError(err)
	}
	req.Header.Set("x-goog-api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, agent.NetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		switch resp.StatusCode {
		case 401, 403:
			return nil, fmt.Errorf("%w: HTTP %d: %s", agent.ErrAuthenticationFailed, resp.StatusCode, buf.String())
		case 429:
			return nil, fmt.Errorf("%w: HTTP %d: %s", agent.ErrRateLimitExceeded, resp.StatusCode, buf.String())
		default:
			return nil, agent.APIError("HTTP %d: %s", resp.StatusCode, buf.String())
		}
	}
	return resp, nil
}

// decodeGeminiSSE reads `data:` lines of JSON (alt=sse framing) and invokes
// onChunk per frame. A malformed frame terminates decoding with an ApiError
// so the producer can surface it as the stream's terminal item.
func decodeGeminiSSE(body io.Reader, onChunk func(geminiGenerateContentResponse)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		var gr geminiGenerateContentResponse
		if err := json.Unmarshal([]byte(data), &gr); err != nil {
			return agent.APIError("parse error: %v", err)
		}
		onChunk(gr)
	}
	if err := scanner.Err(); err != nil {
		return agent.NetworkError(err)
	}
	return nil
}
