package agent

import "context"

// ChatLoopResponse is what RunChatLoop returns once the underlying loop
// reaches Done.
type ChatLoopResponse struct {
	Content      string
	Usage        TokenUsage
	AllToolCalls []ToolCall
	Rounds       int
}

// Callbacks are optional hooks the caller may supply to observe a running
// loop without having to fork its own event-consumption loop.
type Callbacks struct {
	OnContent  func(text string)
	OnThinking func(text string)
	OnResults  func(results []ToolResult)
}

// OrchestratorConfig bounds the orchestrator's own behavior, independent of
// the provider's ProviderConfig.
type OrchestratorConfig struct {
	MaxRounds         int // default 10
	LoopDetector      *LoopDetectorConfig
	Registry          *ToolRegistry          // if set, tools come from the registry; Executors/tools args are ignored
	Executors         map[string]ToolExecutor // fallback name->executor map when no registry
	Logger            Logger                  // host diagnostics; nil discards everything
}

// DefaultOrchestratorConfig returns the documented defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{MaxRounds: 10}
}

// RunChatLoop drives provider.ChatLoop to completion: it consumes events,
// dispatches tool calls to user-supplied executors or a registry, applies
// the loop detector, submits results back, enforces a round budget, and
// returns a summary once a Done event is seen.
func RunChatLoop(ctx context.Context, provider Provider, history []Message, tools []Tool, cfg OrchestratorConfig, cb Callbacks) (*ChatLoopResponse, error) {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}

	var detector *LoopDetector
	if cfg.LoopDetector != nil {
		detector = NewLoopDetector(*cfg.LoopDetector)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NoopLogger{}
	}

	effectiveTools := tools
	if cfg.Registry != nil {
		effectiveTools = cfg.Registry.GetToolsForLLM()
	}

	handle, err := provider.ChatLoop(ctx, history, effectiveTools)
	if err != nil {
		return nil, err
	}
	logger = WithFields(logger, F("loop_id", handle.ID), F("model", provider.Model()))
	logger.Info(ctx, "chat loop started", F("tools", len(effectiveTools)))
	DebugLog("chat_loop %s started (model %s, %d tools)", handle.ID, provider.Model(), len(effectiveTools))

	var (
		accumulated  string
		totalUsage   TokenUsage
		allToolCalls []ToolCall
		rounds       int
	)

	for {
		step, ok := handle.Next()
		if !ok {
			return nil, ErrChatLoopClosed
		}

		switch step.Kind {
		case StepContent:
			accumulated += step.Text
			if cb.OnContent != nil {
				cb.OnContent(step.Text)
			}

		case StepThinking:
			if cb.OnThinking != nil {
				cb.OnThinking(step.Text)
			}

		case StepToolCallsRequested:
			rounds++
			logger.Debug(ctx, "tool calls requested", F("round", rounds), F("calls", len(step.ToolCalls)))
			DebugLog("chat_loop round %d: %d tool call(s) requested", rounds, len(step.ToolCalls))
			if rounds > maxRounds {
				handle.Cancel()
				logger.Error(ctx, "round budget exhausted", F("max_rounds", maxRounds))
				return nil, MaxRoundsExceededError(maxRounds)
			}
			allToolCalls = append(allToolCalls, step.ToolCalls...)

			results, pickToolsCall, terminated, termErr := executeRound(ctx, step.ToolCalls, rounds, cfg, detector, logger)
			if terminated {
				handle.Cancel()
				logger.Error(ctx, "chat loop terminated by loop detector", F("err", termErr))
				return nil, termErr
			}
			if cb.OnResults != nil {
				cb.OnResults(results)
			}

			if pickToolsCall && cfg.Registry != nil {
				// Pick-tool handoff: do not submit on the existing handle.
				// Append the assistant tool-call message and results to a
				// local history copy, close the current handle, and start a
				// fresh chat_loop with the registry's refreshed tool list.
				handle.Cancel()
				logger.Info(ctx, "pick-tools handoff, starting fresh loop")

				history = appendToolTurn(history, step.ToolCalls, step.PartialContent, results)
				effectiveTools = cfg.Registry.GetToolsForLLM()

				handle, err = provider.ChatLoop(ctx, history, effectiveTools)
				if err != nil {
					return nil, err
				}
				continue
			}

			if err := handle.SubmitToolResults(results); err != nil {
				return nil, err
			}

		case StepToolResultsReceived:
			// Informational only; no orchestrator action required.

		case StepDone:
			if step.Err != nil {
				logger.Error(ctx, "chat loop failed", F("err", step.Err))
				return nil, step.Err
			}
			totalUsage = totalUsage.Add(step.Usage)
			final := accumulated
			if step.Content != "" {
				final = step.Content
			}
			logger.Info(ctx, "chat loop finished",
				F("rounds", rounds),
				F("tool_calls", len(allToolCalls)),
				F("input_tokens", totalUsage.Input),
				F("output_tokens", totalUsage.Output))
			return &ChatLoopResponse{
				Content:      final,
				Usage:        totalUsage,
				AllToolCalls: allToolCalls,
				Rounds:       rounds,
			}, nil
		}
	}
}

// appendToolTurn rebuilds the pick-tool handoff's local history copy: the
// assistant message carrying the tool calls, followed by one Tool message
// per result, preserving call-id linkage.
func appendToolTurn(history []Message, calls []ToolCall, partialContent string, results []ToolResult) []Message {
	out := make([]Message, len(history), len(history)+1+len(results))
	copy(out, history)
	out = append(out, Message{Role: RoleAssistant, Content: partialContent, ToolCalls: calls})
	for _, r := range results {
		out = append(out, ToolMessage(r.ToolCallID, r.Content))
	}
	return out
}

// executeRound runs the loop detector (if enabled) and dispatches every
// call in calls, preferring the registry's Execute, falling back to the
// caller's executor map, falling back to a synthesized "not registered"
// error result. It reports whether any call was the pick_tools meta-tool,
// and whether the detector demanded termination.
func executeRound(ctx context.Context, calls []ToolCall, round int, cfg OrchestratorConfig, detector *LoopDetector, logger Logger) (results []ToolResult, pickToolsCall bool, terminated bool, termErr error) {
	results = make([]ToolResult, 0, len(calls))

	for i, call := range calls {
		if detector != nil {
			detection := detector.Check(call)
			if detection.Detected {
				switch detection.Action {
				case ActionTerminate:
					DebugLog("loop detector terminating after %d detection(s): %s", detection.DetectionCount, detection.Suggestion)
					return nil, false, true, LoopDetectedError(detection.Suggestion)
				case ActionWarn:
					logger.Warn(ctx, "repetitive tool call",
						F("round", round),
						F("tool", call.Name),
						F("call_id", call.ID),
						F("detections", detection.DetectionCount))
					if i == 0 {
						results = append(results, ToolResult{ToolCallID: call.ID, Content: detection.WarningMessage})
						continue
					}
				}
			}
		}

		if cfg.Registry != nil && IsMetaTool(call.Name) {
			pickToolsCall = true
		}

		logger.Debug(ctx, "executing tool", F("round", round), F("tool", call.Name), F("call_id", call.ID))
		result := executeOne(call, cfg)
		if result.IsError {
			logger.Warn(ctx, "tool returned error result", F("tool", call.Name), F("call_id", call.ID))
		}
		results = append(results, result)
	}
	return results, pickToolsCall, false, nil
}

func executeOne(call ToolCall, cfg OrchestratorConfig) ToolResult {
	if cfg.Registry != nil {
		return cfg.Registry.Execute(call)
	}
	if exec, ok := cfg.Executors[call.Name]; ok {
		content, err := exec(call)
		if err != nil {
			return ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
		}
		return ToolResult{ToolCallID: call.ID, Content: content}
	}
	return ToolResult{
		ToolCallID: call.ID,
		Content:    "Error: tool \"" + call.Name + "\" is not registered",
		IsError:    true,
	}
}
