package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/taipm/go-agent-runtime/agent"
	"github.com/taipm/go-agent-runtime/agent/adapters"
	"github.com/taipm/go-agent-runtime/agent/tools"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	ctx := context.Background()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	provider, err := adapters.NewOpenAIAdapter("gpt-4o-mini", apiKey, "")
	if err != nil {
		log.Fatalf("creating provider: %v", err)
	}

	// Example 1: One-shot streaming chat
	fmt.Println("=== Example 1: Streaming Chat ===")
	stream, err := provider.Chat(ctx, "What is the capital of Vietnam?")
	if err != nil {
		log.Printf("Error: %v", err)
	} else {
		for step := range stream {
			switch step.Kind {
			case agent.StepContent:
				fmt.Print(step.Text)
			case agent.StepDone:
				fmt.Printf("\n(usage: %d in / %d out)\n\n", step.Usage.Input, step.Usage.Output)
			}
		}
	}

	// Example 2: Cached one-shot chat — the second identical prompt is
	// served from the in-memory cache without an HTTP round.
	fmt.Println("=== Example 2: Response Cache ===")
	cached := agent.WithCache(provider, agent.NewMemoryCache(100, 10*time.Minute), 0)
	for i := 0; i < 2; i++ {
		stream, err := cached.Chat(ctx, "Name one prime number below ten.")
		if err != nil {
			log.Printf("Error: %v", err)
			continue
		}
		for step := range stream {
			if step.Kind == agent.StepDone {
				fmt.Printf("answer %d: %s\n", i+1, step.Content)
			}
		}
	}
	fmt.Println()

	// Example 3: Tool-calling loop with registry, lazy disclosure, and
	// loop detection. The model first sees brief tool descriptions plus a
	// pick_tools meta-tool; full schemas are disclosed once picked.
	fmt.Println("=== Example 3: Agent Loop with Tools ===")
	registry := agent.NewToolRegistry()
	registry.RegisterAll(tools.NewMathTool(), tools.NewDateTimeTool(), tools.NewHTTPTool())

	detectorCfg := agent.DefaultLoopDetectorConfig()
	resp, err := agent.RunChatLoop(ctx, provider, []agent.Message{
		agent.User("What is 37 * 43, and what day of the week is it today?"),
	}, nil, agent.OrchestratorConfig{
		MaxRounds:    10,
		Registry:     registry,
		LoopDetector: &detectorCfg,
	}, agent.Callbacks{
		OnContent: func(text string) { fmt.Print(text) },
		OnResults: func(results []agent.ToolResult) {
			for _, r := range results {
				fmt.Printf("\n[tool %s] %.80s\n", r.ToolCallID, r.Content)
			}
		},
	})
	if err != nil {
		log.Printf("Error: %v", err)
	} else {
		fmt.Printf("\n\nFinished in %d round(s), %d tool call(s), usage %d in / %d out\n",
			resp.Rounds, len(resp.AllToolCalls), resp.Usage.Input, resp.Usage.Output)
	}

	// Example 4: Server-side history compaction via the Responses API.
	fmt.Println("\n=== Example 4: History Compaction ===")
	history := provider.GetHistory()
	if len(history) > 0 {
		compacted, err := provider.Compact(ctx, history)
		if err != nil {
			log.Printf("Error: %v", err)
		} else {
			fmt.Printf("history compacted: %d -> %d messages\n", len(history), len(compacted))
		}
	}
}
