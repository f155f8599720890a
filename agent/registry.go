package agent

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const pickToolsMetaName = "pick_tools"

// ToolRegistry holds a name -> ToolProvider mapping and drives the
// lazy-disclosure protocol: unpicked providers advertise only a brief
// description and an empty parameter schema, conserving prompt tokens,
// until the model either picks them explicitly via the pick_tools meta-tool
// or succeeds at calling them directly.
//
// picked_tools is guarded by the same lock as the tools map so that reads
// inside GetToolsForLLM are always consistent with a concurrent meta-tool
// execution.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]ToolProvider
	picked  map[string]bool
	order   []string // registration order, for stable GetToolsForLLM output
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:  make(map[string]ToolProvider),
		picked: make(map[string]bool),
	}
}

// Register installs a provider. Names must be unique; registering the same
// name twice is last-write-wins.
func (r *ToolRegistry) Register(provider ToolProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := provider.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = provider
}

// RegisterAll installs every provider in providers.
func (r *ToolRegistry) RegisterAll(providers ...ToolProvider) {
	for _, p := range providers {
		r.Register(p)
	}
}

// GetToolsForLLM emits one Tool per registered provider: picked providers
// get their full description and real parameter schema, unpicked providers
// get the brief description and an empty schema (just to advertise
// existence cheaply). If any provider remains unpicked, a synthesized
// pick_tools meta-tool is appended.
func (r *ToolRegistry) GetToolsForLLM() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order)+1)
	var unpicked []string

	for _, name := range r.order {
		provider := r.tools[name]
		if r.picked[name] {
			tools = append(tools, Tool{
				Name:            name,
				Description:     provider.FullDescription(),
				FullDescription: provider.FullDescription(),
				Parameters:      provider.Parameters(),
			})
		} else {
			unpicked = append(unpicked, name)
			tools = append(tools, Tool{
				Name:        name,
				Description: provider.Brief(),
				Parameters:  map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
			})
		}
	}

	if len(unpicked) > 0 {
		tools = append(tools, pickToolsMetaTool(unpicked))
	}
	return tools
}

func pickToolsMetaTool(unpicked []string) Tool {
	sorted := append([]string(nil), unpicked...)
	sort.Strings(sorted)
	return Tool{
		Name: pickToolsMetaName,
		Description: "Select one or more tools to see their full description and parameters " +
			"before calling them. Call this first when you are unsure which tool to use.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"tools": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "string", "enum": sorted},
				},
			},
			"required": []string{"tools"},
		},
	}
}

// IsMetaTool reports whether name routes to the registry's internal
// pick-tools handler rather than a registered provider.
func IsMetaTool(name string) bool {
	return name == pickToolsMetaName || name == "pick_tool"
}

// Execute dispatches call to the meta-handler if it names the pick_tools
// meta-tool, otherwise looks up and invokes the matching provider. On
// successful provider execution the provider's name is auto-added to
// picked_tools (first success subscribes the model to full details on the
// next turn).
func (r *ToolRegistry) Execute(call ToolCall) ToolResult {
	if IsMetaTool(call.Name) {
		return r.executeMeta(call)
	}

	r.mu.RLock()
	provider, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("Error: tool %q not found. Available tools: %s", call.Name, strings.Join(r.Names(), ", ")),
			IsError:    true,
		}
	}

	result, err := provider.Execute(call)
	if err != nil {
		return ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}

	r.mu.Lock()
	r.picked[call.Name] = true
	r.mu.Unlock()

	return ToolResult{ToolCallID: call.ID, Content: result}
}

// Names returns every registered provider name, in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Reset clears picked_tools, e.g. at the start of a new agent session.
func (r *ToolRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.picked = make(map[string]bool)
}

// executeMeta reads arguments.tools as a string array, adds each known name
// to picked_tools, ignores unknowns with a warning in the result content,
// and responds with brief descriptions of the freshly picked tools plus an
// instruction to actually call them now.
func (r *ToolRegistry) executeMeta(call ToolCall) ToolResult {
	var args struct {
		Tools []string `json:"tools"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("Error: invalid pick_tools arguments: %v", err), IsError: true}
	}

	r.mu.Lock()
	var selected []string
	var unknown []string
	briefs := make(map[string]string)
	fulls := make(map[string]string)
	for _, name := range args.Tools {
		if provider, ok := r.tools[name]; ok {
			r.picked[name] = true
			selected = append(selected, name)
			briefs[name] = provider.Brief()
			fulls[name] = provider.FullDescription()
		} else {
			unknown = append(unknown, name)
		}
	}
	r.mu.Unlock()

	var b strings.Builder
	if len(selected) > 0 {
		sort.Strings(selected)
		b.WriteString("✅ Selected tools:\n")
		for _, name := range selected {
			b.WriteString(fmt.Sprintf("  - %s: %s\n", name, briefs[name]))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		b.WriteString(fmt.Sprintf("⚠️ Warning: tools not found: %s\n", strings.Join(unknown, ", ")))
	}
	if len(selected) > 0 {
		b.WriteString("\n📋 Tool specifications:\n")
		for _, name := range selected {
			b.WriteString(fmt.Sprintf("  %s\n", fulls[name]))
		}
		b.WriteString(fmt.Sprintf("\nYou MUST now call %s. Do not just acknowledge the tool selection — invoke it with the required arguments.", strings.Join(selected, " or ")))
	}

	return ToolResult{ToolCallID: call.ID, Content: b.String()}
}
