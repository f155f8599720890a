package agent

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Provider is the capability set every vendor adapter implements. It is a
// capability interface, not a subclass hierarchy: OpenAI, Anthropic, and
// Gemini adapters each satisfy it independently.
type Provider interface {
	// Model returns the model identifier this provider was created for.
	Model() string

	// State returns a snapshot of the running usage/request counters.
	State() ProviderState

	// Config returns a snapshot of the current tuning knobs.
	Config() ProviderConfig

	// UpdateConfig applies mutator to the live config under the adapter's lock.
	UpdateConfig(mutator func(*ProviderConfig))

	// Chat is a convenience one-shot stream: text chunks plus a terminal
	// Done event carrying usage. No tool calling.
	Chat(ctx context.Context, prompt string) (<-chan LoopStep, error)

	// ChatLoop is the core entry point: it spins up a producer task and
	// returns a handle for consuming events and submitting tool results.
	ChatLoop(ctx context.Context, history []Message, tools []Tool) (*LoopHandle, error)

	// GetHistory snapshots the most recently completed loop's history.
	GetHistory() []Message
}

// Compactor is the optional capability of providers that can compact a
// conversation server-side into a shorter equivalent history.
type Compactor interface {
	Compact(ctx context.Context, history []Message) ([]Message, error)
}

// PromptCacher is the optional capability of providers that support pinning
// a prompt into a vendor-side cache. Providers without vendor support
// return ErrCachingNotSupported.
type PromptCacher interface {
	PromptCache(prompt string) error
}

// ToolResultSubmission is what the orchestrator sends back to a suspended
// producer task after executing a ToolCallsRequested batch.
type ToolResultSubmission struct {
	Results []ToolResult
}

// LoopHandle is the consumer-side view of one chat_loop invocation. Events
// flow producer -> consumer on Events; tool result submissions flow
// consumer -> producer on results. The producer closes Events on exit;
// dropping the handle (calling Cancel) cancels the producer's context and
// closes results so the producer observes it at its next send or await and
// exits cleanly.
type LoopHandle struct {
	// ID uniquely identifies this loop for logging and diagnostics.
	ID string

	Events <-chan LoopStep

	mu       sync.Mutex
	results  chan ToolResultSubmission
	active   bool
	cancelFn context.CancelFunc
}

// newLoopHandle constructs a handle around the channels a producer goroutine
// owns; the adapters package reaches it through NewLoopHandleForAdapters.
func newLoopHandle(events <-chan LoopStep, results chan ToolResultSubmission, cancel context.CancelFunc) *LoopHandle {
	return &LoopHandle{ID: uuid.NewString(), Events: events, results: results, active: true, cancelFn: cancel}
}

// NewLoopHandleForAdapters is the adapters package's entry point for
// constructing a LoopHandle around its producer goroutine's channels.
func NewLoopHandleForAdapters(events <-chan LoopStep, results chan ToolResultSubmission, cancel context.CancelFunc) *LoopHandle {
	return newLoopHandle(events, results, cancel)
}

// Next consumes the next event. The second return is false once the
// producer has closed the event channel (EndOfStream); the handle is then
// marked inactive.
func (h *LoopHandle) Next() (LoopStep, bool) {
	step, ok := <-h.Events
	if !ok {
		h.markClosed()
	}
	return step, ok
}

// SubmitToolResults delivers results for the outstanding ToolCallsRequested.
// It fails with ErrChatLoopClosed if the loop is no longer active.
func (h *LoopHandle) SubmitToolResults(results []ToolResult) error {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return ErrChatLoopClosed
	}
	h.mu.Unlock()

	// The producer drains exactly one submission per ToolCallsRequested
	// before looping, which keeps this send from blocking in practice
	// (see each adapter's runProducer).
	h.results <- ToolResultSubmission{Results: results}
	return nil
}

// IsActive reports whether the producer task is still believed to be running.
func (h *LoopHandle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Cancel closes the handle. It is idempotent and equivalent to dropping the
// handle: the producer observes channel closure at its next send or await
// and exits cleanly, still writing final history. There is no forced
// cancellation of an in-flight HTTP request beyond this.
func (h *LoopHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	h.active = false
	if h.cancelFn != nil {
		h.cancelFn()
	}
	close(h.results)
}

// markClosed marks the handle inactive without closing any channel. Next
// calls it once the producer has closed the event channel, so IsActive
// reflects producer-side exits too, not just caller-initiated Cancel.
func (h *LoopHandle) markClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = false
}
