package agent

import "testing"

func toolTurn(id string) []Message {
	return []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: id, Name: "t"}}},
		ToolMessage(id, "result-"+id),
	}
}

func TestCountToolTurns(t *testing.T) {
	history := []Message{System("sys"), User("hi")}
	history = append(history, toolTurn("a")...)
	history = append(history, toolTurn("b")...)
	history = append(history, Assistant("plain reply"))

	if got := CountToolTurns(history); got != 2 {
		t.Errorf("CountToolTurns() = %d, want 2", got)
	}
}

func TestPruneToolTurns_NoOpBelowMax(t *testing.T) {
	var history []Message
	history = append(history, toolTurn("a")...)
	history = append(history, toolTurn("b")...)

	pruned := PruneToolTurns(history, 3)
	if len(pruned) != len(history) {
		t.Errorf("expected no-op, got %d messages (want %d)", len(pruned), len(history))
	}
}

func TestPruneToolTurns_ZeroOrNegativeDisables(t *testing.T) {
	var history []Message
	history = append(history, toolTurn("a")...)

	if pruned := PruneToolTurns(history, 0); len(pruned) != len(history) {
		t.Errorf("maxTurns=0 should be a no-op, got %d messages", len(pruned))
	}
	if pruned := PruneToolTurns(history, -1); len(pruned) != len(history) {
		t.Errorf("maxTurns<0 should be a no-op, got %d messages", len(pruned))
	}
}

func TestPruneToolTurns_DropsOldestFirst(t *testing.T) {
	var history []Message
	history = append(history, System("sys"))
	history = append(history, toolTurn("a")...)
	history = append(history, toolTurn("b")...)
	history = append(history, toolTurn("c")...)

	pruned := PruneToolTurns(history, 1)

	if CountToolTurns(pruned) != 1 {
		t.Fatalf("expected 1 remaining tool turn, got %d", CountToolTurns(pruned))
	}

	for _, m := range pruned {
		for _, tc := range m.ToolCalls {
			if tc.ID == "a" || tc.ID == "b" {
				t.Errorf("expected turns a and b to be pruned, found %s", tc.ID)
			}
		}
	}

	found := false
	for _, m := range pruned {
		for _, tc := range m.ToolCalls {
			if tc.ID == "c" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected newest turn c to survive pruning")
	}

	// System message before the turns must survive untouched.
	if pruned[0].Role != RoleSystem {
		t.Errorf("expected system message preserved at head, got role %v", pruned[0].Role)
	}
}

func TestPruneToolTurns_DoesNotMutateInput(t *testing.T) {
	var history []Message
	history = append(history, toolTurn("a")...)
	history = append(history, toolTurn("b")...)

	original := len(history)
	_ = PruneToolTurns(history, 1)

	if len(history) != original {
		t.Errorf("PruneToolTurns mutated caller's slice length: got %d, want %d", len(history), original)
	}
}
