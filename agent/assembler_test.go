package agent

import (
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestToolCallAssembler_SingleCallFragmentedArgs(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_1", strPtr("get_weather"), strPtr(`{"loc`))
	a.ProcessDelta("call_1", nil, strPtr(`ation":"`))
	a.ProcessDelta("call_1", nil, strPtr(`Paris"}`))

	calls, err := a.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Name != "get_weather" {
		t.Errorf("name = %q, want get_weather", calls[0].Name)
	}
	if string(calls[0].Arguments) != `{"location":"Paris"}` {
		t.Errorf("arguments = %s", calls[0].Arguments)
	}
}

func TestToolCallAssembler_NameSetOnlyOnFirstSighting(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_1", strPtr("first_name"), nil)
	a.ProcessDelta("call_1", strPtr("second_name"), nil)

	calls, err := a.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls[0].Name != "first_name" {
		t.Errorf("name = %q, want first_name (first sighting wins)", calls[0].Name)
	}
}

func TestToolCallAssembler_MultipleCallsPreserveOrder(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_2", strPtr("second"), strPtr("{}"))
	a.ProcessDelta("call_1", strPtr("first"), strPtr("{}"))

	calls, err := a.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[0].ID != "call_2" || calls[1].ID != "call_1" {
		t.Errorf("expected first-sighting order [call_2, call_1], got %+v", calls)
	}
}

func TestToolCallAssembler_EmptyArgsDefaultsToEmptyObject(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_1", strPtr("no_args_tool"), nil)

	calls, err := a.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(calls[0].Arguments) != "{}" {
		t.Errorf("arguments = %s, want {}", calls[0].Arguments)
	}
}

func TestToolCallAssembler_MalformedJSONReturnsErrJSONError(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_1", strPtr("broken"), strPtr(`{"x":`))

	_, err := a.Finalize()
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !errors.Is(err, ErrJSONError) {
		t.Errorf("error = %v, want it to wrap ErrJSONError", err)
	}
	if !strings.Contains(err.Error(), "malformed argument JSON") {
		t.Errorf("error = %v, want malformed argument JSON message", err)
	}
}

func TestToolCallAssembler_Reset(t *testing.T) {
	a := NewToolCallAssembler()
	a.ProcessDelta("call_1", strPtr("tool"), strPtr("{}"))
	a.Reset()

	calls, err := a.Finalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected empty assembler after reset, got %d calls", len(calls))
	}
}
