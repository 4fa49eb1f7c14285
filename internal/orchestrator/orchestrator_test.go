package orchestrator

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/xonecas/agentcore/internal/gate"
	"github.com/xonecas/agentcore/internal/protocol"
	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/toolkit"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *state.Store, *state.Conversation) {
	t.Helper()
	root := t.TempDir()
	st := state.New(root)
	ex := toolkit.NewExecutor(root, nil, nil, st)
	g := gate.New(ex, st, zerolog.Nop())
	conv := &state.Conversation{}
	st.SetConversation(conv)
	o := New(nil, g, st, nil, zerolog.Nop())
	return o, st, conv
}

func drainEvents(o *Orchestrator) []UIEvent {
	var out []UIEvent
	for {
		select {
		case e := <-o.uiEvents:
			out = append(out, e)
		default:
			return out
		}
	}
}

func ev(typ string, payload string) protocol.Event {
	return protocol.Event{Type: typ, Payload: []byte(payload)}
}

func TestHandleEventTextChunkAccumulatesIntoConversationContent(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	o.handleEvent(tn, conv, ev(protocol.TypeTextChunk, `{"content":"hello "}`))
	o.handleEvent(tn, conv, ev(protocol.TypeTextChunk, `{"content":"world"}`))
	if conv.Message(idx).Content != "hello world" {
		t.Fatalf("got content %q", conv.Message(idx).Content)
	}

	events := drainEvents(o)
	var deltas int
	for _, e := range events {
		if e.Kind == EventMessageDelta {
			deltas++
			if e.MessageID != conv.MessageID(idx) {
				t.Fatalf("delta MessageID should be the opaque message id, got %q", e.MessageID)
			}
		}
	}
	if deltas == 0 {
		t.Fatal("expected at least one message_delta event")
	}
}

func TestHandleEventToolCallSnapshotsContentBeforeTools(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	o.handleEvent(tn, conv, ev(protocol.TypeTextChunk, `{"content":"reading the file"}`))
	o.handleEvent(tn, conv, ev(protocol.TypeToolCall, `{"tool_call_id":"1","tool_name":"read_file","arguments":{"path":"a.txt"}}`))

	if !tn.toolCallsStarted {
		t.Fatal("expected toolCallsStarted to be set")
	}
	if tn.contentBeforeTools != "reading the file" {
		t.Fatalf("expected content_before_tools snapshot, got %q", tn.contentBeforeTools)
	}
	if len(tn.calls) != 1 || tn.calls[0].ToolCallID != "1" {
		t.Fatalf("expected one accumulated call, got %+v", tn.calls)
	}
	if tn.state != drainWaitingTools {
		t.Fatalf("expected drainWaitingTools after a tool_call, got %v", tn.state)
	}

	msg := conv.Message(idx)
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].Status != protocol.ToolCallExecuting {
		t.Fatalf("expected one executing tool call descriptor, got %+v", msg.ToolCalls)
	}
}

func TestHandleEventReasoningChunkAppendsToReasoningField(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	tn.batched.WriteString("pending text")
	o.handleEvent(tn, conv, ev(protocol.TypeReasoningChunk, `{"content":"thinking..."}`))

	if conv.Message(idx).Reasoning != "thinking..." {
		t.Fatalf("got reasoning %q", conv.Message(idx).Reasoning)
	}
	// the pending text must have been flushed before the reasoning append.
	if conv.Message(idx).Content != "pending text" {
		t.Fatalf("expected prior batched text flushed first, got %q", conv.Message(idx).Content)
	}
}

func TestHandleEventChatDoneSetsFinishReasonAndDone(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	o.handleEvent(tn, conv, ev(protocol.TypeChatDone, `{"finish_reason":"stop"}`))
	if !tn.done || tn.finishReason != "stop" {
		t.Fatalf("expected done=true finishReason=stop, got done=%v reason=%q", tn.done, tn.finishReason)
	}
}

func TestHandleEventChatDoneContextLengthExceededEmitsDistinctEvent(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	o.handleEvent(tn, conv, ev(protocol.TypeChatDone, `{"finish_reason":"context_length_exceeded"}`))
	if !tn.done {
		t.Fatal("context_length_exceeded must still mark the turn done")
	}
	events := drainEvents(o)
	if len(events) != 1 || events[0].Kind != EventContextLengthExceeded {
		t.Fatalf("expected a single context_length_exceeded event, got %+v", events)
	}
}

func TestHandleErrorContextLengthExceededStaysRecoverable(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)

	o.handleError(tn, []byte(`{"type":"context_length_exceeded","token_count":9000,"max_tokens":8000,"excess":1000,"recovery_hint":"start a new session"}`))
	if tn.done {
		t.Fatal("context_length_exceeded must not close the session")
	}
	events := drainEvents(o)
	if len(events) != 1 || events[0].Kind != EventContextLengthExceeded {
		t.Fatalf("got %+v", events)
	}
	if events[0].TokenCount != 9000 || events[0].MaxTokens != 8000 || events[0].Excess != 1000 {
		t.Fatalf("got %+v", events[0])
	}
}

func TestHandleErrorAuthenticationErrorIsFatal(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	tn := newTurn(0)
	o.handleError(tn, []byte(`{"type":"authentication_error","message":"bad key"}`))
	if !tn.done {
		t.Fatal("authentication_error must close the turn")
	}
}

func TestHandleErrorRateLimitIsRecoverable(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	tn := newTurn(0)
	o.handleError(tn, []byte(`{"type":"rate_limit_error","message":"slow down"}`))
	if tn.done {
		t.Fatal("rate_limit_error must not close the turn")
	}
	events := drainEvents(o)
	if len(events) != 1 || events[0].Kind != EventChatError {
		t.Fatalf("got %+v", events)
	}
}

func TestHandleErrorUnknownTypeDefaultsToCompletionWhenContentAlreadyStreamed(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	tn := newTurn(0)
	tn.batched.WriteString("already said something")
	o.handleError(tn, []byte(`{"type":"some_new_error","message":"huh"}`))
	if !tn.done {
		t.Fatal("expected unknown error with prior content to be treated as normal completion")
	}
	if len(drainEvents(o)) != 0 {
		t.Fatal("expected no chat_error event when treated as completion")
	}
}

func TestHandleErrorUnknownTypeWithNoContentSurfacesAndCloses(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	tn := newTurn(0)
	o.handleError(tn, []byte(`{"type":"some_new_error","message":"huh"}`))
	if !tn.done {
		t.Fatal("expected unknown error with no prior content to close the turn")
	}
	events := drainEvents(o)
	if len(events) != 1 || events[0].Kind != EventChatError {
		t.Fatalf("got %+v", events)
	}
}

func TestEndOfTurnCompletesWhenNoToolCalls(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	tn := newTurn(idx)
	tn.batched.WriteString("all done")

	complete, err := o.endOfTurn(nil, tn, conv, "some-model")
	if err != nil {
		t.Fatal(err)
	}
	if !complete {
		t.Fatal("expected the turn to complete when no tool calls accumulated")
	}
	events := drainEvents(o)
	var sawCompleted bool
	for _, e := range events {
		if e.Kind == EventMessageCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Fatal("expected a message_completed event")
	}
}

func TestEndOfTurnRunsXMLFallbackOnlyForKnownXMLModels(t *testing.T) {
	o, _, conv := newTestOrchestrator(t)
	idx := conv.AppendAssistantPlaceholder()
	conv.AppendTextDelta(idx, `<read_file><path>a.txt</path></read_file>`)
	tn := newTurn(idx)

	complete, err := o.endOfTurn(nil, tn, conv, "claude-x")
	if err != nil {
		t.Fatal(err)
	}
	if !complete {
		t.Fatal("non-XML-fallback model must not run the XML parser, so the turn should complete")
	}
	if len(tn.calls) != 0 {
		t.Fatalf("expected no synthesized calls for a non-fallback model, got %+v", tn.calls)
	}
}

func TestToolCallDescriptorsStartExecuting(t *testing.T) {
	calls := []protocol.ToolCallMsg{
		{ToolCallID: "1", ToolName: "read_file", Arguments: []byte(`{"path":"a.txt"}`)},
	}
	out := toolCallDescriptors(calls)
	if len(out) != 1 || out[0].Status != protocol.ToolCallExecuting || out[0].FunctionName != "read_file" {
		t.Fatalf("got %+v", out)
	}
}

func TestPreviewTruncatesLongResults(t *testing.T) {
	long := make([]byte, previewLen+50)
	for i := range long {
		long[i] = 'a'
	}
	got := preview(string(long))
	if len(got) <= previewLen {
		t.Fatalf("expected truncation marker appended, got len %d", len(got))
	}
	if preview("short") != "short" {
		t.Fatal("short results must pass through unchanged")
	}
}

func TestResolveModelPrefersExactIDThenAPIIDThenCaseInsensitive(t *testing.T) {
	models := []ModelDescriptor{
		{ID: "gpt-5", APIID: "gpt-5-api"},
		{ID: "Claude-Opus", APIID: "claude-opus-api"},
	}
	if id, ok := ResolveModel(models, "gpt-5"); !ok || id != "gpt-5-api" {
		t.Fatalf("exact id match failed: %q %v", id, ok)
	}
	if id, ok := ResolveModel(models, "claude-opus-api"); !ok || id != "claude-opus-api" {
		t.Fatalf("api id match failed: %q %v", id, ok)
	}
	if id, ok := ResolveModel(models, "claude-opus"); !ok || id != "claude-opus-api" {
		t.Fatalf("case-insensitive match failed: %q %v", id, ok)
	}
	if _, ok := ResolveModel(models, "nope"); ok {
		t.Fatal("expected no match for an unknown model id")
	}
}
