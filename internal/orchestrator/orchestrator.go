// Package orchestrator implements the turn orchestrator of spec §4.3: the
// streaming state machine that drives one "reason -> call tools -> observe
// -> reason" round trip against a protocol.Client, merging text deltas,
// reasoning deltas, and tool-call accumulation into conversation messages,
// and handing completed tool-call batches to the workflow gate and approval
// coordinator.
//
// Grounded on the teacher's internal/llm/loop.go (ProcessTurn's drain loop,
// recitation/tool-round bookkeeping) generalised from a local in-process LLM
// loop into a client of the duplex protocol described in spec §4.1.
package orchestrator

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/google/uuid"

	"github.com/xonecas/agentcore/internal/approval"
	"github.com/xonecas/agentcore/internal/gate"
	"github.com/xonecas/agentcore/internal/protocol"
	"github.com/xonecas/agentcore/internal/reasoning"
	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/xmlcalls"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// tick rates for the three drain-loop regimes (spec §4.3).
const (
	tickStreaming     = time.Second / 60
	tickWaitingTools  = time.Second / 20
	tickIdle          = time.Second / 10
)

// xmlFallbackModels names models known to emit tool calls as prose XML
// rather than structured tool_call events, so the XML fallback parser is
// only run when it can't misfire on ordinary angle brackets in prose (spec
// §4.2: "implementers MUST NOT run this parser over models known not to
// emit these tags").
var xmlFallbackModels = map[string]bool{
	"qwen": true,
}

// Orchestrator drives one workspace's conversation against a protocol
// client, workflow gate, and approval coordinator.
type Orchestrator struct {
	client   *protocol.Client
	gate     *gate.Gate
	store    *state.Store
	approval *approval.Coordinator
	log      zerolog.Logger

	uiEvents chan UIEvent

	reasoningParser *reasoning.Parser
}

// New creates an Orchestrator wired to its collaborators.
func New(client *protocol.Client, g *gate.Gate, store *state.Store, ap *approval.Coordinator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:          client,
		gate:            g,
		store:           store,
		approval:        ap,
		log:             log.With().Str("component", "orchestrator").Logger(),
		uiEvents:        make(chan UIEvent, 256),
		reasoningParser: reasoning.New(),
	}
}

// Events returns the UI event stream.
func (o *Orchestrator) Events() <-chan UIEvent { return o.uiEvents }

// StartTurn implements spec §4.3's "start-of-turn": reset per-turn parser
// state, resolve the model, build workspace context, append the User
// message and a blank Assistant placeholder, and send the chat_request.
func (o *Orchestrator) StartTurn(ctx context.Context, userMessage, modelID string, ws protocol.WorkspaceInfo) (*turn, error) {
	o.reasoningParser.Reset()

	conv := o.store.Conversation()
	if conv == nil {
		conv = &state.Conversation{}
		o.store.SetConversation(conv)
	}
	conv.AppendUser(userMessage)
	idx := conv.AppendAssistantPlaceholder()

	sessionID := o.client.SessionID()
	if err := o.client.SendChatRequest(protocol.ChatRequestPayload{
		SessionID: sessionID,
		ModelID:   modelID,
		Message:   userMessage,
		Workspace: ws,
	}); err != nil {
		return nil, err
	}

	t := newTurn(idx)
	t.snapshot = conv.Snapshot()
	return t, nil
}

// RunTurn drains the protocol client's event stream until the turn
// completes (model emits text with no pending tool calls) or ctx is
// cancelled. Each drained batch of tool calls is routed through the
// workflow gate and, if approval is required, the approval coordinator,
// before results are sent back as spec §4.3's "continue-tool-batch".
func (o *Orchestrator) RunTurn(ctx context.Context, t *turn, modelID string) error {
	conv := o.store.Conversation()
	ticker := time.NewTicker(tickStreaming)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			drained := o.drainOnce(t, conv)
			o.retune(ticker, t)
			if !drained && t.done {
				return nil
			}
			if t.done {
				complete, err := o.endOfTurn(ctx, t, conv, modelID)
				if err != nil {
					return err
				}
				if complete {
					return nil
				}
			}
		}
	}
}

// retune adjusts the ticker's rate to the current drain regime.
func (o *Orchestrator) retune(ticker *time.Ticker, t *turn) {
	switch t.state {
	case drainStreaming:
		ticker.Reset(tickStreaming)
	case drainWaitingTools:
		ticker.Reset(tickWaitingTools)
	default:
		ticker.Reset(tickIdle)
	}
}

// drainOnce pulls every currently-queued event off the client non-blockingly
// (spec §4.3 "drains all ready events non-blockingly, then batches them")
// and folds each into turn/conversation state. Returns whether at least one
// event was drained.
func (o *Orchestrator) drainOnce(t *turn, conv *state.Conversation) bool {
	any := false
	for {
		select {
		case ev, ok := <-o.client.Events():
			if !ok {
				t.done = true
				return any
			}
			any = true
			o.handleEvent(t, conv, ev)
		default:
			return any
		}
	}
}

func (o *Orchestrator) handleEvent(t *turn, conv *state.Conversation, ev protocol.Event) {
	switch ev.Type {
	case protocol.TypeTextChunk:
		var c protocol.TextChunk
		if err := json.Unmarshal(ev.Payload, &c); err == nil {
			result := o.reasoningParser.Process(c.Content)
			if result.Text != "" {
				t.batched.WriteString(result.Text)
			}
			if result.Reasoning != "" {
				o.flushPendingText(t, conv)
				conv.AppendReasoningDelta(t.assistantIdx, result.Reasoning)
				o.emit(UIEvent{Kind: EventReasoningDelta, MessageID: conv.MessageID(t.assistantIdx), Chunk: result.Reasoning})
			}
		}
		o.flushPendingText(t, conv)
	case protocol.TypeReasoningChunk:
		var c protocol.ReasoningChunk
		if err := json.Unmarshal(ev.Payload, &c); err == nil {
			o.flushPendingText(t, conv)
			conv.AppendReasoningDelta(t.assistantIdx, c.Content)
			o.emit(UIEvent{Kind: EventReasoningDelta, Chunk: c.Content})
		}
	case protocol.TypeToolCall:
		var c protocol.ToolCallMsg
		if err := json.Unmarshal(ev.Payload, &c); err == nil {
			if !t.toolCallsStarted {
				t.toolCallsStarted = true
				t.contentBeforeTools = conv.Message(t.assistantIdx).Content
			}
			t.calls = append(t.calls, c)
			t.state = drainWaitingTools
			conv.SetToolCalls(t.assistantIdx, toolCallDescriptors(t.calls))
			o.emit(UIEvent{Kind: EventToolUpdate, ToolCallID: c.ToolCallID, ToolName: c.ToolName, Status: statusPending})
		}
	case protocol.TypeToolProgress:
		var p protocol.ToolProgress
		if err := json.Unmarshal(ev.Payload, &p); err == nil {
			filePath := protocol.ExtractFilePathFromPartialArgs(p.PartialArguments)
			o.emit(UIEvent{Kind: EventToolUpdate, ToolCallID: p.ToolCallID, ToolName: p.ToolName, FilePath: filePath, Status: statusRunning})
		}
	case protocol.TypeToolActivity:
		var a protocol.ToolActivity
		if err := json.Unmarshal(ev.Payload, &a); err == nil {
			o.emit(UIEvent{Kind: EventToolActivity, ToolName: a.ToolName, FilePath: a.FilePath, Action: a.Action})
		}
	case protocol.TypeTodoUpdated:
		o.emit(UIEvent{Kind: EventTodoUpdated})
	case protocol.TypeProgress:
		// Progress is cleared automatically once the first text/reasoning
		// chunk arrives; no extra bookkeeping needed here since batched
		// text/reasoning already flush independently.
	case protocol.TypeResearch:
		var r protocol.Research
		if err := json.Unmarshal(ev.Payload, &r); err == nil {
			o.emit(UIEvent{Kind: EventResearch, Chunk: r.Content})
		}
	case protocol.TypeToolResultAck:
		// Informational only; keep draining.
	case protocol.TypeGetConversationContext:
		req, err := protocol.DecodeContextRequest(ev.Payload)
		if err != nil {
			o.log.Warn().Err(err).Msg("malformed get_conversation_context payload")
			return
		}
		if err := o.client.SendConversationContext(protocol.ConversationContextPayload{
			SessionID: req.SessionID,
			Messages:  t.snapshot,
		}); err != nil {
			o.log.Warn().Err(err).Msg("failed to answer get_conversation_context")
		}
	case protocol.TypeChatDone:
		var d protocol.ChatDone
		json.Unmarshal(ev.Payload, &d)
		t.finishReason = d.FinishReason
		t.done = true
		if d.FinishReason == "context_length_exceeded" {
			o.emit(UIEvent{Kind: EventContextLengthExceeded})
		}
	case protocol.TypeError:
		o.handleError(t, ev.Payload)
	}
}

func (o *Orchestrator) flushPendingText(t *turn, conv *state.Conversation) {
	chunk, flushed := t.flushText(conv)
	if !flushed {
		return
	}
	if xmlcalls.IsXMLToolOutput(chunk) {
		return
	}
	o.emit(UIEvent{Kind: EventMessageDelta, MessageID: conv.MessageID(t.assistantIdx), Seq: t.seq, Chunk: chunk, IsFinal: false})
}

// handleError classifies an inbound error per spec §7.
func (o *Orchestrator) handleError(t *turn, payload []byte) {
	var e protocol.ErrorMsg
	if err := json.Unmarshal(payload, &e); err != nil {
		return
	}
	switch e.Type {
	case "context_length_exceeded":
		o.emit(UIEvent{
			Kind:       EventContextLengthExceeded,
			TokenCount: intOrZero(e.TokenCount),
			MaxTokens:  intOrZero(e.MaxTokens),
			Excess:     intOrZero(e.Excess),
			Hint:       e.RecoveryHint,
		})
		// recoverable: do not close the session.
		return
	case "rate_limit_error", "overloaded_error":
		o.emit(UIEvent{Kind: EventChatError, Message: e.Message + " " + e.RecoveryHint})
		return
	case "authentication_error":
		o.emit(UIEvent{Kind: EventChatError, Message: e.Message})
		t.done = true
		return
	case "message_too_large":
		o.emit(UIEvent{Kind: EventChatError, Message: e.Message + " " + e.RecoveryHint})
		return
	default:
		if e.Recoverable != nil && *e.Recoverable {
			o.emit(UIEvent{Kind: EventChatError, Message: e.Message})
			return
		}
		// Default: if content already streamed or chat_done already seen,
		// treat as normal completion rather than surfacing an error.
		if t.batched.Len() > 0 || t.seq > 0 || t.contentBeforeTools != "" || t.finishReason != "" {
			t.done = true
			return
		}
		o.emit(UIEvent{Kind: EventChatError, Message: e.Message})
		t.done = true
	}
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

const (
	statusPending = 0 // mirrors toolkit.ToolCallPending, duplicated to avoid an import cycle concern; see toolkit.ToolCallStatus
	statusRunning = 1
)

// endOfTurn implements spec §4.3's "end-of-turn decision": flush remaining
// text (running the XML fallback parser if warranted), and either finish the
// turn or hand accumulated calls to the workflow gate/approval coordinator
// and continue.
func (o *Orchestrator) endOfTurn(ctx context.Context, t *turn, conv *state.Conversation, modelID string) (complete bool, err error) {
	o.flushPendingText(t, conv)

	if len(t.calls) == 0 && xmlFallbackModels[modelID] {
		full := conv.Message(t.assistantIdx).Content + t.contentAfterTools
		if xmlCalls := xmlcalls.Detect(full); len(xmlCalls) > 0 {
			for _, c := range xmlCalls {
				args := make(map[string]string, len(c.Parameters))
				for _, p := range c.Parameters {
					args[p.Key] = p.Value
				}
				argsJSON, _ := json.Marshal(args)
				t.calls = append(t.calls, protocol.ToolCallMsg{
					ToolCallID: uuid.NewString(),
					ToolName:   c.Name,
					Arguments:  argsJSON,
				})
			}
		}
	}

	if len(t.calls) == 0 {
		o.emit(UIEvent{Kind: EventMessageCompleted, MessageID: conv.MessageID(t.assistantIdx)})
		o.reasoningParser.Reset()
		o.store.ClearApprovedRoots()
		return true, nil
	}

	return false, o.continueToolBatch(ctx, t, conv)
}

// continueToolBatch runs the accumulated calls through the workflow gate,
// awaits approval for anything pending, then sends tool_result frames back
// through the protocol client (spec §4.3 "continue-tool-batch").
func (o *Orchestrator) continueToolBatch(ctx context.Context, t *turn, conv *state.Conversation) error {
	conv.SetContentSplit(t.assistantIdx, t.contentBeforeTools, t.contentAfterTools)
	batch := o.gate.Evaluate(ctx, t.calls, t.contentBeforeTools+t.contentAfterTools)

	if batch.Pending() > 0 {
		o.emit(UIEvent{Kind: EventBatchCompleted, LoopDetected: batch.LoopDetected})
		o.approval.AwaitBatch(ctx, batch)
	}

	for _, r := range batch.FileResults {
		status := protocol.ToolCallSuccess
		if r.IsErr {
			status = protocol.ToolCallError
		}
		conv.SetToolCallStatus(t.assistantIdx, r.Call.ToolCallID, status, preview(r.Result))
		conv.AppendTool(r.Call.ToolCallID, r.Result)
		if err := o.client.SendToolResult(protocol.ToolResultPayload{
			SessionID:  o.client.SessionID(),
			ToolCallID: r.Call.ToolCallID,
			Success:    !r.IsErr,
			Content:    valueIfOK(r),
			Error:      valueIfErr(r),
		}); err != nil {
			return err
		}
	}

	t.calls = nil
	t.toolCallsStarted = false
	t.contentBeforeTools = ""
	t.contentAfterTools = ""
	t.done = false
	t.state = drainWaitingTools
	return nil
}

const previewLen = 200

// preview truncates a tool result to a short textual preview for the
// conversation's tool-call descriptor (spec §3: "optional textual result
// preview").
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "…"
}

// toolCallDescriptors builds the message-attached ToolCall list from the
// calls accumulated so far this turn, all initially "executing" (spec §3's
// status invariant; results later flip individual entries to success/error).
func toolCallDescriptors(calls []protocol.ToolCallMsg) []protocol.ToolCall {
	out := make([]protocol.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = protocol.ToolCall{
			ID:           c.ToolCallID,
			FunctionName: c.ToolName,
			Arguments:    string(c.Arguments),
			Status:       protocol.ToolCallExecuting,
		}
	}
	return out
}

func valueIfOK(r state.CallResult) string {
	if r.IsErr {
		return ""
	}
	return r.Result
}

func valueIfErr(r state.CallResult) string {
	if r.IsErr {
		return r.Result
	}
	return ""
}
