package orchestrator

import "github.com/xonecas/agentcore/internal/toolkit"

// UIEvent is one envelope on the UI event stream of spec §6: opaque to the
// transport, carrying a tagged union in Kind/fields. The orchestrator is the
// only emitter; the approval coordinator posts nothing to this stream.
type UIEvent struct {
	Kind string
	// Chat
	MessageID string
	Seq       int
	Chunk     string
	IsFinal   bool
	ToolCallID string
	ToolName   string
	Status     toolkit.ToolCallStatus
	FilePath   string
	Action     string
	// Workflow / System
	LoopDetected bool
	Message      string
	// Context-length-exceeded detail
	TokenCount int
	MaxTokens  int
	Excess     int
	Hint       string
}

const (
	EventMessageDelta           = "message_delta"
	EventReasoningDelta          = "reasoning_delta"
	EventToolUpdate              = "tool_update"
	EventToolActivity             = "tool_activity"
	EventMessageCompleted        = "message_completed"
	EventBatchCompleted          = "batch_completed"
	EventContextLengthExceeded   = "context_length_exceeded"
	EventChatError               = "chat_error"
	EventResearch                 = "research"
	EventTodoUpdated              = "todo_updated"
)

// emit pushes e onto the orchestrator's UI event sink, dropping it if the
// consumer isn't keeping up rather than blocking the drain loop (spec §4.3
// "event batching invariant": consumers that pull faster than events arrive
// receive none instead of blocking; a slow consumer must not stall ingestion
// of further protocol events).
func (o *Orchestrator) emit(e UIEvent) {
	select {
	case o.uiEvents <- e:
	default:
		o.log.Warn().Str("kind", e.Kind).Msg("UI event channel full, dropping")
	}
}
