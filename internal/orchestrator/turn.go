package orchestrator

import (
	"strings"

	"github.com/xonecas/agentcore/internal/protocol"
)

// drainState selects the drain-loop tick rate of spec §4.3: ~60 Hz while
// actively streaming text/reasoning, ~20 Hz while waiting on tool results,
// ~10 Hz once idle.
type drainState int

const (
	drainStreaming drainState = iota
	drainWaitingTools
	drainIdle
)

// turn holds the mutable state of one model turn: the accumulated batched
// text buffer, the tool calls seen so far, and the before/after-tools
// content split spec §4.3 requires.
type turn struct {
	assistantIdx int

	// snapshot is the conversation exactly as it was sent with this turn's
	// chat_request. A server-initiated get_conversation_context arriving
	// mid-turn is answered from this snapshot, never from the live
	// (concurrently mutating) conversation (spec §4.3).
	snapshot []protocol.ConversationMessage

	batched strings.Builder

	toolCallsStarted  bool
	contentBeforeTools string
	contentAfterTools  string

	calls []protocol.ToolCallMsg

	done         bool
	finishReason string

	seq int

	state drainState
}

func newTurn(assistantIdx int) *turn {
	return &turn{
		assistantIdx: assistantIdx,
		state:        drainStreaming,
	}
}

// flushText moves the batched buffer into the conversation, routing to
// content_after_tools once tool calls have begun (spec §4.3: "If tool calls
// have already begun in this turn, flushed text goes to content_after_tools").
func (t *turn) flushText(conv convAppender) (chunk string, flushed bool) {
	if t.batched.Len() == 0 {
		return "", false
	}
	chunk = t.batched.String()
	t.batched.Reset()
	if t.toolCallsStarted {
		t.contentAfterTools += chunk
	} else {
		conv.AppendTextDelta(t.assistantIdx, chunk)
	}
	t.seq++
	return chunk, true
}

// convAppender is the minimal surface turn needs from state.Conversation,
// kept as an interface so this file has no import-time dependency shape
// beyond what it actually calls.
type convAppender interface {
	AppendTextDelta(idx int, delta string)
	AppendReasoningDelta(idx int, delta string)
	SetToolCalls(idx int, calls []protocol.ToolCall)
	SetContentSplit(idx int, before, after string)
	SetToolCallStatus(idx int, callID, status, preview string)
	MessageID(idx int) string
}
