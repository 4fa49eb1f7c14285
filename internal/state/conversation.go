package state

import (
	"github.com/google/uuid"
	"github.com/xonecas/agentcore/internal/protocol"
)

// Conversation is the orchestrator's working snapshot of one chat session,
// kept in the server's expected shape so get_conversation_context requests
// can be answered without re-reading mutated state (spec §4.3).
type Conversation struct {
	ID       string
	Messages []protocol.ConversationMessage
}

// AppendUser appends a User message.
func (c *Conversation) AppendUser(content string) {
	c.Messages = append(c.Messages, protocol.ConversationMessage{
		ID: uuid.NewString(), Role: "user", Content: content,
	})
}

// AppendAssistantPlaceholder appends a blank Assistant message and returns
// its index. Callers must address it by index (not by pointer) for later
// mutation — further appends to Messages can reallocate the backing array.
func (c *Conversation) AppendAssistantPlaceholder() int {
	c.Messages = append(c.Messages, protocol.ConversationMessage{
		ID: uuid.NewString(), Role: "assistant",
	})
	return len(c.Messages) - 1
}

// AppendTextDelta concatenates delta onto the content of the message at idx.
func (c *Conversation) AppendTextDelta(idx int, delta string) {
	c.Messages[idx].Content += delta
}

// AppendReasoningDelta concatenates delta onto the reasoning field of the
// message at idx.
func (c *Conversation) AppendReasoningDelta(idx int, delta string) {
	c.Messages[idx].Reasoning += delta
}

// SetToolCalls replaces the tool-call list of the message at idx.
func (c *Conversation) SetToolCalls(idx int, calls []protocol.ToolCall) {
	c.Messages[idx].ToolCalls = calls
}

// SetContentSplit records the content_before_tools / content_after_tools
// split for the message at idx (spec §3 "Chat message").
func (c *Conversation) SetContentSplit(idx int, before, after string) {
	c.Messages[idx].ContentBeforeTools = before
	c.Messages[idx].ContentAfterTools = after
}

// SetToolCallStatus updates the status (and optional result preview) of one
// tool-call descriptor already attached to the message at idx.
func (c *Conversation) SetToolCallStatus(idx int, callID, status, preview string) {
	calls := c.Messages[idx].ToolCalls
	for i := range calls {
		if calls[i].ID == callID {
			calls[i].Status = status
			calls[i].ResultPreview = preview
			return
		}
	}
}

// Message returns a copy of the message at idx.
func (c *Conversation) Message(idx int) protocol.ConversationMessage {
	return c.Messages[idx]
}

// MessageID returns the opaque id of the message at idx.
func (c *Conversation) MessageID(idx int) string {
	return c.Messages[idx].ID
}

// AppendTool appends a Tool message for a completed call at the end of the
// conversation, after the triggering assistant message and any Tool messages
// already appended for it (spec §5 "tool messages are inserted
// after the triggering assistant message").
func (c *Conversation) AppendTool(callID, content string) {
	c.Messages = append(c.Messages, protocol.ConversationMessage{
		ID:         uuid.NewString(),
		Role:       "tool",
		Content:    content,
		ToolCallID: callID,
	})
}

// Snapshot returns the conversation messages in the exact shape the
// protocol client sends for get_conversation_context responses.
func (c *Conversation) Snapshot() []protocol.ConversationMessage {
	out := make([]protocol.ConversationMessage, len(c.Messages))
	copy(out, c.Messages)
	return out
}
