// Package protocol implements the duplex framed JSON client that mediates
// between the agentic core and a cooperating remote model service: a single
// long-lived connection carrying authentication, streaming chat turns, tool
// calls, tool results, progress, and server-driven context requests.
package protocol

import (
	stdjson "encoding/json"
	"regexp"
	"strings"
	"time"
)

// Envelope is the wire shape of every message in both directions: an opaque
// id, a type tag, a timestamp, and an optional payload.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   stdjson.RawMessage `json:"payload,omitempty"`
}

// Inbound message type tags (server -> client).
const (
	TypeAuthenticated         = "authenticated"
	TypeSessionCreated        = "session_created"
	TypeTextChunk             = "text_chunk"
	TypeReasoningChunk        = "reasoning_chunk"
	TypeToolCall              = "tool_call"
	TypeToolProgress          = "tool_progress"
	TypeToolActivity          = "tool_activity"
	TypeTodoUpdated           = "todo_updated"
	TypeProgress              = "progress"
	TypeResearch              = "research"
	TypeToolResultAck         = "tool_result_ack"
	TypeChatDone              = "chat_done"
	TypeError                 = "error"
	TypeGetConversationContext = "get_conversation_context"
)

// Outbound message type tags (client -> server).
const (
	TypeAuthenticate       = "authenticate"
	TypeChatRequest        = "chat_request"
	TypeToolResult         = "tool_result"
	TypeConversationContext = "conversation_context"
	TypePing               = "ping"
)

// StorageMode governs whether the local client or the server holds the
// authoritative conversation transcript.
type StorageMode string

const (
	StorageLocal  StorageMode = "local"
	StorageServer StorageMode = "server"
)

// Authenticated is the payload of an inbound "authenticated" message.
type Authenticated struct {
	UserID        string `json:"user_id"`
	ServerVersion string `json:"server_version"`
}

// SessionCreated is the payload of an inbound "session_created" message.
type SessionCreated struct {
	SessionID string `json:"session_id"`
	ModelID   string `json:"model_id"`
}

// TextChunk carries a visible assistant text delta.
type TextChunk struct {
	Content string `json:"content"`
}

// ReasoningChunk carries a hidden thought delta.
type ReasoningChunk struct {
	Content string `json:"content"`
}

// ToolCallMsg is an inbound tool-call request. Arguments may arrive either as
// a JSON string to be re-parsed, or as a JSON value directly; Arguments keeps
// the raw JSON exactly as received, and this type does not unwrap the string
// form.
type ToolCallMsg struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  stdjson.RawMessage `json:"arguments"`
}

// ToolProgress carries streaming partial JSON arguments, so the UI can show a
// "reading X" affordance before the call completes.
type ToolProgress struct {
	ToolCallID       string `json:"tool_call_id"`
	ToolName         string `json:"tool_name"`
	PartialArguments string `json:"partial_arguments"`
}

// filePathPatterns are tried in order against a ToolProgress's partial JSON
// arguments; each covers one alias the model uses for a file-path field
// (spec §4.1: "heuristically recovered... by regex over {path, file_path,
// target_file, absolute_path, file}").
var filePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"path"\s*:\s*"([^"]*)`),
	regexp.MustCompile(`"file_path"\s*:\s*"([^"]*)`),
	regexp.MustCompile(`"target_file"\s*:\s*"([^"]*)`),
	regexp.MustCompile(`"absolute_path"\s*:\s*"([^"]*)`),
	regexp.MustCompile(`"file"\s*:\s*"([^"]*)`),
}

// ExtractFilePathFromPartialArgs recovers a file path from a tool_progress
// event's accumulating partial JSON. partial_arguments grows prefix-by-prefix
// as the call streams in, so earlier matches for the same key are shorter,
// truncated prefixes of later ones; taking the LAST match per pattern (and
// the first pattern that yields a match starting with "/") picks the most
// complete value. Matches that do not start with "/" are ignored.
func ExtractFilePathFromPartialArgs(partialArgs string) string {
	for _, re := range filePathPatterns {
		matches := re.FindAllStringSubmatch(partialArgs, -1)
		var best string
		for _, m := range matches {
			path := m[1]
			if path != "" && strings.HasPrefix(path, "/") {
				best = path
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

// ToolActivity is a direct-to-UI notification of tool activity.
type ToolActivity struct {
	ToolName string `json:"tool_name"`
	FilePath string `json:"file_path"`
	Action   string `json:"action"`
}

// TodoItem mirrors the original's todo tracking shape.
type TodoItem struct {
	Content    string `json:"content"`
	ActiveForm string `json:"active_form"`
	Status     string `json:"status"`
}

// TodoUpdated carries the full todo list.
type TodoUpdated struct {
	Todos []TodoItem `json:"todos"`
}

// Progress carries a progress descriptor for the active turn.
type Progress struct {
	Message string `json:"message"`
	Stage   string `json:"stage"`
	Percent *int   `json:"percent,omitempty"`
}

// Research carries ephemeral-document content produced mid-turn.
type Research struct {
	Content string `json:"content"`
}

// ToolResultAck means the server received a result but is awaiting more in
// the same batch; the client must keep the channel live.
type ToolResultAck struct {
	PendingCount int `json:"pending_count"`
}

// ChatDone signals a terminal event for the current model response.
type ChatDone struct {
	FinishReason string `json:"finish_reason"`
	Recoverable  *bool  `json:"recoverable,omitempty"`
}

// ErrorMsg is the inbound application/transport error payload.
type ErrorMsg struct {
	Type          string `json:"type"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message"`
	TokenCount    *int   `json:"token_count,omitempty"`
	MaxTokens     *int   `json:"max_tokens,omitempty"`
	Excess        *int   `json:"excess,omitempty"`
	Recoverable   *bool  `json:"recoverable,omitempty"`
	RecoveryHint  string `json:"recovery_hint,omitempty"`
}

// GetConversationContext is a server-initiated request for the client's
// transcript. Payload may arrive as either a JSON object or a base64-encoded
// JSON string; DecodeContextRequest accepts both.
type GetConversationContext struct {
	SessionID string `json:"session_id"`
}

// Outbound payloads.

// AuthenticatePayload is the outbound authentication handshake payload.
type AuthenticatePayload struct {
	APIKey        string `json:"api_key"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
	Environment   string `json:"environment"`
}

// WorkspaceInfo describes the local workspace at the time a chat_request is sent.
type WorkspaceInfo struct {
	Root           string         `json:"root"`
	ProjectID      string         `json:"project_id,omitempty"`
	ActiveFile     string         `json:"active_file,omitempty"`
	CursorPosition *CursorPosition `json:"cursor_position,omitempty"`
	OpenFiles      []OpenFileInfo `json:"open_files,omitempty"`
}

// CursorPosition is a 0-based line/column pair.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// OpenFileInfo describes one open-file entry for workspace context, including
// the content hash used to detect out-of-band modification (see
// internal/hashline).
type OpenFileInfo struct {
	Path       string `json:"path"`
	Hash       string `json:"hash"`
	IsActive   bool   `json:"is_active"`
	IsModified bool   `json:"is_modified"`
}

// ChatRequestPayload is the outbound chat_request payload.
type ChatRequestPayload struct {
	SessionID   string        `json:"session_id,omitempty"`
	ModelID     string        `json:"model_id"`
	Message     string        `json:"message"`
	Images      []ChatImage   `json:"images,omitempty"`
	Workspace   WorkspaceInfo `json:"workspace"`
	StorageMode StorageMode   `json:"storage_mode,omitempty"`
}

// ChatImage mirrors the original's attached-image shape.
type ChatImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// ToolResultPayload is the outbound tool_result payload sent once per call.
type ToolResultPayload struct {
	SessionID  string `json:"session_id"`
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Content    string `json:"content,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ConversationMessage is the server-expected shape of one transcript entry,
// used both for conversation_context responses and for the orchestrator's
// turn-start snapshot (see internal/orchestrator).
type ConversationMessage struct {
	ID                  string     `json:"id,omitempty"`
	Role                string     `json:"role"`
	Content             string     `json:"content"`
	Reasoning           string     `json:"reasoning,omitempty"`
	ToolCallID          string     `json:"tool_call_id,omitempty"`
	ToolCalls           []ToolCall `json:"tool_calls,omitempty"`
	ContentBeforeTools  string     `json:"content_before_tools,omitempty"`
	ContentAfterTools   string     `json:"content_after_tools,omitempty"`
}

// ToolCall is the message-attached tool-call descriptor (§3 "Tool call").
type ToolCall struct {
	ID           string `json:"id"`
	FunctionName string `json:"function_name"`
	Arguments    string `json:"arguments"`
	Status       string `json:"status"`
	ResultPreview string `json:"result_preview,omitempty"`
}

// Tool-call status values (§3 invariant: executing|success|error).
const (
	ToolCallExecuting = "executing"
	ToolCallSuccess   = "success"
	ToolCallError     = "error"
)

// ConversationContextPayload answers a server-initiated context request.
type ConversationContextPayload struct {
	SessionID string                 `json:"session_id"`
	Messages  []ConversationMessage  `json:"messages"`
}

func now() int64 { return time.Now().UnixMilli() }
