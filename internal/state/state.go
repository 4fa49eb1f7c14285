// Package state implements the process-wide shared state store of spec
// §4.8: the single point of truth for the active conversation, the
// in-flight tool batch, approval signalling, editor context, the
// approved-command-roots cache, and virtual file buffers. Every field is
// guarded by its own short critical section — no lock is ever held across
// an await point or a blocking user prompt (spec §4.8, §5 "Ownership").
package state

import (
	"sync"

	"github.com/xonecas/agentcore/internal/toolkit"
)

// Store is process-wide but deliberately not a singleton: tests and
// multi-workspace hosts construct one per active workspace.
type Store struct {
	mu sync.Mutex

	workspace     Workspace
	conversation  *Conversation
	pendingBatch  *PendingToolBatch
	approvalWait  chan struct{} // closed once to fire the single-shot signal
	selectedModel int

	editor EditorContext

	approvedRoots map[string]bool
	cancelFlags   map[string]bool // call_id -> cancelled

	virtualBuffers map[string]string // absolute path -> shadow content

	loopHistory []CallRecord // last-10 ring, most recent last
	readCache   []ReadCacheEntry
}

// Workspace is the active project root plus its gitignore-allow setting.
type Workspace struct {
	Root                string
	AllowGitignoredFiles bool
}

// EditorContext mirrors toolkit.EditorState's data, owned here so the
// toolkit.Executor attached to this store can read/write it.
type EditorContext struct {
	ActiveFile string
	CursorLine int
	Selection  string
	OpenFiles  map[string]string // path -> content hash, for "modification flags"
}

// CallRecord is one (name, canonical args) entry in the loop-detection
// history window (spec §4.4 "count identical occurrences across the
// history window (last 10)").
type CallRecord struct {
	Name string
	Args string // canonicalised (reparsed + reserialised) JSON
}

// New creates a Store rooted at workspaceRoot.
func New(workspaceRoot string) *Store {
	return &Store{
		workspace:      Workspace{Root: workspaceRoot},
		approvedRoots:  make(map[string]bool),
		cancelFlags:    make(map[string]bool),
		virtualBuffers: make(map[string]string),
		editor:         EditorContext{OpenFiles: make(map[string]string)},
	}
}

// Workspace returns a copy of the current workspace descriptor.
func (s *Store) Workspace() Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace
}

// SetWorkspace mutates the workspace root — the only writer is an explicit
// open-folder command (spec §5 "Resource policy").
func (s *Store) SetWorkspace(ws Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspace = ws
}

// Conversation returns the active conversation, or nil if none is open.
func (s *Store) Conversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

// SetConversation replaces the active conversation (e.g. on session switch),
// and resets session-scoped state per spec §5's "session-id change is
// itself a form of soft cancellation — it resets loop history and
// approved-roots".
func (s *Store) SetConversation(c *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation = c
	s.loopHistory = nil
	s.approvedRoots = make(map[string]bool)
}

// VirtualRead consults the virtual buffer for path before the caller falls
// back to disk (spec §4.8: "a read must consult virtual buffers first").
func (s *Store) VirtualRead(absPath string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.virtualBuffers[absPath]
	return content, ok
}

// SetVirtualBuffer opens (or updates) a virtual buffer for absPath without
// touching disk.
func (s *Store) SetVirtualBuffer(absPath, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.virtualBuffers[absPath] = content
}

// ClearVirtualBuffer drops a virtual buffer, e.g. once the model commits it
// to disk via write_file.
func (s *Store) ClearVirtualBuffer(absPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.virtualBuffers, absPath)
}

// IsRootApproved reports whether root has a standing "approve_always"
// decision (spec §4.5).
func (s *Store) IsRootApproved(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approvedRoots[root]
}

// ApproveRootAlways records a standing approval for root.
func (s *Store) ApproveRootAlways(root string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvedRoots[root] = true
}

// ClearApprovedRoots is called at the end of every complete AI response
// (spec §5 ordering guarantee 3: "approved-command-root cache is cleared
// after each complete AI response").
func (s *Store) ClearApprovedRoots() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvedRoots = make(map[string]bool)
}

// SetCancelled marks callID as cancelled; the orchestrator checks this
// before sending a tool_result for a call whose execution may have raced
// a stop request.
func (s *Store) SetCancelled(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFlags[callID] = true
}

// IsCancelled reports whether callID was cancelled.
func (s *Store) IsCancelled(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelFlags[callID]
}

// ResetCancelFlags clears all per-call cancel flags, e.g. at turn start.
func (s *Store) ResetCancelFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFlags = make(map[string]bool)
}

// editorSnapshot returns the current editor context; the caller holds s.mu.
// Snapshot (editorstate.go) wraps it to satisfy toolkit.EditorState.
func (s *Store) editorSnapshot() toolkit.EditorSnapshot {
	return toolkit.EditorSnapshot{
		OpenFile:   s.editor.ActiveFile,
		CursorLine: s.editor.CursorLine,
		Selection:  s.editor.Selection,
	}
}
