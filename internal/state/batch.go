package state

import "github.com/xonecas/agentcore/internal/protocol"

// CallResult pairs a call with its completed ToolResult (spec §4.5's
// "(call, ToolResult) entry").
type CallResult struct {
	Call   protocol.ToolCallMsg
	Result string
	IsErr  bool
}

// ConfirmItem is a pending destructive-but-not-edit action awaiting
// approval (create_directory, move_file, copy_file — spec §4.4).
type ConfirmItem struct {
	Call        protocol.ToolCallMsg
	Description string
}

// CommandItem is a pending run_command awaiting approval (spec §4.4/§4.5).
type CommandItem struct {
	Call              protocol.ToolCallMsg
	Command           string
	Cwd               string
	CwdOutsideWorkspace bool
	RootCommand       string
}

// PendingToolBatch is the workflow gate's output (spec §4.4 "Output").
type PendingToolBatch struct {
	Calls        []protocol.ToolCallMsg
	FileResults  []CallResult
	Commands     []CommandItem
	Confirms     []ConfirmItem
	LoopDetected bool
}

// Pending returns the number of commands+confirms not yet resolved.
func (b *PendingToolBatch) Pending() int {
	return len(b.Commands) + len(b.Confirms)
}

// Complete reports whether every call id has an entry in FileResults
// (spec §4.5: "there is nothing left pending OR every original
// calls[i].id appears in file_results").
func (b *PendingToolBatch) Complete() bool {
	if b.Pending() == 0 {
		return true
	}
	have := make(map[string]bool, len(b.FileResults))
	for _, r := range b.FileResults {
		have[r.Call.ToolCallID] = true
	}
	for _, c := range b.Calls {
		if !have[c.ToolCallID] {
			return false
		}
	}
	return true
}

// SetPendingBatch installs a new batch and a fresh single-shot approval
// signal (spec §4.5 "installs a single-shot completion signal").
func (s *Store) SetPendingBatch(b *PendingToolBatch) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingBatch = b
	s.approvalWait = make(chan struct{})
	return s.approvalWait
}

// PendingBatch returns the current batch, or nil.
func (s *Store) PendingBatch() *PendingToolBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingBatch
}

// ResolveCall appends a (call, result) entry into the pending batch's
// FileResults, removes it from Commands/Confirms, and fires the approval
// signal once the batch is complete (spec §4.5 "Signal source").
func (s *Store) ResolveCall(callID string, result CallResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.pendingBatch
	if b == nil {
		return
	}
	b.FileResults = append(b.FileResults, result)

	cmds := b.Commands[:0]
	for _, c := range b.Commands {
		if c.Call.ToolCallID != callID {
			cmds = append(cmds, c)
		}
	}
	b.Commands = cmds

	confirms := b.Confirms[:0]
	for _, c := range b.Confirms {
		if c.Call.ToolCallID != callID {
			confirms = append(confirms, c)
		}
	}
	b.Confirms = confirms

	if b.Complete() && s.approvalWait != nil {
		select {
		case <-s.approvalWait:
			// already closed
		default:
			close(s.approvalWait)
		}
	}
}

// ClearPendingBatch drops the batch once the orchestrator has drained it.
func (s *Store) ClearPendingBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingBatch = nil
	s.approvalWait = nil
}
