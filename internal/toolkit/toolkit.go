// Package toolkit implements the bounded filesystem and editor-affordance
// tool set of spec §4.6: the operations the workflow gate executes directly
// (or hands to a cache/parallel-read path) rather than routing through
// approval. Path containment and the result shape are adapted from the
// teacher's internal/mcptools helpers; patch-family edits are wired to
// internal/patch instead of the teacher's hashline-anchor scheme, since the
// spec's edit_file/apply_edit/apply_patch operate on old_text/new_text
// matching, not anchored line ranges.
package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xonecas/agentcore/internal/delta"
	"github.com/xonecas/agentcore/internal/filesearch"
	"github.com/xonecas/agentcore/internal/treesitter"
)

// ToolResult is the bounded-tool-set's uniform return shape (spec §4.6:
// "it returns a ToolResult{success, content, error?}").
type ToolResult struct {
	Success bool
	Content string
	Error   string
}

func ok(content string) ToolResult  { return ToolResult{Success: true, Content: content} }
func fail(format string, a ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, a...)}
}

// serverSideTools must be rejected by the executor with an explicit error —
// they exist only as protocol messages handled by the remote service, never
// as local filesystem/editor operations (spec §4.6).
var serverSideTools = map[string]bool{
	"ask_followup_question": true,
	"attempt_completion":    true,
	"new_task":               true,
	"generate_image":        true,
	"todo_write":             true,
}

// IsServerSideTool reports whether name must be rejected locally with
// "must be handled by server" rather than dispatched to the executor.
func IsServerSideTool(name string) bool {
	return serverSideTools[name]
}

// Executor runs the bounded tool set against one workspace root.
type Executor struct {
	root            string
	gitignore       *filesearch.GitignoreMatcher
	tsIndex         *treesitter.Index
	delta           *delta.Tracker
	editor          EditorState
	allowGitignored bool
}

// EditorState is the minimal surface the editor-affordance tools
// (open_file, goto_line, get_selection, replace_selection,
// insert_at_cursor, get_editor_state) need from the shared state store
// (internal/state). Kept as an interface here so toolkit has no import
// dependency on internal/state.
type EditorState interface {
	OpenFile(path string) error
	GotoLine(line int) error
	Selection() (text string, startLine, endLine int)
	ReplaceSelection(text string) error
	InsertAtCursor(text string) error
	Snapshot() EditorSnapshot
}

// EditorSnapshot is the read-only view returned by get_editor_state.
type EditorSnapshot struct {
	OpenFile   string
	CursorLine int
	Selection  string
}

// NewExecutor creates an Executor rooted at root. dt and tsIndex may be nil;
// editor may be nil if no editor surface is attached (editor-affordance
// tools then fail with a clear error instead of panicking, except
// get_editor_state, which succeeds with "no editor surface attached").
func NewExecutor(root string, dt *delta.Tracker, tsIndex *treesitter.Index, editor EditorState) *Executor {
	gitignorePath := filepath.Join(root, ".gitignore")
	matcher, err := filesearch.NewGitignoreMatcher(gitignorePath)
	if err != nil {
		matcher, _ = filesearch.NewGitignoreMatcher("")
	}
	return &Executor{root: root, gitignore: matcher, tsIndex: tsIndex, delta: dt, editor: editor}
}

// Root returns the workspace root the executor is anchored to.
func (e *Executor) Root() string { return e.root }

// SetAllowGitignored applies the workspace's gitignore-allow override (spec
// §6): when set, traversal operations stop consulting .gitignore entirely.
// Kept as a setter rather than a constructor argument since it is a
// per-project toggle that can flip after the executor is already built.
func (e *Executor) SetAllowGitignored(allow bool) {
	e.allowGitignored = allow
	if e.tsIndex != nil {
		e.tsIndex.SetAllowGitignored(allow)
	}
}

// resolvePath validates that rel resolves inside the workspace root and
// returns the absolute path. Mirrors mcptools/helpers.go's
// validatePathWithRoot containment check.
func (e *Executor) resolvePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs := rel
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.root, rel)
	}
	abs = filepath.Clean(abs)
	relToRoot, err := filepath.Rel(e.root, abs)
	if err != nil || relToRoot == ".." || strings.HasPrefix(relToRoot, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("access denied: %q resolves outside the workspace", rel)
	}
	return abs, nil
}

// ignored reports whether a path (relative to root) should be skipped by
// traversal operations, honoring the workspace's gitignore-allow override.
func (e *Executor) ignored(relPath string, isDir bool) bool {
	return e.gitignore.MatchesUnlessAllowed(relPath, isDir, e.allowGitignored)
}

// touchIndex re-parses a changed file's symbols, best-effort.
func (e *Executor) touchIndex(absPath string) {
	if e.tsIndex != nil {
		go e.tsIndex.UpdateFile(absPath)
	}
}

// recordModify snapshots pre-edit content for undo, best-effort.
func (e *Executor) recordModify(absPath string, before []byte) {
	if e.delta != nil {
		e.delta.RecordModify(absPath, before)
	}
}

func (e *Executor) recordCreate(absPath string) {
	if e.delta != nil {
		e.delta.RecordCreate(absPath)
	}
}
