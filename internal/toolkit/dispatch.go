package toolkit

import (
	"context"
	"fmt"

	"github.com/xonecas/agentcore/internal/patch"
)

// BoundedTools is the exact operation set of spec §4.6, used by the
// workflow gate to classify a call before interception routing.
var BoundedTools = map[string]bool{
	"read_file": true, "read_file_range": true,
	"write_file": true, "create_file": true,
	"edit_file": true, "apply_edit": true, "apply_patch": true,
	"grep_search": true, "codebase_search": true,
	"list_directory": true, "get_workspace_structure": true,
	"find_files": true, "find_files_glob": true,
	"create_directory": true, "delete_file": true,
	"move_file": true, "copy_file": true, "get_file_info": true,
	"open_file": true, "goto_line": true, "get_selection": true,
	"replace_selection": true, "insert_at_cursor": true,
	"get_editor_state": true,
}

// Dispatch resolves name against the bounded tool set and invokes the
// matching Executor method, pulling arguments out of argsJSON via the
// alias resolver. Returns (ToolResult{}, false) if name is not one of
// BoundedTools — the gate routes those elsewhere (run_command, confirms,
// server-side tools).
func (e *Executor) Dispatch(ctx context.Context, name string, argsJSON []byte) (ToolResult, bool) {
	switch name {
	case "read_file":
		return e.ReadFile(resolvePathArg(argsJSON)), true
	case "read_file_range":
		start, _ := resolveInt(argsJSON, "start", "start_line")
		end, _ := resolveInt(argsJSON, "end", "end_line")
		return e.ReadFileRange(resolvePathArg(argsJSON), start, end), true
	case "write_file", "create_file":
		content := resolveString(argsJSON, "content", "new_content", "text")
		return e.WriteFile(resolvePathArg(argsJSON), content), true
	case "edit_file", "apply_edit", "apply_patch":
		return e.dispatchEdit(argsJSON), true
	case "grep_search":
		pattern := resolveString(argsJSON, "pattern", "query")
		maxResults, _ := resolveInt(argsJSON, "max_results")
		return e.GrepSearch(ctx, pattern, maxResults), true
	case "codebase_search":
		pattern := resolveString(argsJSON, "pattern", "query")
		filePattern := resolveString(argsJSON, "file_pattern")
		maxResults, _ := resolveInt(argsJSON, "max_results")
		return e.CodebaseSearch(ctx, pattern, filePattern, maxResults), true
	case "list_directory":
		return e.ListDirectory(resolvePathArg(argsJSON)), true
	case "get_workspace_structure":
		depth, _ := resolveInt(argsJSON, "max_depth", "depth")
		return e.GetWorkspaceStructure(resolvePathArg(argsJSON), depth), true
	case "find_files":
		maxResults, _ := resolveInt(argsJSON, "max_results")
		return e.FindFiles(ctx, resolveString(argsJSON, "query", "substring", "pattern"), maxResults), true
	case "find_files_glob":
		maxResults, _ := resolveInt(argsJSON, "max_results")
		return e.FindFilesGlob(resolveString(argsJSON, "glob", "pattern"), maxResults), true
	case "create_directory":
		return e.CreateDirectory(resolvePathArg(argsJSON)), true
	case "delete_file":
		return e.DeleteFile(resolvePathArg(argsJSON)), true
	case "move_file":
		return e.MoveFile(resolveSrcArg(argsJSON), resolveDstArg(argsJSON)), true
	case "copy_file":
		return e.CopyFile(resolveSrcArg(argsJSON), resolveDstArg(argsJSON)), true
	case "get_file_info":
		return e.GetFileInfo(resolvePathArg(argsJSON)), true
	case "open_file":
		return e.OpenFile(resolvePathArg(argsJSON)), true
	case "goto_line":
		line, _ := resolveInt(argsJSON, "line")
		return e.GotoLine(line), true
	case "get_selection":
		return e.GetSelection(), true
	case "replace_selection":
		return e.ReplaceSelection(resolveString(argsJSON, "text", "content")), true
	case "insert_at_cursor":
		return e.InsertAtCursor(resolveString(argsJSON, "text", "content")), true
	case "get_editor_state":
		return e.GetEditorState(), true
	default:
		return ToolResult{}, false
	}
}

func (e *Executor) dispatchEdit(argsJSON []byte) ToolResult {
	relPath := resolvePathArg(argsJSON)
	if raw := resolveString(argsJSON, "patches", "hunks"); raw != "" {
		hunks, err := parseMultiPatchJSON(raw)
		if err != nil {
			return fail("invalid patches: %v", err)
		}
		return e.ApplyMultiPatch(relPath, hunks)
	}
	return e.EditFile(relPath, resolveOldText(argsJSON), resolveNewText(argsJSON))
}

func parseMultiPatchJSON(raw string) ([]patch.Hunk, error) {
	var items []struct {
		OldText string `json:"old_text"`
		NewText string `json:"new_text"`
	}
	if err := jsonUnmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	hunks := make([]patch.Hunk, len(items))
	for i, it := range items {
		hunks[i] = patch.Hunk{OldText: it.OldText, NewText: it.NewText}
	}
	if len(hunks) == 0 {
		return nil, fmt.Errorf("no hunks provided")
	}
	return hunks, nil
}
