package toolkit

import "fmt"

// OpenFile implements open_file: tells the attached editor surface to open
// relPath. Fails explicitly if no editor surface is attached.
func (e *Executor) OpenFile(relPath string) ToolResult {
	if e.editor == nil {
		return fail("no editor surface attached")
	}
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	if err := e.editor.OpenFile(abs); err != nil {
		return fail("failed to open %s: %v", relPath, err)
	}
	return ok(fmt.Sprintf("Opened %s", relPath))
}

// GotoLine implements goto_line.
func (e *Executor) GotoLine(line int) ToolResult {
	if e.editor == nil {
		return fail("no editor surface attached")
	}
	if err := e.editor.GotoLine(line); err != nil {
		return fail("%v", err)
	}
	return ok(fmt.Sprintf("Moved cursor to line %d", line))
}

// GetSelection implements get_selection.
func (e *Executor) GetSelection() ToolResult {
	if e.editor == nil {
		return fail("no editor surface attached")
	}
	text, start, end := e.editor.Selection()
	if text == "" {
		return ok("[no selection]")
	}
	return ok(fmt.Sprintf("lines %d-%d:\n%s", start, end, text))
}

// ReplaceSelection implements replace_selection.
func (e *Executor) ReplaceSelection(text string) ToolResult {
	if e.editor == nil {
		return fail("no editor surface attached")
	}
	if err := e.editor.ReplaceSelection(text); err != nil {
		return fail("%v", err)
	}
	return ok("Replaced selection")
}

// InsertAtCursor implements insert_at_cursor.
func (e *Executor) InsertAtCursor(text string) ToolResult {
	if e.editor == nil {
		return fail("no editor surface attached")
	}
	if err := e.editor.InsertAtCursor(text); err != nil {
		return fail("%v", err)
	}
	return ok("Inserted at cursor")
}

// GetEditorState implements get_editor_state. This tool (along with
// get_workspace_structure) is exempt from the gate's loop-detection limit
// (spec §4.4) since polling editor state between steps is expected.
func (e *Executor) GetEditorState() ToolResult {
	if e.editor == nil {
		return ok("no editor surface attached")
	}
	snap := e.editor.Snapshot()
	if snap.OpenFile == "" {
		return ok("no file open")
	}
	return ok(fmt.Sprintf("open file: %s\ncursor line: %d\nselection: %q", snap.OpenFile, snap.CursorLine, snap.Selection))
}
