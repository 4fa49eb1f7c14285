package toolkit

import (
	"fmt"
	"os"

	"github.com/xonecas/agentcore/internal/patch"
)

// EditFile implements edit_file/apply_edit/apply_patch (spec §4.7): a
// single old_text/new_text hunk applied via internal/patch's
// exact-then-fuzzy match. oldText == "" means "create a new file with
// newText" (the NewFile change type of spec §6).
func (e *Executor) EditFile(relPath, oldText, newText string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}

	if oldText == "" {
		if _, statErr := os.Stat(abs); statErr == nil {
			return fail("file already exists: %s (provide old_text to edit it)", relPath)
		}
		e.recordCreate(abs)
		if err := os.WriteFile(abs, []byte(newText), 0644); err != nil {
			return fail("failed to create %s: %v", relPath, err)
		}
		e.touchIndex(abs)
		return ok(fmt.Sprintf("Created %s", relPath))
	}

	before, err := os.ReadFile(abs)
	if err != nil {
		return fail("failed to read %s: %v", relPath, err)
	}

	after, err := patch.Apply(string(before), oldText, newText)
	if err != nil {
		return fail("%v", err)
	}

	e.recordModify(abs, before)
	if err := os.WriteFile(abs, []byte(after), 0644); err != nil {
		return fail("failed to write %s: %v", relPath, err)
	}
	e.touchIndex(abs)

	diff := patch.UnifiedDiff(relPath, string(before), after)
	return ok(fmt.Sprintf("Edited %s\n\n%s", relPath, diff))
}

// ApplyMultiPatch implements the MultiPatch change type of spec §6/§4.7: an
// ordered list of hunks applied atomically to one file.
func (e *Executor) ApplyMultiPatch(relPath string, hunks []patch.Hunk) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	before, err := os.ReadFile(abs)
	if err != nil {
		return fail("failed to read %s: %v", relPath, err)
	}

	after, err := patch.ApplyMulti(string(before), hunks)
	if err != nil {
		return fail("%v", err)
	}

	e.recordModify(abs, before)
	if err := os.WriteFile(abs, []byte(after), 0644); err != nil {
		return fail("failed to write %s: %v", relPath, err)
	}
	e.touchIndex(abs)

	diff := patch.UnifiedDiff(relPath, string(before), after)
	return ok(fmt.Sprintf("Applied %d hunks to %s\n\n%s", len(hunks), relPath, diff))
}
