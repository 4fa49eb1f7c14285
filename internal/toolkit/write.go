package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile implements write_file/create_file: overwrites (or creates) a
// file with the given content, creating parent directories as needed.
func (e *Executor) WriteFile(relPath, content string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}

	if before, readErr := os.ReadFile(abs); readErr == nil {
		e.recordModify(abs, before)
	} else {
		e.recordCreate(abs)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fail("failed to create parent directories: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return fail("failed to write file: %v", err)
	}
	e.touchIndex(abs)
	return ok(fmt.Sprintf("Wrote %s (%d bytes)", relPath, len(content)))
}

// CreateDirectory implements create_directory.
func (e *Executor) CreateDirectory(relPath string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fail("failed to create directory: %v", err)
	}
	return ok(fmt.Sprintf("Created directory %s", relPath))
}

// DeleteFile implements delete_file. A regular file's content is recorded
// for undo (via the delta tracker, when one is attached) before removal,
// since the content is gone once this returns; a directory is removed
// without a snapshot.
func (e *Executor) DeleteFile(relPath string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	info, statErr := os.Stat(abs)
	if statErr != nil {
		return fail("cannot delete %s: %v", relPath, statErr)
	}
	if !info.IsDir() {
		if before, readErr := os.ReadFile(abs); readErr == nil {
			e.recordModify(abs, before)
		}
	}
	if err := os.RemoveAll(abs); err != nil {
		return fail("failed to delete %s: %v", relPath, err)
	}
	e.touchIndex(abs)
	return ok(fmt.Sprintf("Deleted %s", relPath))
}

// MoveFile implements move_file.
func (e *Executor) MoveFile(srcRel, dstRel string) ToolResult {
	srcAbs, err := e.resolvePath(srcRel)
	if err != nil {
		return fail("source: %v", err)
	}
	dstAbs, err := e.resolvePath(dstRel)
	if err != nil {
		return fail("destination: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0755); err != nil {
		return fail("failed to create destination directory: %v", err)
	}
	if err := os.Rename(srcAbs, dstAbs); err != nil {
		return fail("failed to move %s to %s: %v", srcRel, dstRel, err)
	}
	e.touchIndex(srcAbs)
	e.touchIndex(dstAbs)
	return ok(fmt.Sprintf("Moved %s to %s", srcRel, dstRel))
}

// CopyFile implements copy_file.
func (e *Executor) CopyFile(srcRel, dstRel string) ToolResult {
	srcAbs, err := e.resolvePath(srcRel)
	if err != nil {
		return fail("source: %v", err)
	}
	dstAbs, err := e.resolvePath(dstRel)
	if err != nil {
		return fail("destination: %v", err)
	}
	content, err := os.ReadFile(srcAbs)
	if err != nil {
		return fail("failed to read %s: %v", srcRel, err)
	}
	if err := os.MkdirAll(filepath.Dir(dstAbs), 0755); err != nil {
		return fail("failed to create destination directory: %v", err)
	}
	if err := os.WriteFile(dstAbs, content, 0644); err != nil {
		return fail("failed to write %s: %v", dstRel, err)
	}
	e.touchIndex(dstAbs)
	return ok(fmt.Sprintf("Copied %s to %s", srcRel, dstRel))
}
