package toolkit

import (
	"fmt"
	"os"
	"strings"
)

// emptyFileMarker is returned for a missing or empty file instead of an
// error, matching original_source/tools.rs::read_file's marker behaviour
// (spec §4.6: "read_file on an empty or missing file returns a marker
// string rather than failing").
const emptyFileMarker = "[empty file]"

// ReadFile implements read_file: returns the whole file, or emptyFileMarker
// if it is missing or empty.
func (e *Executor) ReadFile(relPath string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ok(emptyFileMarker)
		}
		return fail("failed to read file: %v", err)
	}
	if len(content) == 0 {
		return ok(emptyFileMarker)
	}
	return ok(string(content))
}

// ReadFileRange implements read_file_range: returns lines [start, end]
// (1-indexed, inclusive). start<=0 means "from the top"; end<=0 or past EOF
// means "through the end".
func (e *Executor) ReadFileRange(relPath string, start, end int) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ok(emptyFileMarker)
		}
		return fail("failed to read file: %v", err)
	}
	if len(content) == 0 {
		return ok(emptyFileMarker)
	}
	lines := strings.Split(string(content), "\n")
	if start <= 0 {
		start = 1
	}
	if start > len(lines) {
		return fail("start line %d out of range (file has %d lines)", start, len(lines))
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return fail("invalid range: start (%d) > end (%d)", start, end)
	}
	return ok(strings.Join(lines[start-1:end], "\n"))
}

// GetFileInfo implements get_file_info.
func (e *Executor) GetFileInfo(relPath string) ToolResult {
	abs, err := e.resolvePath(relPath)
	if err != nil {
		return fail("%v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fail("failed to stat %s: %v", relPath, err)
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "path: %s\ntype: %s\n", relPath, kind)
	if !info.IsDir() {
		fmt.Fprintf(&b, "size: %d bytes\n", info.Size())
	}
	fmt.Fprintf(&b, "modified: %s\n", info.ModTime().Format("2006-01-02T15:04:05Z07:00"))
	return ok(b.String())
}
