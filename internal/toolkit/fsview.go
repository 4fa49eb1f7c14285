package toolkit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xonecas/agentcore/internal/filesearch"
	"github.com/xonecas/agentcore/internal/treesitter"
)

// maxSymbolContextLines bounds how much of an enclosing symbol's body
// codebase_search will inline, so a match inside a huge generated function
// doesn't dump the whole file into the model's context window.
const maxSymbolContextLines = 200

// errStopWalk is a sentinel used to short-circuit walk() once a result cap
// is reached; it is never surfaced to callers.
var errStopWalk = errors.New("stop walk")

// walk visits every path under the executor's root, honouring the
// gitignore filter, invoking fn(relPath, isDir) for each. Returning
// errStopWalk from fn stops the walk early without producing an error.
func (e *Executor) walk(fn func(relPath string, isDir bool) error) error {
	return filepath.WalkDir(e.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if e.ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := fn(filepath.ToSlash(rel), d.IsDir()); err != nil {
			if err == errStopWalk {
				return filepath.SkipAll
			}
			return err
		}
		return nil
	})
}

// ListDirectory implements list_directory: an alias for get_workspace_structure
// at depth 1 (spec §4.6).
func (e *Executor) ListDirectory(relPath string) ToolResult {
	return e.GetWorkspaceStructure(relPath, 1)
}

// GetWorkspaceStructure implements get_workspace_structure: a tree render of
// relPath (or the workspace root if empty) to a bounded depth.
func (e *Executor) GetWorkspaceStructure(relPath string, maxDepth int) ToolResult {
	startAbs := e.root
	startRel := ""
	if relPath != "" {
		abs, err := e.resolvePath(relPath)
		if err != nil {
			return fail("%v", err)
		}
		startAbs = abs
		startRel = relPath
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	info, err := os.Stat(startAbs)
	if err != nil {
		return fail("failed to stat %s: %v", relPath, err)
	}
	if !info.IsDir() {
		return fail("%s is not a directory", relPath)
	}

	var b strings.Builder
	if startRel == "" {
		b.WriteString(".\n")
	} else {
		fmt.Fprintf(&b, "%s\n", startRel)
	}
	if err := e.renderTree(&b, startAbs, startRel, "", 1, maxDepth); err != nil {
		return fail("%v", err)
	}
	return ok(b.String())
}

func (e *Executor) renderTree(b *strings.Builder, absDir, relDir, prefix string, depth, maxDepth int) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var visible []os.DirEntry
	for _, d := range entries {
		rel := filepath.ToSlash(filepath.Join(relDir, d.Name()))
		if d.Name() == ".git" {
			continue
		}
		if e.ignored(rel, d.IsDir()) {
			continue
		}
		visible = append(visible, d)
	}

	for i, d := range visible {
		last := i == len(visible)-1
		branch := "├── "
		nextPrefix := prefix + "│   "
		if last {
			branch = "└── "
			nextPrefix = prefix + "    "
		}
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		fmt.Fprintf(b, "%s%s%s\n", prefix, branch, name)
		if d.IsDir() {
			childAbs := filepath.Join(absDir, d.Name())
			childRel := filepath.Join(relDir, d.Name())
			if err := e.renderTree(b, childAbs, childRel, nextPrefix, depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatWithContext renders codebase_search results with surrounding
// context per match (spec §4.6). When tsIndex has parsed the matched file,
// a match falling inside an indexed symbol is expanded to that symbol's
// whole body (bounded by maxSymbolContextLines); otherwise it falls back to
// a plain ±2 line window.
func formatWithContext(root string, results []filesearch.Result, tsIndex *treesitter.Index) string {
	if len(results) == 0 {
		return "no matches"
	}
	var b strings.Builder
	for _, r := range results {
		lines := readLines(filepath.Join(root, r.Path))
		lo, hi := symbolBounds(tsIndex, r.Path, r.Line)
		if lo == 0 {
			lo, hi = max(1, r.Line-2), r.Line+2
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		fmt.Fprintf(&b, "%s:%d:\n", r.Path, r.Line)
		for ln := lo; ln <= hi; ln++ {
			marker := "  "
			if ln == r.Line {
				marker = "> "
			}
			if ln-1 < len(lines) {
				fmt.Fprintf(&b, "%s%d: %s\n", marker, ln, lines[ln-1])
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// symbolBounds looks up the symbol enclosing line in relPath and returns its
// line range capped to maxSymbolContextLines, or (0, 0) if tsIndex has no
// symbol covering this match — the caller then falls back to a fixed window.
func symbolBounds(tsIndex *treesitter.Index, relPath string, line int) (lo, hi int) {
	if tsIndex == nil {
		return 0, 0
	}
	sym, ok := tsIndex.EnclosingSymbol(relPath, line)
	if !ok {
		return 0, 0
	}
	lo, hi = sym.StartLine, sym.EndLine
	if hi-lo > maxSymbolContextLines {
		hi = lo + maxSymbolContextLines
	}
	return lo, hi
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
