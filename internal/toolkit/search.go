package toolkit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xonecas/agentcore/internal/filesearch"
)

const defaultMaxResults = 50

// GrepSearch implements grep_search: a bare regex content search, gitignore
// filtered, no context lines (the raw match).
func (e *Executor) GrepSearch(ctx context.Context, pattern string, maxResults int) ToolResult {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	searcher, err := filesearch.NewSearcher(e.root)
	if err != nil {
		return fail("failed to initialise search: %v", err)
	}
	results, err := searcher.Search(ctx, filesearch.Options{
		Pattern:         pattern,
		ContentSearch:   true,
		MaxResults:      maxResults,
		RootDir:         e.root,
		AllowGitignored: e.allowGitignored,
	})
	if err != nil {
		return fail("invalid pattern: %v", err)
	}
	return ok(formatGrepResults(results))
}

// CodebaseSearch implements codebase_search: a regex content search with
// ±2 lines of context and an optional comma-separated glob-ish file
// filter (spec §4.6).
func (e *Executor) CodebaseSearch(ctx context.Context, pattern, filePattern string, maxResults int) ToolResult {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	searcher, err := filesearch.NewSearcher(e.root)
	if err != nil {
		return fail("failed to initialise search: %v", err)
	}
	results, err := searcher.Search(ctx, filesearch.Options{
		Pattern:         pattern,
		ContentSearch:   true,
		MaxResults:      maxResults * 4, // over-fetch, then filter by file pattern
		RootDir:         e.root,
		AllowGitignored: e.allowGitignored,
	})
	if err != nil {
		return fail("invalid pattern: %v", err)
	}

	filtered := filterByFilePattern(results, filePattern)
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	return ok(formatWithContext(e.root, filtered, e.tsIndex))
}

// FindFiles implements find_files: a substring match over relative paths.
func (e *Executor) FindFiles(ctx context.Context, substr string, maxResults int) ToolResult {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	searcher, err := filesearch.NewSearcher(e.root)
	if err != nil {
		return fail("failed to initialise search: %v", err)
	}
	results, err := searcher.Search(ctx, filesearch.Options{
		Pattern:         escapeRegex(substr),
		MaxResults:      maxResults,
		RootDir:         e.root,
		AllowGitignored: e.allowGitignored,
	})
	if err != nil {
		return fail("%v", err)
	}
	return ok(formatPaths(results))
}

// FindFilesGlob implements find_files_glob: a filepath.Match-style glob
// applied to each relative path's base name and full path.
func (e *Executor) FindFilesGlob(pattern string, maxResults int) ToolResult {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	var matches []string
	err := e.walk(func(relPath string, isDir bool) error {
		if isDir {
			return nil
		}
		if ok1, _ := filepath.Match(pattern, relPath); ok1 {
			matches = append(matches, relPath)
		} else if ok2, _ := filepath.Match(pattern, filepath.Base(relPath)); ok2 {
			matches = append(matches, relPath)
		}
		if len(matches) >= maxResults {
			return errStopWalk
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return fail("%v", err)
	}
	return ok(strings.Join(matches, "\n"))
}

func formatGrepResults(results []filesearch.Result) string {
	if len(results) == 0 {
		return "no matches"
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s:%d: %s\n", r.Path, r.Line, r.Content)
	}
	return b.String()
}

func formatPaths(results []filesearch.Result) string {
	if len(results) == 0 {
		return "no matches"
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Path)
		b.WriteString("\n")
	}
	return b.String()
}

func filterByFilePattern(results []filesearch.Result, filePattern string) []filesearch.Result {
	if filePattern == "" {
		return results
	}
	globs := strings.Split(filePattern, ",")
	for i := range globs {
		globs[i] = strings.TrimSpace(globs[i])
	}
	var out []filesearch.Result
	for _, r := range results {
		for _, g := range globs {
			if g == "" {
				continue
			}
			if matched, _ := filepath.Match(g, filepath.Base(r.Path)); matched {
				out = append(out, r)
				break
			}
			if strings.Contains(r.Path, g) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func escapeRegex(s string) string {
	special := `\.+*?()|[]{}^$`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
