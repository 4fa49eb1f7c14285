package treesitter

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/xonecas/agentcore/internal/filesearch"
)

// Index holds a project-wide symbol map built from tree-sitter parsing, used
// by the bounded tool set to bound codebase_search's enrichment to whole
// symbol bodies instead of a fixed line window (spec §4.6's codebase_search).
type Index struct {
	mu              sync.RWMutex
	files           map[string][]Symbol // relPath -> symbols
	root            string
	allowGitignored bool
}

// NewIndex creates an empty index rooted at dir.
func NewIndex(root string) *Index {
	return &Index{
		files: make(map[string][]Symbol),
		root:  root,
	}
}

// SetAllowGitignored applies the workspace's gitignore-allow override (spec
// §6 "gitignore-allow flag") to this index's own traversal, matching the
// bounded tool set's executor so the two never disagree about what "the
// project" contains.
func (idx *Index) SetAllowGitignored(allow bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.allowGitignored = allow
}

// Build walks the project tree, parsing every supported file.
// Respects .gitignore via filesearch.GitignoreMatcher, unless the
// gitignore-allow override is set.
func (idx *Index) Build() error {
	gitignorePath := filepath.Join(idx.root, ".gitignore")
	matcher, err := filesearch.NewGitignoreMatcher(gitignorePath)
	if err != nil {
		matcher, _ = filesearch.NewGitignoreMatcher("")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	allow := idx.allowGitignored

	return filepath.WalkDir(idx.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(idx.root, path)
		if err != nil {
			return nil
		}

		// Skip .git and gitignored paths.
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matcher.MatchesUnlessAllowed(rel, true, allow) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.MatchesUnlessAllowed(rel, false, allow) {
			return nil
		}
		if !Supported(path) {
			return nil
		}

		// Skip large files (>1MB).
		info, err := d.Info()
		if err != nil || info.Size() > 1<<20 {
			return nil
		}

		syms, err := ParseFile(path)
		if err != nil || len(syms) == 0 {
			return nil
		}
		idx.files[rel] = syms
		return nil
	})
}

// UpdateFile re-parses a single file and updates the index.
func (idx *Index) UpdateFile(absPath string) {
	rel, err := filepath.Rel(idx.root, absPath)
	if err != nil || !Supported(absPath) {
		return
	}
	syms, err := ParseFile(absPath)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err != nil || len(syms) == 0 {
		delete(idx.files, rel)
		return
	}
	idx.files[rel] = syms
}

// Files returns a snapshot of all indexed file paths (sorted is not guaranteed).
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	paths := make([]string, 0, len(idx.files))
	for p := range idx.files {
		paths = append(paths, p)
	}
	return paths
}

// Symbols returns symbols for a given relative path.
func (idx *Index) Symbols(relPath string) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.files[relPath]
}

// EnclosingSymbol returns the innermost indexed symbol in relPath whose
// [StartLine, EndLine] contains line, for codebase_search's symbol-bounded
// enrichment: a match inside a function should show the whole function body,
// not a fixed ±N line window that might cut it mid-signature or mid-brace.
func (idx *Index) EnclosingSymbol(relPath string, line int) (Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best, found := Symbol{}, false
	for _, s := range idx.files[relPath] {
		if sym, ok := narrowestContaining(s, line); ok {
			if !found || sym.EndLine-sym.StartLine < best.EndLine-best.StartLine {
				best, found = sym, true
			}
		}
	}
	return best, found
}

// narrowestContaining recurses into s.Children to find the smallest symbol
// range that still contains line, so a method body match prefers the method
// over its enclosing type.
func narrowestContaining(s Symbol, line int) (Symbol, bool) {
	if line < s.StartLine || line > s.EndLine {
		return Symbol{}, false
	}
	for _, child := range s.Children {
		if sym, ok := narrowestContaining(child, line); ok {
			return sym, true
		}
	}
	return s, true
}

// Snapshot returns a copy of the full index map.
func (idx *Index) Snapshot() map[string][]Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]Symbol, len(idx.files))
	for k, v := range idx.files {
		out[k] = v
	}
	return out
}
