package delta

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/xonecas/agentcore/internal/filesearch"
)

// FileSnapshot holds mtime+size+content for change detection and undo.
type FileSnapshot struct {
	ModTime time.Time
	Size    int64
	Content []byte // pre-read for undo; nil for large files
}

// maxSnapshotFileSize is the max file size we pre-read for undo (1 MB).
const maxSnapshotFileSize = 1 << 20

// skipDirs are directories skipped during snapshot walks even when
// gitignore-allow is set — build caches and vendor trees are never
// undo-worthy, regardless of the workspace's gitignore policy.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true,
	".venv": true, "vendor": true, ".cache": true, ".next": true,
	"dist": true, "build": true, "target": true,
}

// SnapshotDir walks root and returns a map of relative path -> FileSnapshot,
// skipping whatever root's .gitignore excludes (spec's gitignore-allow
// override bypasses this the same way it bypasses traversal elsewhere) plus
// the fixed skipDirs list. Files under maxSnapshotFileSize have their
// content pre-read for undo.
func SnapshotDir(root string) map[string]FileSnapshot {
	return snapshotDir(root, false)
}

// SnapshotDirAllowGitignored behaves like SnapshotDir but also captures
// gitignored files, for workspaces where allow_gitignored_files is set and a
// shell command may legitimately touch them.
func SnapshotDirAllowGitignored(root string) map[string]FileSnapshot {
	return snapshotDir(root, true)
}

func snapshotDir(root string, allowGitignored bool) map[string]FileSnapshot {
	matcher, err := filesearch.NewGitignoreMatcher(filepath.Join(root, ".gitignore"))
	if err != nil {
		matcher, _ = filesearch.NewGitignoreMatcher("")
	}

	snap := make(map[string]FileSnapshot)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || matcher.MatchesUnlessAllowed(rel, true, allowGitignored) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.MatchesUnlessAllowed(rel, false, allowGitignored) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fs := FileSnapshot{ModTime: info.ModTime(), Size: info.Size()}
		if info.Size() <= maxSnapshotFileSize {
			fs.Content, _ = os.ReadFile(path)
		}
		snap[rel] = fs
		return nil
	})
	return snap
}

// RecordDeltas compares pre/post snapshots and records deltas for undo.
func RecordDeltas(dt *Tracker, root string, pre, post map[string]FileSnapshot) {
	// New or modified files.
	for rel, postInfo := range post {
		absPath := filepath.Join(root, rel)
		preInfo, existed := pre[rel]
		if !existed {
			dt.RecordCreate(absPath)
			continue
		}
		if preInfo.ModTime != postInfo.ModTime || preInfo.Size != postInfo.Size {
			dt.RecordModify(absPath, preInfo.Content)
		}
	}
	// Deleted files — existed in pre but not in post.
	for rel, preInfo := range pre {
		if _, exists := post[rel]; !exists {
			absPath := filepath.Join(root, rel)
			if preInfo.Content != nil {
				dt.RecordModify(absPath, preInfo.Content)
			}
		}
	}
}
