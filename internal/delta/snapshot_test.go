package delta

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotDirSkipsGitignoredFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "ignored.txt\n")
	writeFile(t, root, "kept.txt", "a")
	writeFile(t, root, "ignored.txt", "b")

	snap := SnapshotDir(root)
	if _, ok := snap["kept.txt"]; !ok {
		t.Fatal("expected kept.txt to be snapshotted")
	}
	if _, ok := snap["ignored.txt"]; ok {
		t.Fatal("expected ignored.txt to be skipped")
	}
}

func TestSnapshotDirAllowGitignoredIncludesIgnoredFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "ignored.txt\n")
	writeFile(t, root, "ignored.txt", "b")

	snap := SnapshotDirAllowGitignored(root)
	if _, ok := snap["ignored.txt"]; !ok {
		t.Fatal("expected ignored.txt to be snapshotted with the allow override")
	}
}

func TestSnapshotDirSkipsFixedSkipDirsEvenWhenAllowed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/dep.go", "package dep")

	snap := SnapshotDirAllowGitignored(root)
	for rel := range snap {
		if filepath.Dir(rel) == "vendor" {
			t.Fatalf("expected vendor/ to be skipped, got %v", snap)
		}
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
