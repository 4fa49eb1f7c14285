package toolkit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xonecas/agentcore/internal/treesitter"
)

func TestCodebaseSearchExpandsToEnclosingSymbolWhenIndexed(t *testing.T) {
	root := t.TempDir()
	src := `package sample

func Needle() int {
	x := 1
	return x
}

func other() {}
`
	if err := os.WriteFile(filepath.Join(root, "sample.go"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	idx := treesitter.NewIndex(root)
	if err := idx.Build(); err != nil {
		t.Fatal(err)
	}

	e := NewExecutor(root, nil, idx, nil)
	res := e.CodebaseSearch(context.Background(), "return x", "", 10)
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	if !strings.Contains(res.Content, "func Needle() int {") {
		t.Fatalf("expected enclosing function signature in output, got:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "> ") {
		t.Fatalf("expected the matched line to be marked, got:\n%s", res.Content)
	}
}

func TestCodebaseSearchFallsBackToFixedWindowWithoutIndex(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("l1\nl2\nneedle\nl4\nl5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewExecutor(root, nil, nil, nil)
	res := e.CodebaseSearch(context.Background(), "needle", "", 10)
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	if strings.Count(res.Content, "\n") > 8 {
		t.Fatalf("expected a small ±2 line window without a symbol index, got:\n%s", res.Content)
	}
}
