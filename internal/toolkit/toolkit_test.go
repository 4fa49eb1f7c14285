package toolkit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	return NewExecutor(root, nil, nil, nil), root
}

func TestReadFileMissingReturnsMarker(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.ReadFile("nope.txt")
	if !res.Success || res.Content != emptyFileMarker {
		t.Fatalf("got %+v", res)
	}
}

func TestReadFileRoundTrip(t *testing.T) {
	e, root := newTestExecutor(t)
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	res := e.ReadFile("a.txt")
	if !res.Success || res.Content != "hello\n" {
		t.Fatalf("got %+v", res)
	}
}

func TestResolvePathRejectsEscape(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.ReadFile("../outside.txt")
	if res.Success {
		t.Fatal("expected path escape to be rejected")
	}
}

func TestWriteThenEditFile(t *testing.T) {
	e, _ := newTestExecutor(t)
	if res := e.WriteFile("f.go", "package main\n\nfunc f() {\n\treturn 1\n}\n"); !res.Success {
		t.Fatalf("write failed: %+v", res)
	}
	res := e.EditFile("f.go", "return 1", "return 2")
	if !res.Success {
		t.Fatalf("edit failed: %+v", res)
	}
	read := e.ReadFile("f.go")
	if read.Content != "package main\n\nfunc f() {\n\treturn 2\n}\n" {
		t.Fatalf("got %q", read.Content)
	}
}

func TestEditFileCreatesWhenOldTextEmpty(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.EditFile("new.txt", "", "hello\n")
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	if read := e.ReadFile("new.txt"); read.Content != "hello\n" {
		t.Fatalf("got %q", read.Content)
	}
}

func TestDeleteFile(t *testing.T) {
	e, root := newTestExecutor(t)
	path := filepath.Join(root, "gone.txt")
	os.WriteFile(path, []byte("x"), 0644)
	if res := e.DeleteFile("gone.txt"); !res.Success {
		t.Fatalf("got %+v", res)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
}

func TestMoveAndCopyFile(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.WriteFile("src.txt", "content")
	if res := e.CopyFile("src.txt", "dst.txt"); !res.Success {
		t.Fatalf("copy failed: %+v", res)
	}
	if res := e.ReadFile("dst.txt"); res.Content != "content" {
		t.Fatalf("got %+v", res)
	}
	if res := e.MoveFile("src.txt", "moved.txt"); !res.Success {
		t.Fatalf("move failed: %+v", res)
	}
	if res := e.ReadFile("src.txt"); res.Content != emptyFileMarker {
		t.Fatalf("expected src.txt gone, got %+v", res)
	}
}

func TestGetWorkspaceStructure(t *testing.T) {
	e, root := newTestExecutor(t)
	os.MkdirAll(filepath.Join(root, "sub"), 0755)
	os.WriteFile(filepath.Join(root, "sub", "file.go"), []byte("x"), 0644)
	res := e.GetWorkspaceStructure("", 2)
	if !res.Success {
		t.Fatalf("got %+v", res)
	}
	if !strings.Contains(res.Content, "sub/") || !strings.Contains(res.Content, "file.go") {
		t.Fatalf("got %q", res.Content)
	}
}

func TestGrepSearch(t *testing.T) {
	e, _ := newTestExecutor(t)
	e.WriteFile("a.go", "func Foo() {}\n")
	res := e.GrepSearch(context.Background(), "Foo", 0)
	if !res.Success || !strings.Contains(res.Content, "a.go:1:") {
		t.Fatalf("got %+v", res)
	}
}

func TestServerSideToolRejected(t *testing.T) {
	if !IsServerSideTool("attempt_completion") {
		t.Fatal("expected attempt_completion to be rejected locally")
	}
	if IsServerSideTool("read_file") {
		t.Fatal("read_file must not be treated as server-side")
	}
}

func TestExtractRootCommand(t *testing.T) {
	cases := map[string]string{
		"ls -la":                     "ls",
		"sudo rm -rf /tmp/x":         "rm",
		"FOO=bar go test ./...":      "go",
		"cat a.txt | grep foo":       "cat",
		"make build && make test":    "make",
	}
	for cmd, want := range cases {
		got, ok := ExtractRootCommand(cmd)
		if !ok || got != want {
			t.Fatalf("%q: got (%q, %v), want %q", cmd, got, ok, want)
		}
	}
}

func TestDispatchBoundedTool(t *testing.T) {
	e, _ := newTestExecutor(t)
	res, handled := e.Dispatch(context.Background(), "write_file", []byte(`{"path":"x.txt","content":"hi"}`))
	if !handled || !res.Success {
		t.Fatalf("got handled=%v res=%+v", handled, res)
	}
	if _, handled := e.Dispatch(context.Background(), "run_command", nil); handled {
		t.Fatal("run_command must not be in the bounded set")
	}
}
