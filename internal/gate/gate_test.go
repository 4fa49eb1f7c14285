package gate

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/xonecas/agentcore/internal/protocol"
	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/toolkit"
)

func newTestGate(t *testing.T) (*Gate, string) {
	t.Helper()
	root := t.TempDir()
	st := state.New(root)
	ex := toolkit.NewExecutor(root, nil, nil, st)
	return New(ex, st, zerolog.Nop()), root
}

func call(id, name string, argsJSON string) protocol.ToolCallMsg {
	return protocol.ToolCallMsg{ToolCallID: id, ToolName: name, Arguments: []byte(argsJSON)}
}

func TestSyncToolExecutesImmediately(t *testing.T) {
	g, _ := newTestGate(t)
	calls := []protocol.ToolCallMsg{call("1", "write_file", `{"path":"a.txt","content":"hi"}`)}
	batch := g.Evaluate(context.Background(), calls, "doing work")
	if len(batch.FileResults) != 1 || batch.FileResults[0].IsErr {
		t.Fatalf("got %+v", batch.FileResults)
	}
}

func TestRunCommandGoesToCommands(t *testing.T) {
	g, _ := newTestGate(t)
	calls := []protocol.ToolCallMsg{call("1", "run_command", `{"command":"ls -la"}`)}
	batch := g.Evaluate(context.Background(), calls, "listing files")
	if len(batch.Commands) != 1 || batch.Commands[0].RootCommand != "ls" {
		t.Fatalf("got %+v", batch.Commands)
	}
}

func TestDestructiveNonEditGoesToConfirms(t *testing.T) {
	g, _ := newTestGate(t)
	calls := []protocol.ToolCallMsg{call("1", "create_directory", `{"path":"sub"}`)}
	batch := g.Evaluate(context.Background(), calls, "making a directory")
	if len(batch.Confirms) != 1 {
		t.Fatalf("got %+v", batch.Confirms)
	}
}

func TestParallelReadsAllReturn(t *testing.T) {
	g, root := newTestGate(t)
	ex := toolkit.NewExecutor(root, nil, nil, nil)
	ex.WriteFile("a.txt", "A")
	ex.WriteFile("b.txt", "B")
	calls := []protocol.ToolCallMsg{
		call("1", "read_file", `{"path":"a.txt"}`),
		call("2", "read_file", `{"path":"b.txt"}`),
	}
	batch := g.Evaluate(context.Background(), calls, "reading files")
	if len(batch.FileResults) != 2 {
		t.Fatalf("got %+v", batch.FileResults)
	}
}

func TestLoopDetectionBlocksExcessiveIdenticalCalls(t *testing.T) {
	g, root := newTestGate(t)
	ex := toolkit.NewExecutor(root, nil, nil, nil)
	ex.WriteFile("a.go", "package main\n")

	args := `{"pattern":"foo"}`
	for i := 0; i < 3; i++ {
		batch := g.Evaluate(context.Background(), []protocol.ToolCallMsg{call("x", "grep_search", args)}, "searching")
		if batch.LoopDetected {
			t.Fatalf("round %d: unexpected loop detection", i)
		}
	}
	batch := g.Evaluate(context.Background(), []protocol.ToolCallMsg{call("x", "grep_search", args)}, "searching")
	if !batch.LoopDetected {
		t.Fatal("expected loop detection on 4th identical grep_search")
	}
}

func TestLoopDetectionWithinSingleBatchIsPositional(t *testing.T) {
	g, root := newTestGate(t)
	ex := toolkit.NewExecutor(root, nil, nil, nil)
	ex.WriteFile("a.go", "package main\n")

	args := `{"pattern":"foo"}`
	calls := []protocol.ToolCallMsg{
		call("1", "grep_search", args),
		call("2", "grep_search", args),
		call("3", "grep_search", args),
		call("4", "grep_search", args),
	}
	batch := g.Evaluate(context.Background(), calls, "searching")
	if !batch.LoopDetected {
		t.Fatal("expected loop detection on 4th identical grep_search in one batch")
	}
	if len(batch.FileResults) != 4 {
		t.Fatalf("expected all 4 calls to resolve in FileResults, got %+v", batch.FileResults)
	}
	for i, id := range []string{"1", "2", "3"} {
		r := batch.FileResults[i]
		if r.Call.ToolCallID != id || r.IsErr {
			t.Fatalf("call %s: expected successful execution, got %+v", id, r)
		}
	}
	last := batch.FileResults[3]
	if last.Call.ToolCallID != "4" || !last.IsErr {
		t.Fatalf("call 4: expected loop-detected error, got %+v", last)
	}
}

func TestStagnationBlocksNonRunCommandCalls(t *testing.T) {
	g, _ := newTestGate(t)
	for i := 0; i < 4; i++ {
		g.Evaluate(context.Background(), nil, "same content")
	}
	batch := g.Evaluate(context.Background(), []protocol.ToolCallMsg{call("1", "write_file", `{"path":"a.txt","content":"x"}`)}, "same content")
	if len(batch.FileResults) != 1 || !batch.FileResults[0].IsErr {
		t.Fatalf("expected stagnation error, got %+v", batch.FileResults)
	}
}
