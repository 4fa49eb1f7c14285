package reasoning

import "testing"

func TestSimpleThinkBlock(t *testing.T) {
	p := New()
	r := p.Process("<think>hello</think>world")
	if r.Reasoning != "hello" || r.Text != "world" {
		t.Fatalf("got %+v", r)
	}
	if p.InReasoning() {
		t.Fatal("expected reasoning to be closed")
	}
}

func TestTextBeforeThink(t *testing.T) {
	p := New()
	r := p.Process("prefix <think>thought</think> suffix")
	if r.Text != "prefix  suffix" || r.Reasoning != "thought" {
		t.Fatalf("got %+v", r)
	}
}

func TestStreamingChunks(t *testing.T) {
	p := New()

	r1 := p.Process("Hello <thi")
	if r1.Text != "Hello " || r1.Reasoning != "" {
		t.Fatalf("chunk1: got %+v", r1)
	}

	r2 := p.Process("nk>This is")
	if r2.Text != "" || r2.Reasoning != "This is" {
		t.Fatalf("chunk2: got %+v", r2)
	}

	r3 := p.Process(" reasoning</think> done")
	if r3.Text != " done" || r3.Reasoning != " reasoning" {
		t.Fatalf("chunk3: got %+v", r3)
	}
}

func TestThinkingFormat(t *testing.T) {
	p := New()
	r := p.Process("<thinking>deep thought</thinking>answer")
	if r.Reasoning != "deep thought" || r.Text != "answer" {
		t.Fatalf("got %+v", r)
	}
}

func TestMultipleReasoningBlocksInOneChunk(t *testing.T) {
	p := New()
	r := p.Process("a<think>one</think>b<think>two</think>c")
	if r.Text != "abc" {
		t.Fatalf("text: got %q", r.Text)
	}
	if r.Reasoning != "onetwo" {
		t.Fatalf("reasoning: got %q", r.Reasoning)
	}
}

func TestReset(t *testing.T) {
	p := New()
	p.Process("<think>partial")
	p.Reset()
	if p.InReasoning() {
		t.Fatal("expected reset to clear in-reasoning state")
	}
	if p.tagBuffer != "" {
		t.Fatal("expected reset to clear tag buffer")
	}
}

func TestInterruptForTool(t *testing.T) {
	p := New()
	p.Process("<think>before tool")
	drained := p.InterruptForTool()
	if drained != "before tool" {
		t.Fatalf("got %q", drained)
	}
	if again := p.InterruptForTool(); again != "" {
		t.Fatalf("expected empty on second call, got %q", again)
	}
	// Parser resumes in the same state: still inside the reasoning block.
	if !p.InReasoning() {
		t.Fatal("expected reasoning state preserved across interrupt")
	}
	r := p.Process(" and after</think>visible")
	if r.Reasoning != " and after" || r.Text != "visible" {
		t.Fatalf("resumed parse: got %+v", r)
	}
}

func TestNoTagsPassThrough(t *testing.T) {
	p := New()
	r := p.Process("just plain text with <brackets> in it")
	if r.Text != "just plain text with <brackets> in it" || r.Reasoning != "" {
		t.Fatalf("got %+v", r)
	}
}
