package patch

import "testing"

func TestApplyExactMatch(t *testing.T) {
	got, err := Apply("func f() {\n\treturn 1\n}\n", "return 1", "return 2")
	if err != nil {
		t.Fatal(err)
	}
	want := "func f() {\n\treturn 2\n}\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestApplyAmbiguous(t *testing.T) {
	content := "let x = 1;\nlet x = 1;\n"
	_, err := Apply(content, "let x = 1;", "let x = 2;")
	if err == nil {
		t.Fatal("expected ambiguous error")
	}
	ae, ok := err.(*AmbiguousError)
	if !ok || ae.Occurrences != 2 {
		t.Fatalf("got %v", err)
	}
}

func TestApplyNotFound(t *testing.T) {
	_, err := Apply("abc", "xyz", "123")
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("got %v", err)
	}
}

func TestApplyFuzzyReindent(t *testing.T) {
	content := "func f() {\n    if true {\n        doSomething()\n    }\n}\n"
	old := "if true {\ndoSomething()\n}\n"
	newText := "if true {\n    doSomethingElse()\n}\n"
	got, err := Apply(content, old, newText)
	if err != nil {
		t.Fatal(err)
	}
	want := "func f() {\n    if true {\n        doSomethingElse()\n    }\n}\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestPatchRoundTrip(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	old, new_ := "beta", "delta"
	forward, err := Apply(content, old, new_)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Apply(forward, new_, old)
	if err != nil {
		t.Fatal(err)
	}
	if back != content {
		t.Fatalf("round trip mismatch: got %q want %q", back, content)
	}
}

func TestApplyMultiAtomic(t *testing.T) {
	content := "let x = 1;\nlet x = 1;\nlet y = 2;\n"
	hunks := []Hunk{
		{OldText: "let x = 1;", NewText: "let x = 9;"},
		{OldText: "let y = 2;", NewText: "let y = 9;"},
	}
	_, err := ApplyMulti(content, hunks)
	if err == nil {
		t.Fatal("expected validation failure for ambiguous first hunk")
	}
}

func TestApplyMultiSequential(t *testing.T) {
	content := "one\ntwo\nthree\n"
	hunks := []Hunk{
		{OldText: "one", NewText: "ONE"},
		{OldText: "three", NewText: "THREE"},
	}
	got, err := ApplyMulti(content, hunks)
	if err != nil {
		t.Fatal(err)
	}
	want := "ONE\ntwo\nTHREE\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
