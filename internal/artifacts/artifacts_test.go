package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xonecas/agentcore/internal/hashline"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "conversations.db")
	ix, err := OpenIndex(dbPath)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestStoreSaveLoadRoundTrips(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	doc := New("proj-1", "debugging the flaky test")
	doc.Messages = append(doc.Messages, Message{ID: "m1", Role: "user", Content: "why is this flaky"})

	if err := s.Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := s.Load(doc.ConversationID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Title != doc.Title || len(loaded.Messages) != 1 || loaded.Messages[0].Content != "why is this flaky" {
		t.Fatalf("got %+v", loaded)
	}
}

func TestStoreDeleteIsIdempotentOnMissingFile(t *testing.T) {
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("does-not-exist"); err != nil {
		t.Fatalf("expected no error deleting a missing document, got %v", err)
	}
}

func TestIndexConversationThenSearchMoments(t *testing.T) {
	ix := openTestIndex(t)
	doc := New("proj-1", "indexing test")
	doc.Moments = []Moment{
		{Content: "found the race condition in the worker pool", CreatedAt: time.Now()},
		{Content: "unrelated note about formatting", CreatedAt: time.Now()},
	}

	if err := ix.IndexConversation(doc); err != nil {
		t.Fatalf("IndexConversation: %v", err)
	}

	hits, err := ix.SearchMoments("race condition", 10)
	if err != nil {
		t.Fatalf("SearchMoments: %v", err)
	}
	if len(hits) != 1 || hits[0].ConversationID != doc.ConversationID {
		t.Fatalf("got %+v", hits)
	}
}

func TestIndexConversationReplacesMomentsOnReindex(t *testing.T) {
	ix := openTestIndex(t)
	doc := New("proj-1", "reindex test")
	doc.Moments = []Moment{{Content: "first moment", CreatedAt: time.Now()}}
	if err := ix.IndexConversation(doc); err != nil {
		t.Fatal(err)
	}

	doc.Moments = []Moment{{Content: "second moment", CreatedAt: time.Now()}}
	if err := ix.IndexConversation(doc); err != nil {
		t.Fatal(err)
	}

	hits, err := ix.SearchMoments("first", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected the stale moment to be gone after reindexing, got %+v", hits)
	}
	hits, err = ix.SearchMoments("second", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected the new moment to be searchable, got %+v", hits)
	}
}

func TestDeleteConversationRemovesItFromListings(t *testing.T) {
	ix := openTestIndex(t)
	doc := New("proj-1", "to be deleted")
	if err := ix.IndexConversation(doc); err != nil {
		t.Fatal(err)
	}
	if err := ix.DeleteConversation(doc.ConversationID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	list, err := ix.ListConversations("proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected an empty listing after delete, got %+v", list)
	}
}

func TestListConversationsOrdersByMostRecentlyUpdated(t *testing.T) {
	ix := openTestIndex(t)
	older := New("proj-1", "older")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := New("proj-1", "newer")
	newer.UpdatedAt = time.Now()

	if err := ix.IndexConversation(older); err != nil {
		t.Fatal(err)
	}
	if err := ix.IndexConversation(newer); err != nil {
		t.Fatal(err)
	}

	list, err := ix.ListConversations("proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ConversationID != newer.ConversationID {
		t.Fatalf("expected newer conversation first, got %+v", list)
	}
}

func TestResolveReadsCurrentLineRangeFromWorkspace(t *testing.T) {
	root := t.TempDir()
	content := "line one\nline two\nline three\nline four\n"
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ref := CodeReference{File: "a.go", StartLine: 2, EndLine: 3}
	resolved, err := Resolve(root, ref)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Text != "line two\nline three" {
		t.Fatalf("got %q", resolved.Text)
	}
	if resolved.Stale || resolved.NotFound {
		t.Fatalf("got %+v", resolved)
	}
}

func TestResolveFlagsStaleContentAgainstRecordedHash(t *testing.T) {
	root := t.TempDir()
	original := "package a\n"
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}
	ref := CodeReference{File: "a.go", StartLine: 1, EndLine: 1, GitHash: hashline.FileHash(original)}

	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a // changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := Resolve(root, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !resolved.Stale {
		t.Fatal("expected the reference to be flagged stale after the file changed")
	}
}

func TestResolveReportsNotFoundForMissingFile(t *testing.T) {
	root := t.TempDir()
	resolved, err := Resolve(root, CodeReference{File: "missing.go", StartLine: 1, EndLine: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !resolved.NotFound {
		t.Fatal("expected NotFound for a file that doesn't exist")
	}
}
