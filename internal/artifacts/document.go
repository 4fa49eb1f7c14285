// Package artifacts implements the local artifact format of spec §6: one
// JSON document per conversation on disk, plus a SQLite index (internal/artifacts.Index)
// that makes moments and code references searchable without loading every
// document. Grounded on the teacher's internal/store (SQLite cache/session
// persistence idioms — busy-retry, WAL pragmas, idempotent schema), adapted
// from a single cache database into a JSON-document-per-conversation layout
// plus a separate search index, matching the spec's explicit "Per
// conversation a JSON document ... An accompanying SQLite database ...
// indexes conversations, moments (FTS5-searchable), and code references."
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is the schema version stamped into every persisted
// document, so a future format change can migrate on load.
const DocumentVersion = 1

// Document is the on-disk shape of one conversation (spec §6 "Local
// artifact format"). Messages hold immutable content; CodeReferences are
// resolved on demand against the workspace and never inlined.
type Document struct {
	Version        int            `json:"version"`
	ConversationID string         `json:"conversation_id"`
	ProjectID      string         `json:"project_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Title          string         `json:"title"`
	Messages       []Message      `json:"messages"`
	Moments        []Moment       `json:"moments"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Message is one immutable transcript entry.
type Message struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Reasoning string          `json:"reasoning,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Refs      []CodeReference `json:"code_references,omitempty"`
}

// Moment is an FTS5-searchable highlight attached to a conversation — a
// short user-authored or auto-generated annotation pinned to a point in the
// transcript (spec §6: "moments (FTS5-searchable)").
type Moment struct {
	ID        int64     `json:"id,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeReference points at a workspace location rather than embedding its
// content, so the document stays small and never goes stale in a way that
// silently misleads — resolving re-reads the workspace (spec §6: "resolved
// on demand against the workspace, never inlined").
type CodeReference struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	GitHash   string `json:"git_hash,omitempty"`
	Context   string `json:"context,omitempty"`
	Diff      string `json:"diff,omitempty"`
}

// New creates a fresh Document for a new conversation.
func New(projectID, title string) *Document {
	now := time.Now()
	return &Document{
		Version:        DocumentVersion,
		ConversationID: uuid.NewString(),
		ProjectID:      projectID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Title:          title,
	}
}

// Store persists Documents as individual JSON files under a conversations
// directory, matching the spec's per-conversation JSON document layout.
type Store struct {
	dir string
}

// OpenStore ensures dir exists and returns a Store rooted there.
func OpenStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.dir, conversationID+".json")
}

// Save writes doc to its JSON file, updating UpdatedAt first.
func (s *Store) Save(doc *Document) error {
	doc.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation %s: %w", doc.ConversationID, err)
	}
	tmp := s.path(doc.ConversationID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write conversation %s: %w", doc.ConversationID, err)
	}
	return os.Rename(tmp, s.path(doc.ConversationID))
}

// Load reads one conversation's document by id.
func (s *Store) Load(conversationID string) (*Document, error) {
	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", conversationID, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", conversationID, err)
	}
	return &doc, nil
}

// Delete removes a conversation's document file. Missing files are not an error.
func (s *Store) Delete(conversationID string) error {
	err := os.Remove(s.path(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
