package artifacts

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

const (
	busyMaxRetries    = 10
	busyBackoffStepMs = 50
	busyMaxBackoff    = time.Second
)

// schema mirrors the teacher's idempotent CREATE TABLE IF NOT EXISTS
// convention (internal/store.schema), extended with the FTS5 virtual table
// and sync triggers spec §6 requires: "indexes conversations, moments
// (FTS5-searchable), and code references; triggers keep FTS in sync."
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title      TEXT NOT NULL,
	created    INTEGER NOT NULL,
	updated    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS moments (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	content         TEXT NOT NULL,
	created         INTEGER NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS moments_fts USING fts5(
	content,
	content = 'moments',
	content_rowid = 'id'
);

CREATE TRIGGER IF NOT EXISTS moments_ai AFTER INSERT ON moments BEGIN
	INSERT INTO moments_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS moments_ad AFTER DELETE ON moments BEGIN
	INSERT INTO moments_fts(moments_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS moments_au AFTER UPDATE ON moments BEGIN
	INSERT INTO moments_fts(moments_fts, rowid, content) VALUES ('delete', old.id, old.content);
	INSERT INTO moments_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TABLE IF NOT EXISTS code_references (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	file            TEXT NOT NULL,
	start_line      INTEGER NOT NULL,
	end_line        INTEGER NOT NULL,
	git_hash        TEXT,
	context         TEXT,
	diff            TEXT
);

CREATE INDEX IF NOT EXISTS idx_moments_conversation ON moments(conversation_id);
CREATE INDEX IF NOT EXISTS idx_code_refs_conversation ON code_references(conversation_id);
`

// Index is the SQLite-backed search index described in spec §6. Unlike
// Store (one JSON file per conversation, the authoritative content), Index
// exists purely so moments and code references can be queried across every
// conversation without loading each document.
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenIndex creates or opens the index database at dbPath (conventionally
// ".zblade/index/conversations.db").
func OpenIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact index: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create artifact index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	if ix == nil {
		return nil
	}
	return ix.db.Close()
}

// IndexConversation upserts a conversation's summary row and fully replaces
// its moments and code references, so the index always mirrors the JSON
// document that was just saved.
func (ix *Index) IndexConversation(doc *Document) error {
	return ix.withBusyRetry(func() error {
		ix.mu.Lock()
		defer ix.mu.Unlock()

		tx, err := ix.db.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO conversations (id, project_id, title, created, updated)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET project_id=excluded.project_id, title=excluded.title, updated=excluded.updated`,
			doc.ConversationID, doc.ProjectID, doc.Title, doc.CreatedAt.Unix(), doc.UpdatedAt.Unix(),
		); err != nil {
			tx.Rollback()
			return err
		}

		if _, err := tx.Exec(`DELETE FROM moments WHERE conversation_id = ?`, doc.ConversationID); err != nil {
			tx.Rollback()
			return err
		}
		for _, m := range doc.Moments {
			if _, err := tx.Exec(
				`INSERT INTO moments (conversation_id, content, created) VALUES (?, ?, ?)`,
				doc.ConversationID, m.Content, m.CreatedAt.Unix(),
			); err != nil {
				tx.Rollback()
				return err
			}
		}

		if _, err := tx.Exec(`DELETE FROM code_references WHERE conversation_id = ?`, doc.ConversationID); err != nil {
			tx.Rollback()
			return err
		}
		for _, msg := range doc.Messages {
			for _, ref := range msg.Refs {
				if _, err := tx.Exec(
					`INSERT INTO code_references (conversation_id, file, start_line, end_line, git_hash, context, diff)
					 VALUES (?, ?, ?, ?, ?, ?, ?)`,
					doc.ConversationID, ref.File, ref.StartLine, ref.EndLine, ref.GitHash, ref.Context, ref.Diff,
				); err != nil {
					tx.Rollback()
					return err
				}
			}
		}

		return tx.Commit()
	})
}

// DeleteConversation removes a conversation and its moments/code-references
// from the index (companion to Store.Delete).
func (ix *Index) DeleteConversation(conversationID string) error {
	return ix.withBusyRetry(func() error {
		ix.mu.Lock()
		defer ix.mu.Unlock()
		if _, err := ix.db.Exec(`DELETE FROM moments WHERE conversation_id = ?`, conversationID); err != nil {
			return err
		}
		if _, err := ix.db.Exec(`DELETE FROM code_references WHERE conversation_id = ?`, conversationID); err != nil {
			return err
		}
		_, err := ix.db.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID)
		return err
	})
}

// MomentHit is one FTS5 search result.
type MomentHit struct {
	ConversationID string
	Content        string
}

// SearchMoments runs a full-text query across every conversation's moments.
func (ix *Index) SearchMoments(query string, limit int) ([]MomentHit, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(
		`SELECT m.conversation_id, m.content
		 FROM moments_fts f JOIN moments m ON m.id = f.rowid
		 WHERE moments_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search moments: %w", err)
	}
	defer rows.Close()

	var out []MomentHit
	for rows.Next() {
		var hit MomentHit
		if err := rows.Scan(&hit.ConversationID, &hit.Content); err != nil {
			continue
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// ListConversations returns the summary row of every indexed conversation
// belonging to projectID, most-recently-updated first.
func (ix *Index) ListConversations(projectID string) ([]Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Query(
		`SELECT id, project_id, title, created, updated FROM conversations
		 WHERE project_id = ? ORDER BY updated DESC`, projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var created, updated int64
		if err := rows.Scan(&d.ConversationID, &d.ProjectID, &d.Title, &created, &updated); err != nil {
			continue
		}
		d.CreatedAt = time.Unix(created, 0)
		d.UpdatedAt = time.Unix(updated, 0)
		out = append(out, d)
	}
	return out, rows.Err()
}

// isBusy reports whether err is a retryable SQLITE_BUSY condition, matching
// internal/store.IsSQLiteBusy.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry retries fn with the same step backoff the teacher's session
// store uses for write contention under WAL.
func (ix *Index) withBusyRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyMaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) || attempt == busyMaxRetries {
			return err
		}
		backoff := time.Duration((attempt+1)*busyBackoffStepMs) * time.Millisecond
		if backoff > busyMaxBackoff {
			backoff = busyMaxBackoff
		}
		time.Sleep(backoff)
		log.Debug().Int("attempt", attempt).Msg("artifact index busy, retrying")
	}
	return err
}
