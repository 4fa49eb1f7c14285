package state

import (
	"fmt"

	"github.com/xonecas/agentcore/internal/toolkit"
)

// Store implements toolkit.EditorState so a single executor can be wired
// directly to the shared state store's editor context.

func (s *Store) OpenFile(absPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.ActiveFile = absPath
	s.editor.CursorLine = 1
	s.editor.Selection = ""
	return nil
}

func (s *Store) GotoLine(line int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor.ActiveFile == "" {
		return fmt.Errorf("no file open")
	}
	if line < 1 {
		return fmt.Errorf("invalid line %d", line)
	}
	s.editor.CursorLine = line
	return nil
}

func (s *Store) Selection() (text string, startLine, endLine int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Selection, s.editor.CursorLine, s.editor.CursorLine
}

func (s *Store) ReplaceSelection(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor.ActiveFile == "" {
		return fmt.Errorf("no file open")
	}
	s.editor.Selection = text
	return nil
}

func (s *Store) InsertAtCursor(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor.ActiveFile == "" {
		return fmt.Errorf("no file open")
	}
	s.editor.Selection = text
	return nil
}

func (s *Store) Snapshot() toolkit.EditorSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editorSnapshot()
}

var _ toolkit.EditorState = (*Store)(nil)
