package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xonecas/agentcore/internal/hashline"
)

// ResolvedReference is a CodeReference's content as it exists on disk right
// now — recomputed on every call, never cached in the document (spec §6:
// "resolved on demand against the workspace, never inlined").
type ResolvedReference struct {
	CodeReference
	Text     string
	Stale    bool // current file hash differs from GitHash, if one was recorded
	NotFound bool
}

// Resolve reads ref.File under root and slices out its recorded line range.
func Resolve(root string, ref CodeReference) (ResolvedReference, error) {
	out := ResolvedReference{CodeReference: ref}

	abs := filepath.Join(root, ref.File)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			out.NotFound = true
			return out, nil
		}
		return out, fmt.Errorf("resolve %s: %w", ref.File, err)
	}

	content := string(data)
	if ref.GitHash != "" && hashline.FileHash(content) != ref.GitHash {
		out.Stale = true
	}

	lines := strings.Split(content, "\n")
	start, end := ref.StartLine, ref.EndLine
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		out.Text = ""
		return out, nil
	}
	out.Text = strings.Join(lines[start-1:end], "\n")
	return out, nil
}
