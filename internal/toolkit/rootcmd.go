package toolkit

import (
	"os"
	"path/filepath"
	"strings"
)

// ExtractRootCommand returns the effective program name of a shell command
// line, skipping pipe/seq/and/or separators and leading env-setting
// prefixes (sudo, env, command, time, VAR=val). Used by the approval
// coordinator to cache "approve always" decisions by root command rather
// than the full command line (SPEC_FULL.md supplemented feature, grounded
// on original_source/lib.rs::extract_root_command).
func ExtractRootCommand(command string) (string, bool) {
	seg := firstSegment(command, "|", ";")
	seg = firstSegment(seg, "&&")
	seg = firstSegment(seg, "||")

	tokens := strings.Fields(seg)
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		switch {
		case tok == "sudo" || tok == "env" || tok == "command" || tok == "time":
			i++
			continue
		case strings.Contains(tok, "=") && !strings.HasPrefix(tok, "./") && !strings.Contains(tok, "/"):
			i++
			continue
		}
		break
	}
	if i >= len(tokens) {
		return "", false
	}
	return tokens[i], true
}

// firstSegment returns the text before the first occurrence of any sep.
func firstSegment(s string, seps ...string) string {
	cut := len(s)
	for _, sep := range seps {
		if idx := strings.Index(s, sep); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return s[:cut]
}

// languageSignals lists, per ecosystem, the marker files used by
// DetectProjectSignals. Grounded on original_source/ai_workflow.rs's
// should_block_irrelevant_language_scan, generalised from its
// Rust-workspace-only special case into a reusable per-language signal
// table (SPEC_FULL.md supplemented feature).
var languageSignals = map[string][]string{
	"rust":       {"Cargo.toml"},
	"python":     {"pyproject.toml", "requirements.txt", "Pipfile", "setup.py", ".python-version"},
	"go":         {"go.mod"},
	"node":       {"package.json"},
	"java":       {"pom.xml", "build.gradle", "build.gradle.kts"},
	"ruby":       {"Gemfile"},
	"dotnet":     {"*.csproj", "*.sln"},
}

// ProjectSignals reports, for each known language, whether the workspace
// rooted at dir shows markers of that language.
type ProjectSignals map[string]bool

// DetectProjectSignals walks languageSignals against dir's top level, for
// use by the gate's run_command irrelevant-language heuristic (spec §4.4:
// "commands list with irrelevant-language heuristics").
func DetectProjectSignals(dir string) ProjectSignals {
	out := make(ProjectSignals, len(languageSignals))
	for lang, markers := range languageSignals {
		for _, m := range markers {
			if strings.ContainsAny(m, "*?[") {
				matches, _ := filepath.Glob(filepath.Join(dir, m))
				if len(matches) > 0 {
					out[lang] = true
					break
				}
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				out[lang] = true
				break
			}
		}
	}
	return out
}

// IsIrrelevantLanguageScan reports whether command looks like a file hunt
// for ext (e.g. ".py") in a workspace whose only strong signal is a
// different language than ext's, mirroring the original's Python-in-Rust
// special case but generalised across the language table.
func IsIrrelevantLanguageScan(command, ext string, signals ProjectSignals) bool {
	if !strings.Contains(command, "find") {
		return false
	}
	needle := "*" + ext
	if !strings.Contains(command, needle) && !strings.Contains(command, ext+" ") && !strings.Contains(command, ext+`"`) {
		return false
	}
	targetLang := extToLanguage(ext)
	if targetLang != "" && signals[targetLang] {
		return false
	}
	for lang, present := range signals {
		if lang != targetLang && present {
			return true
		}
	}
	return false
}

// knownExtensions lists every extension IsIrrelevantLanguageScan can map
// back to a language, for callers (like the shell's defense-in-depth block
// function) that need to probe a command against the whole table without
// knowing in advance which language's files it might be hunting for.
var knownExtensions = []string{".py", ".rs", ".go", ".js", ".ts", ".jsx", ".tsx", ".java", ".rb", ".cs"}

// IsIrrelevantLanguageCommand reports whether command looks like a file hunt
// for any known-but-absent language's source files in the workspace
// described by signals, trying every extension IsIrrelevantLanguageScan
// recognizes.
func IsIrrelevantLanguageCommand(command string, signals ProjectSignals) bool {
	return IrrelevantLanguageExtension(command, signals) != ""
}

// IrrelevantLanguageExtension returns the extension command appears to hunt
// for when the workspace's signals rule that language out, or "" if nothing
// in knownExtensions matches. Shared by the gate's run_command interception
// (for its error message) and the shell's defense-in-depth block function
// (which only needs the bool via IsIrrelevantLanguageCommand).
func IrrelevantLanguageExtension(command string, signals ProjectSignals) string {
	for _, ext := range knownExtensions {
		if IsIrrelevantLanguageScan(command, ext, signals) {
			return ext
		}
	}
	return ""
}

func extToLanguage(ext string) string {
	switch ext {
	case ".py":
		return "python"
	case ".rs":
		return "rust"
	case ".go":
		return "go"
	case ".js", ".ts", ".jsx", ".tsx":
		return "node"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".cs":
		return "dotnet"
	default:
		return ""
	}
}

// ToolCallStatus is the lifecycle of one dispatched tool call, surfaced to
// the UI event stream's ToolUpdate variant (spec §4.2/§"UI event stream").
type ToolCallStatus int

const (
	ToolCallPending ToolCallStatus = iota
	ToolCallRunning
	ToolCallAwaitingApproval
	ToolCallCompleted
	ToolCallFailed
	ToolCallRejected
)

func (s ToolCallStatus) String() string {
	switch s {
	case ToolCallPending:
		return "pending"
	case ToolCallRunning:
		return "running"
	case ToolCallAwaitingApproval:
		return "awaiting_approval"
	case ToolCallCompleted:
		return "completed"
	case ToolCallFailed:
		return "failed"
	case ToolCallRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
