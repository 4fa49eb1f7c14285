package approval

import (
	"context"

	"github.com/xonecas/agentcore/internal/delta"
	"github.com/xonecas/agentcore/internal/shell"
)

// ShellRunner adapts the teacher's in-process POSIX shell to CommandRunner,
// so an approved run_command executes without depending on the host's
// actual /bin/sh. Unlike the structured file-mutation tools (edit_file,
// write_file, ...), a shell command can touch any file under root through no
// API agentcore controls, so ShellRunner brackets each command with a
// directory-wide snapshot and folds the diff into dt — giving arbitrary
// shell-command side effects the same undo coverage as a direct edit
// (spec §4.5: "apply-immediately semantics with undoable snapshots").
type ShellRunner struct {
	sh              *shell.Shell
	dt              *delta.Tracker
	root            string
	allowGitignored bool
}

// NewShellRunner wraps sh for use as a Coordinator's CommandRunner. dt may be
// nil, in which case commands run without undo tracking.
func NewShellRunner(sh *shell.Shell, dt *delta.Tracker, root string) *ShellRunner {
	return &ShellRunner{sh: sh, dt: dt, root: root}
}

// SetAllowGitignored applies the workspace's gitignore-allow override to the
// before/after snapshots this runner takes around each command.
func (r *ShellRunner) SetAllowGitignored(allow bool) {
	r.allowGitignored = allow
}

// Run executes command and reports its combined output and exit code. cwd is
// accepted for interface symmetry with a host-terminal runner; this shell is
// anchored to its own root and ignores a caller-supplied cwd override.
func (r *ShellRunner) Run(ctx context.Context, command, cwd string) (string, int, error) {
	snapshot := delta.SnapshotDir
	if r.allowGitignored {
		snapshot = delta.SnapshotDirAllowGitignored
	}

	var pre map[string]delta.FileSnapshot
	if r.dt != nil {
		pre = snapshot(r.root)
	}

	stdout, stderr, err := r.sh.Exec(ctx, command)

	if r.dt != nil {
		post := snapshot(r.root)
		delta.RecordDeltas(r.dt, r.root, pre, post)
	}

	output := stdout
	if stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += stderr
	}
	return output, shell.ExitCode(err), nil
}
