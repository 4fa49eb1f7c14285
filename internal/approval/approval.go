// Package approval implements the approval coordinator of spec §4.5: the
// blocking protocol that presents a PendingToolBatch's commands and confirms
// to the user, waits for a decision without holding any long-lived lock, and
// folds that decision back into the batch's results.
//
// Grounded on original_source/commands/tools.rs's approve_tool /
// approve_tool_decision / approve_single_command / submit_command_result
// command handlers: a decision string ("approve_once" | "approve_always" |
// anything else means skip), a standing "approve_always" root-command cache,
// per-call skip results carrying an explicit "do not retry" instruction, and
// exit code 130 treated as a user cancellation rather than a failure.
package approval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/toolkit"
)

// Decision is the user's response to one pending command or confirm item.
type Decision string

const (
	ApproveOnce   Decision = "approve_once"
	ApproveAlways Decision = "approve_always"
	Skip          Decision = "skip"
)

// CommandRunner executes an approved run_command item. Implementations wrap
// an in-process shell (e.g. internal/shell) or a host terminal; Coordinator
// only needs exit code, combined output, and any launch error.
type CommandRunner interface {
	Run(ctx context.Context, command, cwd string) (output string, exitCode int, err error)
}

// Coordinator drives the approval protocol for one workspace's pending
// batches.
type Coordinator struct {
	store    *state.Store
	executor *toolkit.Executor
	runner   CommandRunner
	log      zerolog.Logger
}

// New creates a Coordinator. runner may be nil if run_command approval is
// not supported by the host (commands then resolve with an explicit error).
func New(store *state.Store, executor *toolkit.Executor, runner CommandRunner, log zerolog.Logger) *Coordinator {
	return &Coordinator{store: store, executor: executor, runner: runner, log: log.With().Str("component", "approval").Logger()}
}

// AwaitBatch installs batch on the store and blocks until every command and
// confirm in it has been resolved, or ctx is cancelled. It never holds a
// store lock while waiting (spec §4.5: "awaits without holding long-lived
// locks").
func (c *Coordinator) AwaitBatch(ctx context.Context, batch *state.PendingToolBatch) {
	if batch.Pending() == 0 {
		return
	}
	done := c.store.SetPendingBatch(batch)
	defer c.store.ClearPendingBatch()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Decide applies decision to every still-pending command/confirm in the
// current batch (the "batch" approve/skip path, approve_tool_decision).
func (c *Coordinator) Decide(ctx context.Context, decision Decision) {
	batch := c.store.PendingBatch()
	if batch == nil {
		return
	}

	if decision == ApproveAlways {
		for _, cmd := range batch.Commands {
			if cmd.RootCommand != "" {
				c.store.ApproveRootAlways(cmd.RootCommand)
			}
		}
	}

	approved := decision == ApproveOnce || decision == ApproveAlways

	for _, cmd := range append([]state.CommandItem(nil), batch.Commands...) {
		c.DecideCommand(ctx, cmd.Call.ToolCallID, approved)
	}
	for _, conf := range append([]state.ConfirmItem(nil), batch.Confirms...) {
		c.decideConfirm(ctx, conf, approved)
	}
}

// DecideCommand resolves a single run_command item by call id (the
// approve_single_command path, for per-command approval UIs).
func (c *Coordinator) DecideCommand(ctx context.Context, callID string, approved bool) {
	batch := c.store.PendingBatch()
	if batch == nil {
		return
	}
	var item *state.CommandItem
	for i := range batch.Commands {
		if batch.Commands[i].Call.ToolCallID == callID {
			item = &batch.Commands[i]
			break
		}
	}
	if item == nil {
		return
	}

	if !approved {
		c.store.ResolveCall(callID, state.CallResult{
			Call:  item.Call,
			Result: fmt.Sprintf("User explicitly rejected this command: '%s'. Do NOT retry this command or similar commands. Ask the user how they would like to proceed instead.", item.Command),
			IsErr: true,
		})
		return
	}

	if c.runner == nil {
		c.store.ResolveCall(callID, state.CallResult{
			Call:  item.Call,
			Result: "no command runner configured for this host",
			IsErr: true,
		})
		return
	}

	output, exitCode, err := c.runner.Run(ctx, item.Command, item.Cwd)
	res := resultFor(item.Command, output, exitCode, err)
	res.Call = item.Call
	c.store.ResolveCall(callID, res)
}

// SubmitCommandResult folds in a result obtained out-of-band (e.g. a host
// terminal that streamed the command itself), mirroring submit_command_result.
func (c *Coordinator) SubmitCommandResult(callID, output string, exitCode int) {
	batch := c.store.PendingBatch()
	if batch == nil {
		return
	}
	var item *state.CommandItem
	for i := range batch.Commands {
		if batch.Commands[i].Call.ToolCallID == callID {
			item = &batch.Commands[i]
			break
		}
	}
	if item == nil {
		return
	}
	res := resultFor(item.Command, output, exitCode, nil)
	res.Call = item.Call
	c.store.ResolveCall(callID, res)
}

func resultFor(command, output string, exitCode int, runErr error) state.CallResult {
	clean := StripANSI(output)
	switch {
	case runErr != nil:
		return state.CallResult{Result: fmt.Sprintf("failed to launch command: %s", runErr), IsErr: true}
	case exitCode == 0:
		return state.CallResult{Result: clean}
	case exitCode == 130:
		// SIGINT: the user cancelled the command mid-run. Treat as a skip,
		// not a failure worth retrying.
		return state.CallResult{Result: fmt.Sprintf("User skipped: '%s'. This command was not executed.", command), IsErr: true}
	case clean == "":
		return state.CallResult{Result: fmt.Sprintf("Command failed with exit code %d (no output)", exitCode), IsErr: true}
	default:
		return state.CallResult{Result: fmt.Sprintf("Command failed with exit code %d:\n%s", exitCode, clean), IsErr: true}
	}
}

func (c *Coordinator) decideConfirm(ctx context.Context, conf state.ConfirmItem, approved bool) {
	if !approved {
		c.store.ResolveCall(conf.Call.ToolCallID, state.CallResult{
			Call:  conf.Call,
			Result: fmt.Sprintf("User explicitly rejected this action: '%s'. Do NOT retry this action. Ask the user how they would like to proceed instead.", conf.Description),
			IsErr: true,
		})
		return
	}
	res, handled := c.executor.Dispatch(ctx, conf.Call.ToolName, conf.Call.Arguments)
	if !handled || !res.Success {
		c.store.ResolveCall(conf.Call.ToolCallID, state.CallResult{Call: conf.Call, Result: res.Error, IsErr: true})
		return
	}
	c.store.ResolveCall(conf.Call.ToolCallID, state.CallResult{Call: conf.Call, Result: res.Content})
}

var ansiPattern = regexp.MustCompile(
	"\x1b\\[[0-9;?]*[A-Za-z]" + // CSI sequences
		"|\x1b\\][^\x07\x1b]*(?:\x07|\x1b\\\\)" + // OSC sequences
		"|\x1b[PX^_][^\x1b]*\x1b\\\\" + // DCS/SOS/PM/APC sequences
		"|\x1b[\x20-\x2f]*[\x30-\x7e]", // other escape sequences
)

// StripANSI removes terminal escape sequences from command output before it
// is shown in chat or sent to the model, matching the original's
// strip_ansi_codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
