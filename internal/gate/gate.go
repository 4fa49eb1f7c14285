// Package gate implements the workflow gate of spec §4.4: a pure decision
// function that, given the tool calls accumulated in one model turn, the
// most recent assistant text, and the workspace, produces a
// state.PendingToolBatch — deciding what runs immediately, what gets
// cached, what's a loop, and what needs human approval. Grounded in the
// teacher's internal/llm/loop.go repeated-call detection (the
// last-3-identical-calls warning) generalised into the spec's stricter
// windowed loop-detection rule, and in
// original_source/ai_workflow.rs's run_command interception.
package gate

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	jsoniter "github.com/json-iterator/go"

	"github.com/xonecas/agentcore/internal/protocol"
	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/toolkit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stagnationLimit is N from spec §4.4: "unchanged for N consecutive tool
// turns (N=4)".
const stagnationLimit = 4

// readFamilyLimit / defaultFamilyLimit are the loop-detection thresholds
// of spec §4.4 step 3.
const (
	readFamilyLimit    = 3
	defaultFamilyLimit = 2
)

var loopExempt = map[string]bool{
	"get_editor_state":        true,
	"get_workspace_structure": true,
}

var readFamily = map[string]bool{
	"read_file":       true,
	"read_file_range": true,
	"grep_search":     true,
}

var mutationFamily = map[string]bool{
	"edit_file": true, "apply_edit": true, "apply_patch": true,
	"write_file": true, "create_file": true,
}

var destructiveConfirmFamily = map[string]bool{
	"create_directory": true, "move_file": true, "copy_file": true,
}

// Gate evaluates tool-call batches against one workspace. Stagnation
// tracking is per-Gate (one Gate per active session, matching the ring
// buffer's process-local reset in internal/state).
type Gate struct {
	executor *toolkit.Executor
	store    *state.Store
	log      zerolog.Logger

	lastFingerprint string
	stagnationCount int
}

// New creates a Gate wired to executor (for immediate dispatch) and store
// (for the cache, loop history, and approved-roots it reads/writes).
func New(executor *toolkit.Executor, store *state.Store, log zerolog.Logger) *Gate {
	return &Gate{executor: executor, store: store, log: log.With().Str("component", "gate").Logger()}
}

// whitespaceFingerprint collapses all whitespace runs to a single space,
// for stagnation comparison (spec §4.4).
func whitespaceFingerprint(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// canonicalize reparses and reserialises argsJSON so that key order and
// whitespace differences don't defeat cache/loop comparisons (spec §4.4
// step 1).
func canonicalize(argsJSON []byte) string {
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return string(argsJSON)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(argsJSON)
	}
	return string(out)
}

// Evaluate runs the full per-call pipeline and returns the resulting batch.
func (g *Gate) Evaluate(ctx context.Context, calls []protocol.ToolCallMsg, assistantContent string) *state.PendingToolBatch {
	batch := &state.PendingToolBatch{Calls: calls}

	stagnant := g.checkStagnation(assistantContent)

	var deferredReads []protocol.ToolCallMsg
	batchSeen := make(map[string]int)
	for _, call := range calls {
		canonArgs := canonicalize(call.Arguments)
		batchKey := call.ToolName + "\x00" + canonArgs

		if stagnant && call.ToolName != "run_command" {
			g.pushError(batch, call, "You have called tools with no change in your response content for multiple turns. Stop calling tools and either report your findings or ask the user a question.")
			continue
		}

		if readFamily[call.ToolName] && call.ToolName != "grep_search" {
			if cached, ok := g.store.CacheLookup(call.ToolName, canonArgs); ok {
				g.pushResult(batch, call, cached, false)
				continue
			}
		}

		if !loopExempt[call.ToolName] {
			limit := defaultFamilyLimit
			if readFamily[call.ToolName] {
				limit = readFamilyLimit
			}
			count := g.store.CountInHistory(call.ToolName, canonArgs) + batchSeen[batchKey]
			batchSeen[batchKey]++
			if count >= limit {
				batch.LoopDetected = true
				g.pushError(batch, call, "Loop detected: you have called this exact tool with these exact arguments too many times. Try a different approach.")
				continue
			}
		}
		g.store.RecordCall(call.ToolName, canonArgs)

		switch {
		case call.ToolName == "run_command":
			g.interceptRunCommand(batch, call)
		case mutationFamily[call.ToolName]:
			g.applyMutation(ctx, batch, call)
		case call.ToolName == "delete_file":
			g.applyDelete(ctx, batch, call)
		case destructiveConfirmFamily[call.ToolName]:
			g.pushConfirm(batch, call)
		case call.ToolName == "read_file" || call.ToolName == "read_file_range":
			deferredReads = append(deferredReads, call)
		case toolkit.IsServerSideTool(call.ToolName):
			g.pushError(batch, call, "Tool "+call.ToolName+" must be handled by server")
		default:
			g.executeSync(ctx, batch, call)
		}
	}

	g.runParallelReads(ctx, batch, deferredReads)
	return batch
}

// checkStagnation implements spec §4.4's stagnation detection, keeping a
// small amount of state on the Gate itself (the fingerprint/counter are
// scoped to one orchestrator turn sequence, not cross-session — callers
// construct a fresh Gate per session, matching the ring buffer's
// process-local, per-session reset in internal/state).
func (g *Gate) checkStagnation(content string) bool {
	fp := whitespaceFingerprint(content)
	if fp == "" {
		g.lastFingerprint = ""
		g.stagnationCount = 0
		return false
	}
	if fp == g.lastFingerprint {
		g.stagnationCount++
	} else {
		g.stagnationCount = 0
		g.lastFingerprint = fp
	}
	return g.stagnationCount >= stagnationLimit
}

func (g *Gate) pushResult(batch *state.PendingToolBatch, call protocol.ToolCallMsg, content string, isErr bool) {
	batch.FileResults = append(batch.FileResults, state.CallResult{Call: call, Result: content, IsErr: isErr})
}

func (g *Gate) pushError(batch *state.PendingToolBatch, call protocol.ToolCallMsg, msg string) {
	g.pushResult(batch, call, msg, true)
}

func (g *Gate) pushConfirm(batch *state.PendingToolBatch, call protocol.ToolCallMsg) {
	desc := describeConfirm(call)
	batch.Confirms = append(batch.Confirms, state.ConfirmItem{Call: call, Description: desc})
	g.pushResult(batch, call, "Action proposed: "+desc, false)
}

func describeConfirm(call protocol.ToolCallMsg) string {
	return call.ToolName + " " + string(call.Arguments)
}

func (g *Gate) executeSync(ctx context.Context, batch *state.PendingToolBatch, call protocol.ToolCallMsg) {
	res, handled := g.executor.Dispatch(ctx, call.ToolName, call.Arguments)
	if !handled {
		g.pushError(batch, call, "unknown tool: "+call.ToolName)
		return
	}
	if !res.Success {
		g.pushError(batch, call, res.Error)
		return
	}
	g.pushResult(batch, call, res.Content, false)
}

func (g *Gate) applyMutation(ctx context.Context, batch *state.PendingToolBatch, call protocol.ToolCallMsg) {
	res, handled := g.executor.Dispatch(ctx, call.ToolName, call.Arguments)
	if !handled {
		g.pushError(batch, call, "unknown tool: "+call.ToolName)
		return
	}
	if !res.Success {
		g.pushError(batch, call, res.Error)
		return
	}
	g.pushResult(batch, call, res.Content, false)
}

func (g *Gate) applyDelete(ctx context.Context, batch *state.PendingToolBatch, call protocol.ToolCallMsg) {
	res, handled := g.executor.Dispatch(ctx, "delete_file", call.Arguments)
	if !handled || !res.Success {
		g.pushError(batch, call, res.Error)
		return
	}
	g.pushResult(batch, call, res.Content, false)
}

func (g *Gate) interceptRunCommand(batch *state.PendingToolBatch, call protocol.ToolCallMsg) {
	command := gjsonString(call.Arguments, "command")
	cwd := gjsonString(call.Arguments, "cwd")
	item := state.CommandItem{Call: call, Command: command, Cwd: cwd}
	if root, ok := toolkit.ExtractRootCommand(command); ok {
		item.RootCommand = root
	}
	item.CwdOutsideWorkspace = cwd != "" && !strings.HasPrefix(cwd, g.executor.Root())

	signals := toolkit.DetectProjectSignals(g.executor.Root())
	if ext := toolkit.IrrelevantLanguageExtension(command, signals); ext != "" {
		g.pushError(batch, call, "Blocked irrelevant language scan: workspace shows no "+ext+" signals")
		return
	}

	batch.Commands = append(batch.Commands, item)
}

func (g *Gate) runParallelReads(ctx context.Context, batch *state.PendingToolBatch, calls []protocol.ToolCallMsg) {
	if len(calls) == 0 {
		return
	}
	results := make([]toolkit.ToolResult, len(calls))
	grp, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		grp.Go(func() error {
			res, _ := g.executor.Dispatch(gctx, call.ToolName, call.Arguments)
			results[i] = res
			return nil
		})
	}
	_ = grp.Wait()

	for i, call := range calls {
		res := results[i]
		if !res.Success {
			g.pushError(batch, call, res.Error)
			continue
		}
		g.pushResult(batch, call, res.Content, false)
		g.store.CacheStore(call.ToolName, canonicalize(call.Arguments), res.Content)
	}
}

func gjsonString(argsJSON []byte, key string) string {
	var m map[string]any
	if err := json.Unmarshal(argsJSON, &m); err != nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
