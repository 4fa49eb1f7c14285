// Command agentcore is a manual-testing harness for the agentic execution
// core: it loads local configuration, connects a protocol.Client to a
// remote model service, wires the gate/approval/orchestrator stack to one
// workspace root, sends a single chat message, and prints every UI event
// until the turn completes. It is not a UI — a real frontend would consume
// Orchestrator.Events() the same way this harness does, rendered instead
// of printed.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/xonecas/agentcore/internal/approval"
	"github.com/xonecas/agentcore/internal/config"
	"github.com/xonecas/agentcore/internal/delta"
	"github.com/xonecas/agentcore/internal/gate"
	"github.com/xonecas/agentcore/internal/orchestrator"
	"github.com/xonecas/agentcore/internal/protocol"
	"github.com/xonecas/agentcore/internal/shell"
	"github.com/xonecas/agentcore/internal/state"
	"github.com/xonecas/agentcore/internal/toolkit"
	"github.com/xonecas/agentcore/internal/treesitter"
)

var version = "0.1.0"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the agentcore command tree: version, outline, and the
// `send` harness that drives one turn end to end.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		endpoint   string
		apiKey     string
		modelID    string
		root       string
	)

	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "agentcore — manual harness for the agentic execution core",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentcore v%s\n", version)
		},
	})

	sendCmd := &cobra.Command{
		Use:   "send [message]",
		Short: "connect, send one message, and print events until the turn completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), sendOpts{
				configPath: configPath,
				endpoint:   endpoint,
				apiKey:     apiKey,
				modelID:    modelID,
				root:       root,
				message:    args[0],
			})
		},
	}
	sendCmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to config.toml")
	sendCmd.Flags().StringVar(&endpoint, "endpoint", "", "override the default provider's endpoint (ws:// or wss://)")
	sendCmd.Flags().StringVar(&apiKey, "api-key", "", "override the stored API key for this run")
	sendCmd.Flags().StringVar(&modelID, "model", "", "override the default provider's model id")
	sendCmd.Flags().StringVar(&root, "root", ".", "workspace root the bounded tool set operates under")
	rootCmd.AddCommand(sendCmd)

	var outlineRoot, outlineFilter string
	var exportedOnly bool
	outlineCmd := &cobra.Command{
		Use:   "outline",
		Short: "print the tree-sitter symbol outline codebase_search enriches matches against",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutline(outlineRoot, outlineFilter, exportedOnly)
		},
	}
	outlineCmd.Flags().StringVar(&outlineRoot, "root", ".", "workspace root to index")
	outlineCmd.Flags().StringVar(&outlineFilter, "filter", "", "only include file paths containing this substring")
	outlineCmd.Flags().BoolVar(&exportedOnly, "exported-only", false, "limit the outline to each package's exported surface")
	rootCmd.AddCommand(outlineCmd)

	return rootCmd
}

func runOutline(root, filter string, exportedOnly bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}
	idx := treesitter.NewIndex(abs)
	if err := idx.Build(); err != nil {
		return fmt.Errorf("building symbol index: %w", err)
	}
	snap := idx.Snapshot()
	if exportedOnly {
		snap = treesitter.FilterExported(snap)
	}
	outline := treesitter.FormatOutlineFiltered(snap, filter)
	if outline == "" {
		fmt.Println("no symbols found")
		return nil
	}
	fmt.Print(outline)
	return nil
}

func defaultConfigPath() string {
	if dataDir, err := config.DataDir(); err == nil {
		p := filepath.Join(dataDir, "config.toml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(".", "config.toml")
}

type sendOpts struct {
	configPath string
	endpoint   string
	apiKey     string
	modelID    string
	root       string
	message    string
}

func runSend(ctx context.Context, opts sendOpts) error {
	logger, err := setupLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to set up logging: %v\n", err)
		logger = zerolog.Nop()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	providerName := cfg.DefaultProvider
	if providerName == "" {
		for name := range cfg.Providers {
			providerName = name
			break
		}
	}
	provCfg, ok := cfg.Providers[providerName]
	if !ok {
		return fmt.Errorf("no provider named %q configured", providerName)
	}
	if opts.endpoint != "" {
		provCfg.Endpoint = opts.endpoint
	}
	modelID := provCfg.Model
	if opts.modelID != "" {
		modelID = opts.modelID
	}
	apiKey := creds.GetAPIKey(providerName)
	if opts.apiKey != "" {
		apiKey = opts.apiKey
	}

	root, err := filepath.Abs(opts.root)
	if err != nil {
		return fmt.Errorf("resolving workspace root: %w", err)
	}

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("preparing data dir: %w", err)
	}
	deltaDB, err := sql.Open("sqlite", filepath.Join(dataDir, "deltas.db"))
	if err != nil {
		return fmt.Errorf("opening delta store: %w", err)
	}
	defer deltaDB.Close()
	if err := delta.EnsureSchema(deltaDB); err != nil {
		return fmt.Errorf("preparing delta schema: %w", err)
	}
	deltaTracker := delta.New(deltaDB)

	tsIndex := treesitter.NewIndex(root)
	tsIndex.SetAllowGitignored(cfg.Workspace.GitignoreAllow)
	if err := tsIndex.Build(); err != nil {
		logger.Warn().Err(err).Msg("failed to build symbol index, codebase_search will fall back to line-window context")
	}

	sh := shell.NewWithDefaults(root)
	st := state.New(root)

	executor := toolkit.NewExecutor(root, deltaTracker, tsIndex, st)
	executor.SetAllowGitignored(cfg.Workspace.GitignoreAllow)
	g := gate.New(executor, st, logger)
	runner := approval.NewShellRunner(sh, deltaTracker, root)
	runner.SetAllowGitignored(cfg.Workspace.GitignoreAllow)
	ap := approval.New(st, executor, runner, logger)

	client := protocol.New(provCfg.Endpoint, apiKey, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", provCfg.Endpoint, err)
	}
	defer client.Close()

	orch := orchestrator.New(client, g, st, ap, logger)

	deltaTracker.SetSession(sessionPlaceholder())
	deltaTracker.BeginTurn(time.Now().UnixNano())

	t, err := orch.StartTurn(ctx, opts.message, modelID, protocol.WorkspaceInfo{
		Root:      root,
		ProjectID: filepath.Base(root),
	})
	if err != nil {
		return fmt.Errorf("starting turn: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- orch.RunTurn(ctx, t, modelID) }()

	for {
		select {
		case ev, ok := <-orch.Events():
			if !ok {
				return <-done
			}
			printEvent(ev)
		case err := <-done:
			drainRemaining(orch.Events())
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainRemaining prints any events already queued once RunTurn has
// returned, so a burst of final events isn't dropped on exit.
func drainRemaining(events <-chan orchestrator.UIEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(ev)
		default:
			return
		}
	}
}

func printEvent(ev orchestrator.UIEvent) {
	switch ev.Kind {
	case orchestrator.EventMessageDelta:
		fmt.Print(ev.Chunk)
		if ev.IsFinal {
			fmt.Println()
		}
	case orchestrator.EventReasoningDelta:
		fmt.Fprintf(os.Stderr, "[reasoning] %s", ev.Chunk)
	case orchestrator.EventToolUpdate:
		fmt.Fprintf(os.Stderr, "\n[tool] %s (%v) %s\n", ev.ToolName, ev.Status, ev.FilePath)
	case orchestrator.EventChatError:
		fmt.Fprintf(os.Stderr, "\n[error] %s\n", ev.Message)
	case orchestrator.EventContextLengthExceeded:
		fmt.Fprintf(os.Stderr, "\n[context_length_exceeded] tokens=%d max=%d excess=%d hint=%s\n",
			ev.TokenCount, ev.MaxTokens, ev.Excess, ev.Hint)
	default:
		fmt.Fprintf(os.Stderr, "\n[%s] %+v\n", ev.Kind, ev)
	}
}

func setupLogging() (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return zerolog.Logger{}, err
	}
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return zerolog.Logger{}, err
	}
	logFile := filepath.Join(logDir, "agentcore.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Logger{}, err
	}
	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	return log.Logger, nil
}

// sessionPlaceholder stands in for the session id the server assigns on
// session_created; the harness doesn't wait for it before opening a delta
// turn since a manual single-message run has no prior turns to replay.
func sessionPlaceholder() string { return "harness" }
