package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/j-94/waggle-dance/cmd/waggledance/internal"
	"github.com/j-94/waggle-dance/internal/agent"
	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/llm/providers"
	"github.com/j-94/waggle-dance/internal/observability"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/planner"
	"github.com/j-94/waggle-dance/internal/scheduler"
	"github.com/j-94/waggle-dance/internal/tui"
	"github.com/j-94/waggle-dance/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Plan a goal and execute the resulting task graph",
	Long: `Plan the goal into a task graph and execute it concurrently.

Execution starts before planning finishes: the first runnable task is
dispatched as soon as the planner emits it. Tasks that fail recoverably
record their error text so dependent tasks can react to it; tasks that
need human input prompt on the terminal, or park the run when stdin is
not interactive.

A saved graph can be resumed with --graph, skipping the planner, or
extended with --graph --replan, which hands the saved tasks back to the
planner together with the new goal.`,
	Example: `  # Plan and execute a goal
  waggledance run "write a competitive analysis of hosted CI products"

  # Cap concurrency and save the plan for later
  waggledance run "audit the billing module" --max-concurrency 4 --save-graph plan.yaml

  # Resume a saved plan without re-planning
  waggledance run --graph plan.yaml

  # Extend a saved plan with new tasks
  waggledance run "also cover the EU region" --graph plan.yaml --replan

  # Watch execution in a live view
  waggledance run "summarize this quarter's incidents" --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

// Flags
var (
	runGraphFile      string
	runSaveGraphFile  string
	runMaxConcurrency int
	runTimeout        time.Duration
	runReplan         bool
	runWatch          bool
	runJSON           bool
	runQuiet          bool
)

func init() {
	runCmd.Flags().StringVar(&runGraphFile, "graph", "", "Load a saved task graph (YAML snapshot)")
	runCmd.Flags().StringVar(&runSaveGraphFile, "save-graph", "", "Save the executed task graph to this file")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Cap concurrent tasks (0 uses the settings file)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Abort the run after this duration (0 means no limit)")
	runCmd.Flags().BoolVar(&runReplan, "replan", false, "Re-enter planning to extend a loaded graph")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Render a live task view instead of packet lines")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Emit packets and the outcome as JSON")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress the packet stream; print only the outcome")
}

// runRun implements the run command
func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	req, err := buildRunRequest(args)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	tracer, stopTracing, err := setupTracing(ctx, logger)
	if err != nil {
		return err
	}
	defer stopTracing()

	runLog := observability.NewRunLogger(logger.Handler(), req.GoalID.String(), "run")

	planClient, err := providers.NewFromProfile(ctx, req.Settings.Plan)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to build planning client", err)
	}

	pl := planner.NewLLMPlanner(planClient,
		planner.WithLogger(logger),
		planner.WithTracer(tracer),
	)

	executorOpts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithTracer(tracer),
	}
	if fn := humanInput(cmd); fn != nil {
		executorOpts = append(executorOpts, agent.WithHumanInput(fn))
	}
	exec := agent.NewLLMExecutor(providers.NewFromProfile, executorOpts...)

	sched := scheduler.NewScheduler(pl, exec,
		scheduler.WithLogger(logger),
		scheduler.WithTracer(tracer),
	)

	bus := events.NewBus()
	req.OnPacket = bus.Sink()

	// Subscribe before the run starts so no packet is missed.
	stream, unsubscribe := bus.Subscribe(ctx, events.Filter{}, 512)
	defer unsubscribe()

	var (
		outcome *scheduler.ExecutionOutcome
		runErr  error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Closing the bus ends every subscriber stream once the run is over.
		defer bus.Close()
		outcome, runErr = sched.Run(ctx, *req)
	}()

	if runWatch && !runJSON {
		if err := tui.Watch(ctx, req.Goal, stream); err != nil {
			runLog.Warn(ctx, "watch view failed", "error", err)
		}
	} else {
		streamPackets(cmd, stream)
	}
	<-done

	if runSaveGraphFile != "" {
		if err := saveSnapshot(runSaveGraphFile, req, outcome); err != nil {
			runLog.Warn(ctx, "failed to save graph", "path", runSaveGraphFile, "error", err)
		} else {
			cmd.Printf("Saved graph to %s\n", runSaveGraphFile)
		}
	}

	if runErr != nil {
		runLog.Error(ctx, "run failed", "error", runErr)
		return runErr
	}

	printOutcome(cmd, outcome)

	if outcome.Suspended {
		return internal.NewCLIError(internal.ExitSuspended,
			fmt.Sprintf("run suspended pending human input on %s", strings.Join(outcome.Waiting, ", ")))
	}
	return nil
}

// buildRunRequest resolves the goal and graph for this invocation.
func buildRunRequest(args []string) (*scheduler.RunRequest, error) {
	var goal string
	if len(args) > 0 {
		goal = strings.TrimSpace(args[0])
	}

	req := &scheduler.RunRequest{
		GoalID:   types.NewID(),
		Settings: *settings,
	}
	if runMaxConcurrency > 0 {
		req.Settings.Execute.MaxConcurrency = runMaxConcurrency
	}

	if runGraphFile != "" {
		snap, err := dag.LoadSnapshotFile(runGraphFile)
		if err != nil {
			return nil, internal.WrapError(internal.ExitPlanError, "failed to load graph", err)
		}
		req.InitialGraph = snap.Graph
		req.DonePlanning = snap.DonePlanning && !runReplan
		if goal == "" {
			goal = snap.Goal
		}
		if !snap.GoalID.IsZero() {
			req.GoalID = snap.GoalID
		}
	}

	if goal == "" {
		return nil, internal.NewCLIError(internal.ExitError,
			"a goal is required: pass one as an argument or load a saved graph")
	}
	req.Goal = goal
	return req, nil
}

// newLogger installs the process logger according to the loaded settings.
func newLogger() (*slog.Logger, error) {
	var w io.Writer = os.Stderr
	if runWatch {
		// Log lines would tear the live view.
		w = io.Discard
	}
	handler, err := observability.NewHandler(w, settings.Logging.Format, settings.Logging.Level)
	if err != nil {
		return nil, internal.WrapError(internal.ExitConfigError, "invalid logging settings", err)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// setupTracing initializes span export and returns the tracer plus a
// shutdown function that flushes pending spans.
func setupTracing(ctx context.Context, logger *slog.Logger) (trace.Tracer, func(), error) {
	tp, err := observability.InitTracing(ctx, tracingConfig(settings.Tracing))
	if err != nil {
		return nil, nil, internal.WrapError(internal.ExitConfigError, "failed to initialize tracing", err)
	}
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownTracing(shutdownCtx, tp); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	return tp.Tracer("waggledance"), stop, nil
}

// tracingConfig maps file settings onto the tracing initializer's config.
// An unset sample rate means sample everything, consistent with the zero
// values elsewhere in the settings file.
func tracingConfig(cfg config.TracingConfig) observability.TracingConfig {
	rate := cfg.SampleRate
	if rate == 0 {
		rate = 1.0
	}
	return observability.TracingConfig{
		Enabled:     cfg.Enabled,
		Endpoint:    cfg.Endpoint,
		ServiceName: "waggledance",
		SampleRate:  rate,
		Insecure:    cfg.Insecure,
	}
}

// humanInput builds the clarification callback. When stdin is not a
// terminal there is nobody to ask, so tasks that need input park instead.
// The same applies in watch mode, where stdin belongs to the live view.
func humanInput(cmd *cobra.Command) agent.HumanInputFunc {
	if runWatch || !isInteractive() {
		return nil
	}

	// Concurrent tasks may ask at the same time; one question owns the
	// terminal at a time.
	var mu sync.Mutex
	reader := bufio.NewReader(os.Stdin)

	return func(ctx context.Context, node dag.Node, question string) (string, error) {
		mu.Lock()
		defer mu.Unlock()

		cmd.Printf("\n%s needs input: %s\n> ", node.Name, question)

		type answer struct {
			line string
			err  error
		}
		ch := make(chan answer, 1)
		go func() {
			line, err := reader.ReadString('\n')
			ch <- answer{line: line, err: err}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case a := <-ch:
			if a.err != nil {
				return "", a.err
			}
			return strings.TrimSpace(a.line), nil
		}
	}
}

// streamPackets drains the subscription, printing according to the output
// flags. It returns when the bus closes.
func streamPackets(cmd *cobra.Command, stream <-chan events.Envelope) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	theme := tui.DefaultTheme()
	for env := range stream {
		switch {
		case runQuiet:
			// drain so the bus never drops
		case runJSON:
			_ = enc.Encode(env.Packet)
		default:
			printPacket(cmd, theme, env)
		}
	}
}

// printPacket renders one packet as a log-style line. Token packets are
// skipped; interleaved token text from concurrent tasks is unreadable.
func printPacket(cmd *cobra.Command, theme *tui.Theme, env events.Envelope) {
	p := env.Packet
	if p.Kind == packet.PacketToken {
		return
	}
	status := packet.StatusOf(p.Kind)
	badge := theme.StatusStyle(status).Render(fmt.Sprintf("%-7s", status))
	line := fmt.Sprintf("%s  %-9s %s", badge, env.Node.ID, env.Node.Name)
	if detail := packetDetail(p); detail != "" {
		line += "  " + tui.Ellipsize(detail, 100)
	}
	cmd.Println(line)
}

// packetDetail picks the one line of a packet worth showing.
func packetDetail(p packet.Packet) string {
	switch {
	case p.Kind.Failure():
		return p.Message
	case p.Kind == packet.PacketHumanRequest:
		return p.Reason
	case p.Kind.Finishing():
		if p.Value != "" {
			return tui.FirstLine(p.Value)
		}
		return formatOutputs(p.Outputs)
	default:
		return ""
	}
}

// formatOutputs renders structured packet outputs as "key=value" pairs in
// key order.
func formatOutputs(outputs map[string]any) string {
	if len(outputs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, outputs[k]))
	}
	return strings.Join(parts, " ")
}

// saveSnapshot persists the executed plan. Only runs that got past
// planning have a graph worth saving.
func saveSnapshot(path string, req *scheduler.RunRequest, outcome *scheduler.ExecutionOutcome) error {
	if outcome == nil || outcome.Graph == nil {
		return types.NewError(types.GRAPH_EMPTY, "run produced no graph")
	}
	snap := &dag.Snapshot{
		Goal:         req.Goal,
		GoalID:       req.GoalID,
		DonePlanning: true,
		Graph:        outcome.Graph,
	}
	return snap.SaveFile(path)
}

// printOutcome renders the run summary.
func printOutcome(cmd *cobra.Command, outcome *scheduler.ExecutionOutcome) {
	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		_ = enc.Encode(outcome)
		return
	}
	if runQuiet && outcome.TasksFailed == 0 && !outcome.Suspended {
		cmd.Printf("%d tasks executed in %s\n",
			outcome.TasksExecuted, outcome.Duration.Round(time.Millisecond))
		printFinalResults(cmd, outcome)
		return
	}

	cmd.Println()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tSTATUS\tRESULT")
	for _, id := range outcome.Completed {
		if id == dag.RootID {
			continue
		}
		res := outcome.Results[id]
		status := "done"
		detail := tui.FirstLine(res.Value)
		if res.Err != nil {
			status = "failed"
			detail = res.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, nodeName(outcome, id), status, tui.Ellipsize(detail, 80))
	}
	for _, id := range outcome.Waiting {
		fmt.Fprintf(w, "%s\t%s\twaiting\tneeds human input\n", id, nodeName(outcome, id))
	}
	_ = w.Flush()

	cmd.Printf("\n%d tasks executed, %d failed in %s\n",
		outcome.TasksExecuted, outcome.TasksFailed, outcome.Duration.Round(time.Millisecond))

	printFinalResults(cmd, outcome)
}

func nodeName(outcome *scheduler.ExecutionOutcome, id string) string {
	if outcome.Graph != nil {
		if node, ok := outcome.Graph.Node(id); ok {
			return node.Name
		}
	}
	return id
}

// printFinalResults prints the full output of exit tasks, the ones nothing
// else depends on. Their output is the run's answer.
func printFinalResults(cmd *cobra.Command, outcome *scheduler.ExecutionOutcome) {
	if outcome.Graph == nil {
		return
	}
	for _, node := range outcome.Graph.Nodes {
		if node.ID == dag.RootID {
			continue
		}
		if len(outcome.Graph.Successors(node.ID)) > 0 {
			continue
		}
		res, ok := outcome.Results[node.ID]
		if !ok || res.Err != nil || res.Value == "" {
			continue
		}
		cmd.Printf("\n%s\n", res.Value)
	}
}
