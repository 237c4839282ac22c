package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-94/waggle-dance/cmd/waggledance/internal"
	"github.com/j-94/waggle-dance/internal/config"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/scheduler"
	"github.com/j-94/waggle-dance/internal/types"
)

// resetRunState pins the package globals the run command reads and restores
// them when the test ends.
func resetRunState(t *testing.T) {
	t.Helper()
	prevSettings := settings
	prevGraph, prevSave := runGraphFile, runSaveGraphFile
	prevMax, prevReplan := runMaxConcurrency, runReplan
	prevJSON, prevQuiet, prevWatch := runJSON, runQuiet, runWatch
	t.Cleanup(func() {
		settings = prevSettings
		runGraphFile, runSaveGraphFile = prevGraph, prevSave
		runMaxConcurrency, runReplan = prevMax, prevReplan
		runJSON, runQuiet, runWatch = prevJSON, prevQuiet, prevWatch
	})

	settings = config.DefaultSettings()
	runGraphFile, runSaveGraphFile = "", ""
	runMaxConcurrency, runReplan = 0, false
	runJSON, runQuiet, runWatch = false, false, false
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func writeTestSnapshot(t *testing.T, snap *dag.Snapshot) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := snap.SaveFile(path); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}
	return path
}

func TestBuildRunRequest_GoalRequired(t *testing.T) {
	resetRunState(t)

	_, err := buildRunRequest(nil)
	if err == nil {
		t.Fatal("expected an error without a goal")
	}
	var cliErr *internal.CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T", err)
	}
	if cliErr.Code != internal.ExitError {
		t.Errorf("expected exit code %d, got %d", internal.ExitError, cliErr.Code)
	}
}

func TestBuildRunRequest_FreshGoal(t *testing.T) {
	resetRunState(t)

	req, err := buildRunRequest([]string{"  write a report  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Goal != "write a report" {
		t.Errorf("expected trimmed goal, got %q", req.Goal)
	}
	if req.GoalID.IsZero() {
		t.Error("expected a generated goal id")
	}
	if req.InitialGraph != nil || req.DonePlanning {
		t.Error("fresh runs should have no initial graph")
	}
	if req.Settings.Execute.MaxConcurrency != 0 {
		t.Errorf("expected default concurrency, got %d", req.Settings.Execute.MaxConcurrency)
	}
}

func TestBuildRunRequest_ConcurrencyOverride(t *testing.T) {
	resetRunState(t)
	runMaxConcurrency = 3

	req, err := buildRunRequest([]string{"goal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Settings.Execute.MaxConcurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", req.Settings.Execute.MaxConcurrency)
	}
	if settings.Execute.MaxConcurrency != 0 {
		t.Error("flag override must not mutate the loaded settings")
	}
}

func TestBuildRunRequest_FromSnapshot(t *testing.T) {
	resetRunState(t)

	goalID := types.NewID()
	runGraphFile = writeTestSnapshot(t, &dag.Snapshot{
		Goal:         "saved goal",
		GoalID:       goalID,
		DonePlanning: true,
		Graph: dag.New(
			[]dag.Node{
				{ID: "2-1", Name: "research", Act: "research"},
				{ID: "3-1", Name: "summarize", Act: "write"},
			},
			[]dag.Edge{{Source: "2-1", Target: "3-1"}},
		),
	})

	req, err := buildRunRequest(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Goal != "saved goal" {
		t.Errorf("expected the saved goal, got %q", req.Goal)
	}
	if req.GoalID != goalID {
		t.Errorf("expected the saved goal id, got %s", req.GoalID)
	}
	if !req.DonePlanning {
		t.Error("expected the run to resume without planning")
	}
	if req.InitialGraph == nil || len(req.InitialGraph.Nodes) != 2 {
		t.Fatal("expected the saved graph to be loaded")
	}
}

func TestBuildRunRequest_ReplanForcesPlanning(t *testing.T) {
	resetRunState(t)
	runReplan = true

	runGraphFile = writeTestSnapshot(t, &dag.Snapshot{
		Goal:         "saved goal",
		DonePlanning: true,
		Graph: dag.New(
			[]dag.Node{{ID: "2-1", Name: "research", Act: "research"}},
			nil,
		),
	})

	req, err := buildRunRequest([]string{"extend with a pricing section"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.DonePlanning {
		t.Error("replan must hand the graph back to the planner")
	}
	if req.Goal != "extend with a pricing section" {
		t.Errorf("expected the new goal, got %q", req.Goal)
	}
	if req.InitialGraph == nil {
		t.Error("expected the saved graph to ride along for extension")
	}
}

func TestBuildRunRequest_BadSnapshot(t *testing.T) {
	resetRunState(t)
	runGraphFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := buildRunRequest([]string{"goal"})
	if err == nil {
		t.Fatal("expected an error for a missing snapshot")
	}
	var cliErr *internal.CLIError
	if !errors.As(err, &cliErr) || cliErr.Code != internal.ExitPlanError {
		t.Errorf("expected plan error exit code, got %v", err)
	}
}

func TestSaveSnapshot(t *testing.T) {
	resetRunState(t)

	graph := dag.New(
		[]dag.Node{{ID: "2-1", Name: "research", Act: "research"}},
		nil,
	)
	graph.HookupRoot("test goal")

	req := &scheduler.RunRequest{Goal: "test goal", GoalID: types.NewID()}
	outcome := &scheduler.ExecutionOutcome{Graph: graph}

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := saveSnapshot(path, req, outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := dag.LoadSnapshotFile(path)
	if err != nil {
		t.Fatalf("failed to reload snapshot: %v", err)
	}
	if snap.Goal != "test goal" {
		t.Errorf("expected goal to round-trip, got %q", snap.Goal)
	}
	if !snap.DonePlanning {
		t.Error("saved snapshots should skip planning on resume")
	}
	if len(snap.Graph.Nodes) != 2 {
		t.Errorf("expected root plus one task, got %d nodes", len(snap.Graph.Nodes))
	}
}

func TestSaveSnapshot_NoGraph(t *testing.T) {
	resetRunState(t)

	req := &scheduler.RunRequest{Goal: "goal"}
	err := saveSnapshot(filepath.Join(t.TempDir(), "out.yaml"), req, nil)
	if err == nil {
		t.Fatal("expected an error when the run produced no graph")
	}
	if types.CodeOf(err) != types.GRAPH_EMPTY {
		t.Errorf("expected GRAPH_EMPTY, got %s", types.CodeOf(err))
	}
}

func TestTracingConfig(t *testing.T) {
	cfg := tracingConfig(config.TracingConfig{
		Enabled:    true,
		Endpoint:   "collector:4317",
		SampleRate: 0.25,
		Insecure:   true,
	})

	if !cfg.Enabled || cfg.Endpoint != "collector:4317" {
		t.Errorf("expected endpoint to carry over, got %+v", cfg)
	}
	if cfg.ServiceName != "waggledance" {
		t.Errorf("expected service name waggledance, got %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 0.25 || !cfg.Insecure {
		t.Errorf("expected sampling settings to carry over, got %+v", cfg)
	}
}

func TestTracingConfig_UnsetRateSamplesEverything(t *testing.T) {
	cfg := tracingConfig(config.TracingConfig{Enabled: true, Endpoint: "collector:4317"})

	if cfg.SampleRate != 1.0 {
		t.Errorf("expected unset sample rate to become 1.0, got %f", cfg.SampleRate)
	}
}

func TestPacketDetail(t *testing.T) {
	tests := []struct {
		name     string
		pkt      packet.Packet
		expected string
	}{
		{
			name:     "failure shows the message",
			pkt:      packet.NewFailure(packet.PacketLLMError, "2-1", types.SeverityWarn, "model refused"),
			expected: "model refused",
		},
		{
			name:     "human request shows the question",
			pkt:      packet.NewHumanRequest("2-1", "which region?"),
			expected: "which region?",
		},
		{
			name:     "finish shows the first line of the value",
			pkt:      packet.NewAgentEnd("2-1", "alpha\nbeta"),
			expected: "alpha",
		},
		{
			name:     "finish without value shows outputs",
			pkt:      packet.NewChainEnd("1", map[string]any{"nodes": 4, "edges": 3}),
			expected: "edges=3 nodes=4",
		},
		{
			name:     "lifecycle start has no detail",
			pkt:      packet.NewLifecycle(packet.PacketLLMStart, "2-1"),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := packetDetail(tt.pkt); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPrintOutcome(t *testing.T) {
	resetRunState(t)

	graph := dag.New(
		[]dag.Node{
			{ID: "2-1", Name: "research", Act: "research"},
			{ID: "3-1", Name: "summarize", Act: "write"},
		},
		[]dag.Edge{{Source: "2-1", Target: "3-1"}},
	)
	graph.HookupRoot("test goal")

	outcome := &scheduler.ExecutionOutcome{
		GoalID: types.NewID(),
		Results: map[string]scheduler.TaskResult{
			"1":   {Value: "test goal"},
			"2-1": {Value: "findings about the market"},
			"3-1": {Value: "the final summary\nwith a second line"},
		},
		Completed:     []string{"1", "2-1", "3-1"},
		TasksExecuted: 2,
		TasksFailed:   0,
		Duration:      1500 * time.Millisecond,
		Graph:         graph,
	}

	cmd, buf := testCommand()
	printOutcome(cmd, outcome)
	out := buf.String()

	for _, want := range []string{
		"2-1", "research", "done",
		"3-1", "summarize",
		"2 tasks executed, 0 failed in 1.5s",
		"the final summary\nwith a second line",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Count(out, "findings about the market") != 1 {
		t.Error("non-exit task results should appear in the table only")
	}
}

func TestPrintOutcome_FailedTask(t *testing.T) {
	resetRunState(t)

	graph := dag.New(
		[]dag.Node{{ID: "2-1", Name: "research", Act: "research"}},
		nil,
	)
	graph.HookupRoot("test goal")

	outcome := &scheduler.ExecutionOutcome{
		Results: map[string]scheduler.TaskResult{
			"1":   {Value: "test goal"},
			"2-1": {Err: types.NewSeverityError(types.TASK_FAILED, types.SeverityWarn, "model refused")},
		},
		Completed:     []string{"1", "2-1"},
		TasksExecuted: 1,
		TasksFailed:   1,
		Duration:      200 * time.Millisecond,
		Graph:         graph,
	}

	cmd, buf := testCommand()
	printOutcome(cmd, outcome)
	out := buf.String()

	if !strings.Contains(out, "failed") || !strings.Contains(out, "model refused") {
		t.Errorf("expected the failure to be reported, got:\n%s", out)
	}
	if !strings.Contains(out, "1 tasks executed, 1 failed") {
		t.Errorf("expected the failure count, got:\n%s", out)
	}
}

func TestPrintOutcome_Suspended(t *testing.T) {
	resetRunState(t)

	graph := dag.New(
		[]dag.Node{
			{ID: "2-1", Name: "research", Act: "research"},
			{ID: "2-2", Name: "pick region", Act: "decide"},
		},
		nil,
	)
	graph.HookupRoot("test goal")

	outcome := &scheduler.ExecutionOutcome{
		Results: map[string]scheduler.TaskResult{
			"1":   {Value: "test goal"},
			"2-1": {Value: "done work"},
		},
		Completed:     []string{"1", "2-1"},
		Suspended:     true,
		Waiting:       []string{"2-2"},
		TasksExecuted: 1,
		Duration:      time.Second,
		Graph:         graph,
	}

	cmd, buf := testCommand()
	printOutcome(cmd, outcome)
	out := buf.String()

	if !strings.Contains(out, "2-2") || !strings.Contains(out, "needs human input") {
		t.Errorf("expected the waiting task to be listed, got:\n%s", out)
	}
}

func TestPrintOutcome_JSON(t *testing.T) {
	resetRunState(t)
	runJSON = true

	outcome := &scheduler.ExecutionOutcome{
		GoalID:        types.NewID(),
		Results:       map[string]scheduler.TaskResult{"1": {Value: "goal"}},
		Completed:     []string{"1"},
		TasksExecuted: 0,
		Duration:      time.Second,
	}

	cmd, buf := testCommand()
	printOutcome(cmd, outcome)

	if !strings.Contains(buf.String(), `"tasks_executed": 0`) {
		t.Errorf("expected JSON outcome, got:\n%s", buf.String())
	}
}

func TestFormatOutputs(t *testing.T) {
	if got := formatOutputs(nil); got != "" {
		t.Errorf("expected empty string for no outputs, got %q", got)
	}
	got := formatOutputs(map[string]any{"nodes": 4, "edges": 3})
	if got != "edges=3 nodes=4" {
		t.Errorf("expected sorted key=value pairs, got %q", got)
	}
}
