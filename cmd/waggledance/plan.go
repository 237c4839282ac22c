package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/j-94/waggle-dance/cmd/waggledance/internal"
	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/events"
	"github.com/j-94/waggle-dance/internal/llm/providers"
	"github.com/j-94/waggle-dance/internal/packet"
	"github.com/j-94/waggle-dance/internal/planner"
	"github.com/j-94/waggle-dance/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Plan a goal into a task graph without executing it",
	Long: `Ask the planner for a task graph and print it, without running any
task. The graph can be saved as a snapshot and executed later with
'run --graph', or handed back to the planner for extension.

Passing --graph plans on top of the saved tasks: the existing graph is
kept and new tasks are merged in.`,
	Example: `  # Print the plan for a goal
  waggledance plan "migrate the billing service to the new queue"

  # Save the plan for later execution
  waggledance plan "migrate the billing service" -o plan.yaml

  # Extend a saved plan
  waggledance plan "add a rollback step" --graph plan.yaml -o plan.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

// Flags
var (
	planGraphFile  string
	planOutputFile string
	planJSONOut    bool
)

func init() {
	planCmd.Flags().StringVar(&planGraphFile, "graph", "", "Extend a saved task graph (YAML snapshot)")
	planCmd.Flags().StringVarP(&planOutputFile, "output", "o", "", "Save the plan snapshot to this file")
	planCmd.Flags().BoolVar(&planJSONOut, "json", false, "Print the graph as JSON")
}

// runPlan implements the plan command
func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var goal string
	if len(args) > 0 {
		goal = strings.TrimSpace(args[0])
	}

	var existing *dag.Graph
	goalID := types.NewID()
	if planGraphFile != "" {
		snap, err := dag.LoadSnapshotFile(planGraphFile)
		if err != nil {
			return internal.WrapError(internal.ExitPlanError, "failed to load graph", err)
		}
		existing = snap.Graph
		if goal == "" {
			goal = snap.Goal
		}
		if !snap.GoalID.IsZero() {
			goalID = snap.GoalID
		}
	}
	if goal == "" {
		return internal.NewCLIError(internal.ExitError,
			"a goal is required: pass one as an argument or load a saved graph")
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

	client, err := providers.NewFromProfile(ctx, settings.Plan)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to build planning client", err)
	}
	pl := planner.NewLLMPlanner(client,
		planner.WithLogger(logger),
		planner.WithTracer(tracer),
	)

	graph, err := pl.Plan(ctx, planner.PlanRequest{
		Goal:     goal,
		GoalID:   goalID,
		Profile:  settings.Plan,
		Existing: existing,
		OnPacket: planProgress(cmd),
	})
	if err != nil {
		return err
	}

	graph.HookupRoot(goal)
	if err := graph.Validate(); err != nil {
		return err
	}

	if planOutputFile != "" {
		snap := &dag.Snapshot{
			Goal:         goal,
			GoalID:       goalID,
			DonePlanning: true,
			Graph:        graph,
		}
		if err := snap.SaveFile(planOutputFile); err != nil {
			return internal.WrapError(internal.ExitError, "failed to save plan", err)
		}
		cmd.Printf("Saved plan with %d tasks to %s\n", len(graph.Nodes)-1, planOutputFile)
		return nil
	}

	if planJSONOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(graph)
	}

	printPlanTable(cmd, goal, graph)
	return nil
}

// planProgress streams planning tokens to stderr so the finished plan on
// stdout stays clean.
func planProgress(cmd *cobra.Command) events.Sink {
	if !isInteractive() {
		return nil
	}
	return func(node dag.Node, p packet.Packet) {
		switch p.Kind {
		case packet.PacketToken:
			fmt.Fprint(cmd.ErrOrStderr(), p.Token)
		case packet.PacketChainEnd:
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}

// printPlanTable renders the planned tasks with their dependencies.
func printPlanTable(cmd *cobra.Command, goal string, graph *dag.Graph) {
	cmd.Printf("Plan for: %s\n\n", goal)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTASK\tACTION\tDEPENDS ON")
	for _, n := range graph.Nodes {
		if n.ID == dag.RootID {
			continue
		}
		deps := make([]string, 0, 2)
		for _, dep := range graph.Predecessors(n.ID) {
			if dep == dag.RootID {
				continue
			}
			deps = append(deps, dep)
		}
		dependsOn := strings.Join(deps, ", ")
		if dependsOn == "" {
			dependsOn = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Act, dependsOn)
	}
	_ = w.Flush()

	cmd.Printf("\n%d tasks, %d dependencies\n", len(graph.Nodes)-1, len(graph.Edges))
}
