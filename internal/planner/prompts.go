package planner

import (
	"fmt"
	"strings"
)

// buildSystemPrompt defines the planner's role and output contract.
// The chain-of-thought method lets the model reason in prose first; the JSON
// extractor pulls the document out of the tail of the response.
func buildSystemPrompt(promptingMethod string) string {
	var b strings.Builder

	b.WriteString(`You are a planning agent that decomposes a goal into a directed acyclic graph of tasks.

Your role is to break the goal into the smallest set of concrete tasks that together achieve it, and to wire their dependencies so independent tasks can run in parallel.

You must:
1. Give every task a unique short id. Id "1" is reserved for the planning step itself; start your ids at "2". Tasks that can run in parallel share a numeric prefix, e.g. "2-1" and "2-2".
2. After tasks whose outputs need synthesis, add a review task whose id ends in "-review" and which depends on each of them.
3. Express every dependency as an edge from the prerequisite task to the dependent task. Never create a cycle.
4. Reference only declared task ids in edges.
5. Order the "nodes" array so tasks with no prerequisites come first.
6. Make the final task produce the deliverable the goal asks for.
`)

	switch promptingMethod {
	case "chain-of-thought":
		b.WriteString(`
Think through the decomposition step by step before answering. End your response with the JSON document; it is the only part that will be parsed.`)
	default:
		b.WriteString(`
Respond with ONLY the JSON document. No prose, no code fences.`)
	}

	return b.String()
}

// buildPlanPrompt constructs the user message with the goal, any existing
// graph to extend, and the response schema.
func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder

	b.WriteString("## Goal\n\n")
	b.WriteString(req.Goal)
	b.WriteString("\n\n")

	if req.Existing != nil && len(req.Existing.Nodes) > 0 {
		b.WriteString("## Existing Tasks\n\n")
		b.WriteString("The following tasks are already planned. Add only new tasks; do not repeat their ids. New tasks may depend on them.\n\n")
		for _, n := range req.Existing.Nodes {
			b.WriteString(fmt.Sprintf("- %s: %s", n.ID, n.Name))
			if n.Act != "" && n.Act != n.Name {
				b.WriteString(fmt.Sprintf(" (%s)", n.Act))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Required Response Format\n\n")
	b.WriteString(responseSchema)

	return b.String()
}

const responseSchema = `A single JSON object with this shape:

{
  "nodes": [
    {"id": "2-1", "name": "short task name", "act": "what to do", "context": "inputs and constraints for the task"}
  ],
  "edges": [
    {"sourceId": "2-1", "targetId": "2-review"}
  ]
}

Every node needs "id", "name", and "act". "context" may be empty. Every edge endpoint must be a declared node id.`
