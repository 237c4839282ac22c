package agent

import (
	"fmt"
	"sort"
	"strings"
)

// clarificationMarker is the escape hatch a model uses when it cannot
// proceed without information only the requester has. The executor turns a
// line starting with this marker into a requestHumanInput packet.
const clarificationMarker = "NEED_HUMAN_INPUT:"

func buildExecuteSystemPrompt() string {
	return `You are an execution agent working on one task of a larger plan. Other agents handle the other tasks; do only yours.

You must:
1. Produce the task's deliverable directly. No preamble, no restating the task.
2. Use the provided context and prior task results as your inputs.
3. Keep the result self-contained so later tasks can build on it.

If you cannot proceed without information only the requester can provide, reply with a single line starting with ` + clarificationMarker + ` followed by your question.`
}

func buildReviewSystemPrompt() string {
	return `You are a review agent. Several tasks of a plan have finished and their results are given to you.

You must:
1. Check the results against the goal and against each other.
2. Merge them into one coherent deliverable, resolving conflicts and noting anything a result got wrong.
3. Produce only the merged deliverable.

If you cannot proceed without information only the requester can provide, reply with a single line starting with ` + clarificationMarker + ` followed by your question.`
}

// buildTaskPrompt constructs the user message for a task. Review tasks get
// their predecessors' recorded results; ordinary tasks get the goal and
// their own context.
func buildTaskPrompt(req ExecuteRequest, review bool) string {
	var b strings.Builder

	b.WriteString("## Goal\n\n")
	b.WriteString(req.Goal)
	b.WriteString("\n\n")

	b.WriteString("## Your Task\n\n")
	b.WriteString(fmt.Sprintf("- **Name**: %s\n", req.Node.Name))
	if req.Node.Act != "" && req.Node.Act != req.Node.Name {
		b.WriteString(fmt.Sprintf("- **Action**: %s\n", req.Node.Act))
	}
	if req.Node.Context != "" {
		b.WriteString(fmt.Sprintf("- **Context**: %s\n", req.Node.Context))
	}
	b.WriteString("\n")

	if review {
		b.WriteString("## Results To Review\n\n")
		for _, predID := range predecessorsOf(req) {
			result, ok := req.PriorResults[predID]
			if !ok {
				result = "(no recorded result)"
			}
			b.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", taskName(req, predID), result))
		}
	} else if len(req.PriorResults) > 0 {
		b.WriteString("## Prior Task Results\n\n")
		for _, predID := range predecessorsOf(req) {
			result, ok := req.PriorResults[predID]
			if !ok {
				continue
			}
			b.WriteString(fmt.Sprintf("### %s\n\n%s\n\n", taskName(req, predID), result))
		}
	}

	return b.String()
}

// taskName resolves id to its node name, falling back to the id itself when
// no graph is attached.
func taskName(req ExecuteRequest, id string) string {
	if req.Graph != nil {
		if node, ok := req.Graph.Node(id); ok {
			return node.Name
		}
	}
	return id
}

// predecessorsOf returns the node's predecessors in graph order, or the
// sorted PriorResults keys when no graph is attached.
func predecessorsOf(req ExecuteRequest) []string {
	if req.Graph != nil {
		return req.Graph.Predecessors(req.Node.ID)
	}
	ids := make([]string, 0, len(req.PriorResults))
	for id := range req.PriorResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clarificationRequest scans a response for the human-input escape line.
func clarificationRequest(response string) (string, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, clarificationMarker) {
			return strings.TrimSpace(strings.TrimPrefix(line, clarificationMarker)), true
		}
	}
	return "", false
}
