package scheduler

import (
	"encoding/json"
	"time"

	"github.com/j-94/waggle-dance/internal/dag"
	"github.com/j-94/waggle-dance/internal/types"
)

// TaskResult is the recorded outcome of one task. Err is set for tasks that
// failed with warn severity and were recorded so their dependents could run;
// such results still count as completed.
type TaskResult struct {
	Value string
	Err   error
}

// MarshalJSON renders the result with the error as its message text; error
// values carry no useful field structure over the wire.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Value string `json:"value,omitempty"`
		Err   string `json:"error,omitempty"`
	}{Value: r.Value}
	if r.Err != nil {
		out.Err = r.Err.Error()
	}
	return json.Marshal(out)
}

// ExecutionOutcome is the final state of a run. Results and Completed are
// keyed and ordered by node id; the synthetic root appears in both because
// planning itself counts as the first completed task.
//
// Suspended is set when the run stopped because every remaining task was
// waiting on human input; Waiting lists those task ids. A suspended outcome
// is not an error: the run can be resumed once input arrives.
type ExecutionOutcome struct {
	GoalID        types.ID              `json:"goal_id"`
	Results       map[string]TaskResult `json:"results"`
	Completed     []string              `json:"completed"`
	Suspended     bool                  `json:"suspended,omitempty"`
	Waiting       []string              `json:"waiting,omitempty"`
	TasksExecuted int                   `json:"tasks_executed"`
	TasksFailed   int                   `json:"tasks_failed"`
	Duration      time.Duration         `json:"duration"`

	// Graph is the executed plan, including the synthetic root. Callers use
	// it to persist a snapshot of what ran; it is omitted from JSON because
	// snapshots have their own serialized form.
	Graph *dag.Graph `json:"-"`
}
