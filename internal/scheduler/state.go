package scheduler

import (
	"sort"
	"sync"

	"github.com/j-94/waggle-dance/internal/dag"
)

// RunState tracks which tasks are done, claimed, or parked during one run.
// All fields live behind one mutex; every mutation that could unblock the
// scheduling loop also signals the completion channel.
//
// The claim set is what makes dispatch exclusive: a task id is handed to at
// most one execution at a time, so each id is written to the results map by
// exactly one completion. The optimistic first task claims its id before the
// final graph even exists; the ready-set computation skips claimed ids, so
// the scheduling loop structurally cannot re-select it.
type RunState struct {
	mu        sync.Mutex
	completed map[string]bool
	claimed   map[string]bool
	waiting   map[string]bool
	results   map[string]TaskResult
	inFlight  int
	fatal     error
	signal    chan struct{}
}

// NewRunState seeds the completed set with the synthetic root: planning is
// the first task, and the goal itself is its recorded result so entry tasks
// see it among their prior results.
func NewRunState(goal string) *RunState {
	return &RunState{
		completed: map[string]bool{dag.RootID: true},
		claimed:   map[string]bool{dag.RootID: true},
		waiting:   make(map[string]bool),
		results:   map[string]TaskResult{dag.RootID: {Value: goal}},
		signal:    make(chan struct{}, 1),
	}
}

// Claim reserves id for one execution. It returns false when the id is
// already claimed or completed, in which case the caller must not dispatch.
func (s *RunState) Claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed[id] || s.completed[id] {
		return false
	}
	s.claimed[id] = true
	s.inFlight++
	return true
}

// Complete records a successful result and marks id completed.
func (s *RunState) Complete(id, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed[id] {
		return
	}
	s.completed[id] = true
	s.results[id] = TaskResult{Value: value}
	s.inFlight--
	s.notify()
}

// CompleteWithError marks id completed with a recorded failure, so tasks
// depending on it can still become ready instead of stalling forever.
func (s *RunState) CompleteWithError(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed[id] {
		return
	}
	s.completed[id] = true
	s.results[id] = TaskResult{Err: err}
	s.inFlight--
	s.notify()
}

// Release gives a claimed id back to the pool so the scheduling loop can
// dispatch it again. Used when the optimistic first attempt fails.
func (s *RunState) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claimed, id)
	s.inFlight--
	s.notify()
}

// Park moves id to the waiting set pending human input. The claim is kept,
// so the id is never re-dispatched, and the id does not count as completed.
func (s *RunState) Park(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiting[id] = true
	s.inFlight--
	s.notify()
}

// Fail records a fatal task error. The first one wins; the scheduling loop
// picks it up and aborts the run.
func (s *RunState) Fail(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal == nil {
		s.fatal = err
	}
	s.inFlight--
	s.notify()
}

// FatalError returns the first recorded fatal task error, if any.
func (s *RunState) FatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// ReadyNodes returns the tasks whose every predecessor is completed and that
// are neither completed nor claimed themselves, in graph order.
func (s *RunState) ReadyNodes(g *dag.Graph) []dag.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []dag.Node
	for _, node := range g.Nodes {
		if s.completed[node.ID] || s.claimed[node.ID] {
			continue
		}
		if s.predecessorsCompleted(g, node.ID) {
			ready = append(ready, node)
		}
	}
	return ready
}

// predecessorsCompleted reports whether every incoming edge's source is
// completed. Callers must hold the mutex.
func (s *RunState) predecessorsCompleted(g *dag.Graph, id string) bool {
	for _, e := range g.Edges {
		if e.Target == id && !s.completed[e.Source] {
			return false
		}
	}
	return true
}

// IsGoalReached reports whether every node in the graph is completed.
func (s *RunState) IsGoalReached(g *dag.Graph) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, node := range g.Nodes {
		if !s.completed[node.ID] {
			return false
		}
	}
	return true
}

// IncompleteIDs returns the graph's not-yet-completed node ids in graph
// order.
func (s *RunState) IncompleteIDs(g *dag.Graph) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, node := range g.Nodes {
		if !s.completed[node.ID] {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

// WaitingIDs returns the ids parked pending human input, sorted.
func (s *RunState) WaitingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.waiting))
	for id := range s.waiting {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CompletedIDs returns the completed ids, sorted.
func (s *RunState) CompletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InFlight returns how many claimed tasks have not yet resolved.
func (s *RunState) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// PriorResults maps each given id to its recorded value. Tasks recorded as
// completed-with-error contribute their error text, so dependents see what
// went wrong instead of a silent gap.
func (s *RunState) PriorResults(ids []string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make(map[string]string, len(ids))
	for _, id := range ids {
		r, ok := s.results[id]
		if !ok {
			continue
		}
		value := r.Value
		if value == "" && r.Err != nil {
			value = r.Err.Error()
		}
		prior[id] = value
	}
	return prior
}

// Results returns a copy of the recorded results.
func (s *RunState) Results() map[string]TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]TaskResult, len(s.results))
	for id, r := range s.results {
		out[id] = r
	}
	return out
}

// Signal returns the completion-notification channel. The scheduling loop
// blocks on it between dispatch rounds; notify never blocks the sender.
func (s *RunState) Signal() <-chan struct{} {
	return s.signal
}

func (s *RunState) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
