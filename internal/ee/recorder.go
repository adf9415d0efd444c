package ee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"utiligee/internal/expr"
)

// Call is one request seen by a Recorder.
type Call struct {
	Method string
	Node   *expr.Node
	Vis    VisParams
	Label  string
	Export ExportImage
	ID     string
}

// Recorder is an in-memory Session. It performs no remote work: it records
// every request, answers ComputeValue from stubs, and walks export jobs
// through scripted states. Used for dry runs and tests.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	stubs   map[string]any
	jobs    map[string]Job
	order   []string
	scripts map[string][]State
	// Err, when set, is returned from every call.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{
		stubs:   map[string]any{},
		jobs:    map[string]Job{},
		scripts: map[string][]State{},
	}
}

// Stub sets the ComputeValue result for expressions rooted at function.
func (r *Recorder) Stub(function string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stubs[function] = value
}

// Script queues the states that successive Operation calls report for id.
// Once the queue is drained the last state sticks.
func (r *Recorder) Script(id string, states ...State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[id] = append(r.scripts[id], states...)
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo filters recorded calls by method name.
func (r *Recorder) CallsTo(method string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.Err
}

func (r *Recorder) ComputeValue(_ context.Context, node *expr.Node) (any, error) {
	if err := r.record(Call{Method: "ComputeValue", Node: node}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.stubs[node.FunctionName()]
	if !ok {
		return nil, fmt.Errorf("recorder: no stub for %q", node.FunctionName())
	}
	return v, nil
}

func (r *Recorder) CreateMap(_ context.Context, node *expr.Node, vis VisParams, label string) (MapLayer, error) {
	if err := r.record(Call{Method: "CreateMap", Node: node, Vis: vis, Label: label}); err != nil {
		return MapLayer{}, err
	}
	r.mu.Lock()
	n := len(r.calls)
	r.mu.Unlock()
	id := fmt.Sprintf("projects/dry-run/maps/%d", n)
	return MapLayer{
		ID:      id,
		TileURL: fmt.Sprintf("%s/v1/%s/tiles/{z}/{x}/{y}", DefaultBaseURL, id),
		Label:   label,
		Vis:     vis,
	}, nil
}

func (r *Recorder) ExportImage(_ context.Context, req ExportImage) (Job, error) {
	if err := r.record(Call{Method: "ExportImage", Node: req.Expression, Export: req}); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("projects/dry-run/operations/%d", len(r.order)+1)
	job := Job{
		ID:          id,
		Description: req.Description,
		State:       StatePending,
		CreateTime:  time.Now().UTC(),
	}
	r.jobs[id] = job
	r.order = append(r.order, id)
	return job, nil
}

func (r *Recorder) Operation(_ context.Context, id string) (Job, error) {
	if err := r.record(Call{Method: "Operation", ID: id}); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	if queue := r.scripts[id]; len(queue) > 0 {
		job.State = queue[0]
		if len(queue) > 1 {
			r.scripts[id] = queue[1:]
		}
	} else if !job.State.Terminal() {
		job.State = StateSucceeded
	}
	job.Done = job.State.Terminal()
	if job.State == StateSucceeded {
		job.Progress = 1
	}
	if job.State == StateFailed && job.Error == "" {
		job.Error = "export failed"
	}
	job.UpdateTime = time.Now().UTC()
	r.jobs[id] = job
	return job, nil
}

func (r *Recorder) CancelOperation(_ context.Context, id string) error {
	if err := r.record(Call{Method: "CancelOperation", ID: id}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	if !job.State.Terminal() {
		delete(r.scripts, id)
		job.State = StateCancelled
		job.Done = true
		r.jobs[id] = job
	}
	return nil
}

func (r *Recorder) ListOperations(_ context.Context) ([]Job, error) {
	if err := r.record(Call{Method: "ListOperations"}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		jobs = append(jobs, r.jobs[id])
	}
	return jobs, nil
}
