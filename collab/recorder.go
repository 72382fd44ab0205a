package collab

import (
	"context"
	"sync"
)

// Hook runs in place of a collaborator recorded by a Recorder.
type Hook func(ctx context.Context, inv Invocation) error

// Recorder is a Runner that records invocations instead of executing them.
// Hooks keyed by collaborator name can simulate side effects or failures.
// When an invocation redirects Stdout and no hook fails, the file is created
// empty so later steps that read it find it.
type Recorder struct {
	mu    sync.Mutex
	calls []Invocation
	hooks map[string]Hook

	// CreateStdout controls whether redirected output files are created.
	CreateStdout bool
}

// NewRecorder returns a Recorder that creates redirected output files.
func NewRecorder() *Recorder {
	return &Recorder{hooks: make(map[string]Hook), CreateStdout: true}
}

// On registers hook for the collaborator name.
func (r *Recorder) On(name string, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hooks == nil {
		r.hooks = make(map[string]Hook)
	}
	r.hooks[name] = hook
}

func (r *Recorder) Run(ctx context.Context, inv Invocation) error {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	hook := r.hooks[inv.Name]
	r.mu.Unlock()

	if inv.Stdout != "" && r.CreateStdout {
		if err := touch(inv.Stdout); err != nil {
			return &ExitError{Name: inv.Name, Code: -1, Err: err}
		}
	}
	if hook != nil {
		return hook(ctx, inv)
	}
	return nil
}

// Calls returns a copy of the recorded invocations in order.
func (r *Recorder) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Invocation, len(r.calls))
	copy(out, r.calls)
	return out
}

// Names returns the collaborator names of the recorded invocations in order.
func (r *Recorder) Names() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Name
	}
	return out
}

// Reset forgets recorded invocations; hooks are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

var _ Runner = (*Recorder)(nil)
