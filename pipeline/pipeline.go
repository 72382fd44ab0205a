package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dcshock/speechpipe/marker"
)

// Step is one unit of work inside a stage: a collaborator invocation or a
// built-in action. A non-nil error aborts the stage and the pipeline.
type Step func(ctx context.Context) error

// Prerequisite is a marker that must exist before a stage body may run.
// Hint is the corrective instruction reported when it is missing.
type Prerequisite struct {
	Key  marker.Key
	Hint string
}

// Stage is a gated phase of the pipeline. Marker is the completion marker
// key derived from the stage index and the configuration values that affect
// its output.
type Stage struct {
	Index    int
	Name     string
	Marker   marker.Key
	Requires []Prerequisite
	Steps    []Step
}

// Status is the outcome of visiting a stage.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// StageReport records what happened to one visited stage.
type StageReport struct {
	Index    int
	Name     string
	Marker   marker.Key
	Status   Status
	Duration time.Duration
}

// Result lists the visited stages in execution order.
type Result struct {
	RunID  string
	Stages []StageReport
}

// Ran returns the indices of stages whose body executed successfully.
func (r Result) Ran() []int {
	var out []int
	for _, s := range r.Stages {
		if s.Status == StatusDone {
			out = append(out, s.Index)
		}
	}
	return out
}

// Observer provides pre/post hooks for pipeline and stage execution, for
// logging and for persisting run history. BeforeStage is called for every
// visited stage; AfterStage reports whether it was skipped, done or failed.
type Observer interface {
	BeforePipeline(ctx context.Context, runID, name string, floor int) error
	AfterPipeline(ctx context.Context, runID string, err error) error
	BeforeStage(ctx context.Context, runID string, stage *Stage) error
	AfterStage(ctx context.Context, runID string, stage *Stage, status Status, stageErr error, duration time.Duration) error
}

// RunOptions selects which stages run and attaches an Observer.
// Floor is the first stage index to visit. Stop, when set, is the last; a
// nil Stop runs through the final stage, so the zero value visits every
// stage. If Observer is set and RunID is empty, a new UUID is generated for
// the run.
type RunOptions struct {
	Floor    int
	Stop     *int
	Observer Observer
	RunID    string
}

// StopAt returns a Stop bound for RunOptions.
func StopAt(index int) *int { return &index }

// PrerequisiteError is returned when a stage needs a marker that is absent.
type PrerequisiteError struct {
	Stage   int
	Name    string
	Missing marker.Key
	Hint    string
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("stage %d (%s): prerequisite %s is missing", e.Stage, e.Name, e.Missing)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// StageError wraps the first failing step of a stage.
type StageError struct {
	Stage int
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Stage, e.Name, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs gated stages in increasing index order against a marker store.
type Pipeline struct {
	Name    string
	Stages  []Stage
	Markers marker.Store
}

// Validate checks that stage indices are non-negative and unique and that
// every stage has a marker key.
func (p *Pipeline) Validate() error {
	if p.Markers == nil {
		return errors.New("pipeline: marker store is required")
	}
	seen := make(map[int]bool, len(p.Stages))
	for _, s := range p.Stages {
		if s.Index < 0 {
			return fmt.Errorf("pipeline: stage %q has negative index %d", s.Name, s.Index)
		}
		if seen[s.Index] {
			return fmt.Errorf("pipeline: duplicate stage index %d", s.Index)
		}
		seen[s.Index] = true
		if s.Marker == "" {
			return fmt.Errorf("pipeline: stage %d (%s) has no marker key", s.Index, s.Name)
		}
	}
	return nil
}

// Run visits stages with Floor <= index (<= *Stop when Stop is set) in
// increasing index order. A stage whose marker exists is skipped. Otherwise
// its prerequisites are checked, its steps run in order and, when all
// succeed, its marker is created. The first failure ends the run; no marker
// is written for the failing stage and markers of earlier stages are kept.
func (p *Pipeline) Run(ctx context.Context, opts *RunOptions) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	var o RunOptions
	if opts != nil {
		o = *opts
	}
	if o.Floor < 0 {
		return Result{}, fmt.Errorf("pipeline: stage floor must be >= 0, got %d", o.Floor)
	}
	if o.Stop != nil && *o.Stop < 0 {
		return Result{}, fmt.Errorf("pipeline: stop stage must be >= 0, got %d", *o.Stop)
	}
	if o.Observer == nil {
		return p.runStages(ctx, o, "")
	}
	runID := o.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	if err := o.Observer.BeforePipeline(ctx, runID, p.Name, o.Floor); err != nil {
		return Result{RunID: runID}, fmt.Errorf("before pipeline: %w", err)
	}
	result, err := p.runStages(ctx, o, runID)
	if postErr := o.Observer.AfterPipeline(ctx, runID, err); postErr != nil {
		// Don't mask pipeline error
		if err == nil {
			err = fmt.Errorf("after pipeline: %w", postErr)
		}
	}
	return result, err
}

func (p *Pipeline) ordered() []*Stage {
	out := make([]*Stage, len(p.Stages))
	for i := range p.Stages {
		out[i] = &p.Stages[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (p *Pipeline) runStages(ctx context.Context, o RunOptions, runID string) (Result, error) {
	result := Result{RunID: runID}
	for _, stage := range p.ordered() {
		if stage.Index < o.Floor {
			continue
		}
		if o.Stop != nil && stage.Index > *o.Stop {
			break
		}
		if o.Observer != nil {
			if err := o.Observer.BeforeStage(ctx, runID, stage); err != nil {
				return result, fmt.Errorf("before stage %d: %w", stage.Index, err)
			}
		}
		start := time.Now()
		status, stageErr := p.runStage(ctx, stage)
		duration := time.Since(start)
		if o.Observer != nil {
			if postErr := o.Observer.AfterStage(ctx, runID, stage, status, stageErr, duration); postErr != nil {
				if stageErr == nil {
					stageErr = fmt.Errorf("after stage %d: %w", stage.Index, postErr)
				}
			}
		}
		result.Stages = append(result.Stages, StageReport{
			Index:    stage.Index,
			Name:     stage.Name,
			Marker:   stage.Marker,
			Status:   status,
			Duration: duration,
		})
		if stageErr != nil {
			return result, stageErr
		}
	}
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage *Stage) (Status, error) {
	done, err := p.Markers.Exists(ctx, stage.Marker)
	if err != nil {
		return StatusFailed, fmt.Errorf("stage %d (%s): check marker: %w", stage.Index, stage.Name, err)
	}
	if done {
		return StatusSkipped, nil
	}
	for _, req := range stage.Requires {
		ok, err := p.Markers.Exists(ctx, req.Key)
		if err != nil {
			return StatusFailed, fmt.Errorf("stage %d (%s): check prerequisite: %w", stage.Index, stage.Name, err)
		}
		if !ok {
			return StatusFailed, &PrerequisiteError{Stage: stage.Index, Name: stage.Name, Missing: req.Key, Hint: req.Hint}
		}
	}
	for _, step := range stage.Steps {
		if err := ctx.Err(); err != nil {
			return StatusFailed, &StageError{Stage: stage.Index, Name: stage.Name, Err: err}
		}
		if err := step(ctx); err != nil {
			return StatusFailed, &StageError{Stage: stage.Index, Name: stage.Name, Err: err}
		}
	}
	if err := p.Markers.Create(ctx, stage.Marker); err != nil {
		return StatusFailed, fmt.Errorf("stage %d (%s): create marker: %w", stage.Index, stage.Name, err)
	}
	return StatusDone, nil
}

// IsPrerequisite reports whether err is (or wraps) a *PrerequisiteError.
func IsPrerequisite(err error) bool { return errors.As(err, new(*PrerequisiteError)) }
