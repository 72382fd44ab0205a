// Package recipe assembles the five-stage CSJ training recipe: data
// preparation, feature extraction, dataset preparation, RNNLM training and
// ASR training.
//
// Stage bodies are collaborator invocations plus a few in-process steps
// (dictionary construction, dev/train bookkeeping). Every stage is gated by a
// completion marker whose key carries the configuration values that shape
// its output, so rerunning with the same configuration does no work.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/marker"
	"github.com/dcshock/speechpipe/pipeline"
)

// Name is the pipeline name reported to observers.
const Name = "csj"

// Stage indices.
const (
	StageDataPrep = iota
	StageFeatures
	StageDataset
	StageLM
	StageASR
)

// Recipe builds the pipeline from a frozen bundle.
type Recipe struct {
	Bundle   *config.Bundle
	Registry *config.Registry
	Runner   collab.Runner
	Markers  marker.Store

	// HTTPClient fetches download_url. Nil uses http.DefaultClient.
	HTTPClient *http.Client

	// DryRun turns in-process file steps into log lines. Pair it with a
	// collab.Recorder and a marker.MemoryStore to preview a run.
	DryRun bool

	// Logger nil uses slog.Default().
	Logger *slog.Logger
}

// Pipeline returns the recipe's stages bound to r.Markers.
func (r *Recipe) Pipeline() (*pipeline.Pipeline, error) {
	if r.Bundle == nil {
		return nil, errors.New("recipe: bundle is required")
	}
	if r.Runner == nil {
		return nil, errors.New("recipe: runner is required")
	}
	if r.Markers == nil {
		return nil, errors.New("recipe: marker store is required")
	}
	if r.Registry == nil {
		r.Registry = config.DefaultRegistry(r.Bundle.Get("neuralsp_root"))
	}
	b := &builder{
		Recipe: r,
		b:      r.Bundle,
		d:      r.Bundle.Derived(),
		p:      NewPaths(r.Bundle),
		tag:    r.Bundle.UnitTag(),
	}
	stages := []pipeline.Stage{
		b.dataPrep(),
		b.features(),
		b.dataset(),
		b.lm(),
		b.asr(),
	}
	if len(b.missing) > 0 {
		names := make([]string, 0, len(b.missing))
		for n := range b.missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, &config.ConfigError{Message: "collaborators not registered: " + strings.Join(names, ", ")}
	}
	p := &pipeline.Pipeline{
		Name:    Name,
		Stages:  stages,
		Markers: r.Markers,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Keys returns the completion marker key of every stage in index order.
func Keys(b *config.Bundle) []marker.Key {
	return []marker.Key{
		dataPrepKey(b.Get("data_size")),
		featuresKey(b.Get("data_size")),
		datasetKey(b),
		lmKey(b),
		asrKey(b),
	}
}

func dataPrepKey(size string) marker.Key { return marker.ComposeKey(StageDataPrep, size) }

func featuresKey(size string) marker.Key { return marker.ComposeKey(StageFeatures, size) }

func datasetKey(b *config.Bundle) marker.Key {
	return marker.ComposeKey(StageDataset, b.Get("data_size"), b.UnitTag())
}

func lmKey(b *config.Bundle) marker.Key {
	return marker.ComposeKey(StageLM, marker.Concat(b.Get("data_size"), b.Get("lm_data_size")), b.UnitTag())
}

func asrKey(b *config.Bundle) marker.Key {
	return marker.ComposeKey(StageASR, b.Get("data_size"), b.UnitTag())
}

type builder struct {
	*Recipe
	b   *config.Bundle
	d   config.Derived
	p   Paths
	tag string

	// collaborators the stages reference that the registry lacks
	missing map[string]bool
}

func (r *Recipe) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// inv builds an invocation of the named collaborator.
func (bl *builder) inv(name string, args ...string) collab.Invocation {
	bl.require(name)
	program, _ := bl.Registry.Get(name)
	return collab.Invocation{Name: name, Program: program, Args: args}
}

// require notes names absent from the registry. Collaborators invoked only
// from deferred steps are required up front so Pipeline can reject them.
func (bl *builder) require(names ...string) {
	for _, name := range names {
		if _, ok := bl.Registry.Get(name); ok {
			continue
		}
		if bl.missing == nil {
			bl.missing = make(map[string]bool)
		}
		bl.missing[name] = true
	}
}

func (bl *builder) exec(name string, args ...string) pipeline.Step {
	return pipeline.Exec(bl.Runner, bl.inv(name, args...))
}

// local wraps an in-process step so dry runs only log it.
func (bl *builder) local(what string, step pipeline.Step) pipeline.Step {
	return func(ctx context.Context) error {
		if bl.DryRun {
			bl.logger().Info("dry run: skip", "step", what)
			return nil
		}
		return step(ctx)
	}
}

// deferred runs the invocation returned by build, which may depend on files
// written by earlier steps of the same stage. In dry runs build receives
// dry=true and must not touch the filesystem.
func (bl *builder) deferred(build func(dry bool) (collab.Invocation, error)) pipeline.Step {
	return func(ctx context.Context) error {
		inv, err := build(bl.DryRun)
		if err != nil {
			return err
		}
		return bl.Runner.Run(ctx, inv)
	}
}

func (bl *builder) mkdir(paths ...string) pipeline.Step {
	return bl.local(fmt.Sprintf("mkdir %v", paths), pipeline.Mkdir(paths...))
}

func (bl *builder) scratch(dir string, steps ...pipeline.Step) pipeline.Step {
	if bl.DryRun {
		return pipeline.Sequence(steps...)
	}
	return pipeline.Scratch(dir, steps...)
}
