package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/marker"
	"github.com/dcshock/speechpipe/observer"
	"github.com/dcshock/speechpipe/observer/repository"
	"github.com/dcshock/speechpipe/pipeline"
	"github.com/dcshock/speechpipe/recipe"
)

type runOptions struct {
	stage         int
	stopStage     int
	markerBackend string
	observerDSN   string
	dryRun        bool
	bundle        *bundleFlags
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recipe from --stage",
		Long: `Run the recipe stages from --stage through --stop_stage.

Stages whose completion marker exists are skipped. A failing collaborator
stops the run; fix the cause and rerun the same command to resume.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.stage, "stage", 0, "first stage to run")
	f.IntVar(&opts.stopStage, "stop_stage", -1, "last stage to run (-1: all)")
	f.StringVar(&opts.markerBackend, "marker_backend", backendFile, "completion marker store (file or badger)")
	f.StringVar(&opts.observerDSN, "observer_dsn", "", "Postgres DSN for run history (optional)")
	f.BoolVar(&opts.dryRun, "dry_run", false, "print collaborator invocations without running them")
	opts.bundle = addBundleFlags(cmd)
	return cmd
}

func (a *app) run(ctx context.Context, opts *runOptions) error {
	if opts.stage < 0 {
		return &config.ConfigError{Message: fmt.Sprintf("--stage must be >= 0, got %d", opts.stage)}
	}
	b, reg, err := opts.bundle.resolve()
	if err != nil {
		return err
	}
	data := b.Get("data")

	var (
		runner  collab.Runner
		markers marker.Store
		rec     *collab.Recorder
	)
	if opts.dryRun {
		rec = collab.NewRecorder()
		rec.CreateStdout = false
		runner = rec
		if markers, err = dryRunMarkers(ctx, opts.markerBackend, data, a.logger); err != nil {
			return err
		}
	} else {
		runner = &collab.ExecRunner{Stdout: a.stdout, Stderr: a.stderr, Logger: a.logger}
		store, closeFn, err := openMarkers(opts.markerBackend, data, a.logger)
		if err != nil {
			return err
		}
		defer closeFn()
		markers = store
	}

	r := &recipe.Recipe{
		Bundle:   b,
		Registry: reg,
		Runner:   runner,
		Markers:  markers,
		DryRun:   opts.dryRun,
		Logger:   a.logger,
	}
	p, err := r.Pipeline()
	if err != nil {
		return err
	}

	var obs pipeline.Observer = observer.NewLogObserver(a.logger, a.stdout)
	if opts.observerDSN != "" && !opts.dryRun {
		pool, err := observer.Open(ctx, opts.observerDSN)
		if err != nil {
			return fmt.Errorf("observer: %w", err)
		}
		defer pool.Close()
		obs = pipeline.MultiObserver(obs, observer.NewDBObserver(repository.New(pool)))
	}

	d := b.Derived()
	a.logger.Info("resolved configuration",
		"data_size", b.Get("data_size"),
		"lm_data_size", b.Get("lm_data_size"),
		"unit", b.UnitTag(),
		"gpus", d.NGPUs(),
		"rnnlm_gpu", d.RNNLMGPU,
	)
	ro := &pipeline.RunOptions{Floor: opts.stage, Observer: obs}
	if opts.stopStage >= 0 {
		ro.Stop = pipeline.StopAt(opts.stopStage)
	}
	_, err = p.Run(ctx, ro)
	if rec != nil {
		for _, inv := range rec.Calls() {
			fmt.Fprintln(a.stdout, inv.String())
		}
	}
	return err
}
