package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dcshock/speechpipe/config"
)

// app carries the global flags and output streams of one invocation.
type app struct {
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

// NewRootCmd returns the speechpipe command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "speechpipe",
		Short: "Staged ASR and RNNLM training recipe",
		Long: `speechpipe - drives the CSJ end-to-end ASR recipe.

Stages:
  0  data preparation
  1  feature extraction
  2  dictionary and dataset manifests
  3  RNNLM training (first GPU only)
  4  ASR training

Each stage leaves a completion marker <data>/.done_stage_<i>_<fingerprint>;
rerunning the same command skips every stage that already finished.

Examples:
  speechpipe run --gpu 0,1 --data_size all --unit wp --vocab_size 10000
  speechpipe run --stage 3 --gpu 0 --lm_data_size all
  speechpipe status --gpu 0 --unit char`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.initLogger()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.ConfigError{Message: err.Error(), Usage: "Usage: " + cmd.UseLine()}
	})
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

func (a *app) initLogger() {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
}

// Execute runs the command line args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	report(stderr, err)
	return exitCode(err)
}
