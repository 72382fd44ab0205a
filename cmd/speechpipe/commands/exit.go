package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/config"
	"github.com/dcshock/speechpipe/pipeline"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitConfig       = 1
	ExitPrerequisite = 2
	ExitCollaborator = 3
	ExitInternal     = 4
)

func exitCode(err error) int {
	var (
		ce *config.ConfigError
		pe *pipeline.PrerequisiteError
		ee *collab.ExitError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ce):
		return ExitConfig
	case errors.As(err, &pe):
		return ExitPrerequisite
	case errors.As(err, &ee):
		return ExitCollaborator
	default:
		return ExitInternal
	}
}

// report writes err to w. Configuration errors are followed by their usage
// line and prerequisite errors by the command that fixes them.
func report(w io.Writer, err error) {
	var (
		ce *config.ConfigError
		pe *pipeline.PrerequisiteError
	)
	switch {
	case errors.As(err, &ce):
		fmt.Fprintln(w, ce.Error())
		if ce.Usage != "" {
			fmt.Fprintln(w, ce.Usage)
		}
	case errors.As(err, &pe):
		fmt.Fprintf(w, "Error: stage %d (%s) needs %s.\n", pe.Stage, pe.Name, pe.Missing)
		if pe.Hint != "" {
			fmt.Fprintln(w, pe.Hint)
		}
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
