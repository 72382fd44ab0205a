package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dcshock/speechpipe/collab"
	"github.com/dcshock/speechpipe/observer"
	"github.com/dcshock/speechpipe/pipeline"
	"github.com/dcshock/speechpipe/recipe"
)

func newStatusCmd(a *app) *cobra.Command {
	var backend string
	var bf *bundleFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which stages are done for a configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, reg, err := bf.resolve()
			if err != nil {
				return err
			}
			markers, closeFn, err := openMarkers(backend, b.Get("data"), a.logger)
			if err != nil {
				return err
			}
			defer closeFn()
			r := &recipe.Recipe{Bundle: b, Registry: reg, Runner: collab.NewRecorder(), Markers: markers}
			p, err := r.Pipeline()
			if err != nil {
				return err
			}

			styles := observer.NewStyles(a.stdout, observer.DefaultTheme)
			width := 0
			for _, s := range p.Stages {
				width = max(width, lipgloss.Width(s.Name))
			}
			fmt.Fprintln(a.stdout, styles.Label.Render("speechpipe "+recipe.Name+" ("+b.Get("data")+")"))
			for _, s := range p.Stages {
				done, err := markers.Exists(cmd.Context(), s.Marker)
				if err != nil {
					return err
				}
				status, label := pipeline.StatusSkipped, "pending"
				if done {
					status, label = pipeline.StatusDone, "done"
				}
				fmt.Fprintf(a.stdout, "  %d  %s  %s  %s\n",
					s.Index,
					s.Name+strings.Repeat(" ", width-lipgloss.Width(s.Name)),
					styles.Status(status).Render(fmt.Sprintf("%-7s", label)),
					styles.Dim.Render(s.Marker.String()),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "marker_backend", backendFile, "completion marker store (file or badger)")
	bf = addBundleFlags(cmd)
	return cmd
}
