package observer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/dcshock/speechpipe/pipeline"
)

// LogObserver reports progress through slog and prints a banner before each
// stage and a completion line after it.
type LogObserver struct {
	logger *slog.Logger
	out    io.Writer
	styles Styles
}

// NewLogObserver returns a LogObserver. Nil logger uses slog.Default(); nil
// out uses os.Stdout.
func NewLogObserver(logger *slog.Logger, out io.Writer) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &LogObserver{logger: logger, out: out, styles: NewStyles(out, DefaultTheme)}
}

func (o *LogObserver) BeforePipeline(ctx context.Context, runID, name string, floor int) error {
	o.logger.Info("pipeline start", "run_id", runID, "pipeline", name, "stage", floor)
	return nil
}

func (o *LogObserver) AfterPipeline(ctx context.Context, runID string, err error) error {
	if err != nil {
		o.logger.Error("pipeline failed", "run_id", runID, "err", err)
		return nil
	}
	o.logger.Info("pipeline done", "run_id", runID)
	return nil
}

func (o *LogObserver) BeforeStage(ctx context.Context, runID string, stage *pipeline.Stage) error {
	title := fmt.Sprintf("%s (stage:%d)", titleCase(stage.Name), stage.Index)
	fmt.Fprintln(o.out, o.styles.Banner.Render(title))
	o.logger.Debug("stage start", "run_id", runID, "stage", stage.Index, "marker", stage.Marker)
	return nil
}

func (o *LogObserver) AfterStage(ctx context.Context, runID string, stage *pipeline.Stage, status pipeline.Status, stageErr error, duration time.Duration) error {
	switch status {
	case pipeline.StatusSkipped:
		o.logger.Info("stage skipped", "stage", stage.Index, "marker", stage.Marker)
		fmt.Fprintln(o.out, o.styles.Skipped.Render(fmt.Sprintf("Skip %s (stage: %d): already done.", stage.Name, stage.Index)))
	case pipeline.StatusDone:
		o.logger.Info("stage done", "stage", stage.Index, "marker", stage.Marker, "duration", duration.Round(time.Millisecond))
		fmt.Fprintln(o.out, o.styles.Done.Render(fmt.Sprintf("Finish %s (stage: %d).", stage.Name, stage.Index)))
	default:
		o.logger.Error("stage failed", "stage", stage.Index, "err", stageErr, "duration", duration.Round(time.Millisecond))
		fmt.Fprintln(o.out, o.styles.Failed.Render(fmt.Sprintf("Failed %s (stage: %d).", stage.Name, stage.Index)))
	}
	return nil
}

// titleCase upper-cases the first letter of each word, leaving acronyms such
// as RNNLM alone.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var _ pipeline.Observer = (*LogObserver)(nil)
