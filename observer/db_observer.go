package observer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dcshock/speechpipe/observer/repository"
	"github.com/dcshock/speechpipe/pipeline"
)

// DBObserver persists pipeline and stage execution to Postgres (pipeline_run,
// pipeline_run_stage) so run history can be inspected next to the markers.
type DBObserver struct {
	queries *repository.Queries
}

// NewDBObserver returns an Observer that writes to the given Queries (e.g. from
// repository.New(pool)).
func NewDBObserver(queries *repository.Queries) *DBObserver {
	return &DBObserver{queries: queries}
}

// BeforePipeline implements pipeline.Observer. Inserts or updates a pipeline_run row with status 'running'.
func (o *DBObserver) BeforePipeline(ctx context.Context, runID, name string, floor int) error {
	return o.queries.UpsertPipelineRun(ctx, repository.UpsertPipelineRunParams{
		RunID:      runID,
		Name:       name,
		FloorStage: int32(floor),
	})
}

// AfterPipeline implements pipeline.Observer. Updates pipeline_run with status (success/failed) and error.
func (o *DBObserver) AfterPipeline(ctx context.Context, runID string, err error) error {
	status := "success"
	if err != nil {
		status = "failed"
	}
	return o.queries.UpdatePipelineRunComplete(ctx, repository.UpdatePipelineRunCompleteParams{
		RunID:  runID,
		Status: status,
		Error:  errorText(err),
	})
}

// BeforeStage implements pipeline.Observer. Inserts a pipeline_run_stage row with status 'running'.
func (o *DBObserver) BeforeStage(ctx context.Context, runID string, stage *pipeline.Stage) error {
	return o.queries.InsertPipelineRunStage(ctx, repository.InsertPipelineRunStageParams{
		PipelineRunID: runID,
		StageIndex:    int32(stage.Index),
		StageName:     stage.Name,
		Marker:        stage.Marker.String(),
	})
}

// AfterStage implements pipeline.Observer. Updates pipeline_run_stage with status, error and duration.
func (o *DBObserver) AfterStage(ctx context.Context, runID string, stage *pipeline.Stage, status pipeline.Status, stageErr error, duration time.Duration) error {
	return o.queries.UpdatePipelineRunStage(ctx, repository.UpdatePipelineRunStageParams{
		PipelineRunID: runID,
		StageIndex:    int32(stage.Index),
		Status:        string(status),
		Error:         errorText(stageErr),
		DurationMs:    pgtype.Int8{Int64: duration.Milliseconds(), Valid: true},
	})
}

func errorText(err error) pgtype.Text {
	if err == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: err.Error(), Valid: true}
}

var _ pipeline.Observer = (*DBObserver)(nil)
