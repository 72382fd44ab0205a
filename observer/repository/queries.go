package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertPipelineRun = `
INSERT INTO pipeline_run (run_id, name, floor_stage, status, started_at)
VALUES ($1, $2, $3, 'running', now())
ON CONFLICT (run_id) DO UPDATE
SET status = 'running', floor_stage = EXCLUDED.floor_stage, error = NULL, finished_at = NULL
`

type UpsertPipelineRunParams struct {
	RunID      string
	Name       string
	FloorStage int32
}

func (q *Queries) UpsertPipelineRun(ctx context.Context, arg UpsertPipelineRunParams) error {
	_, err := q.db.Exec(ctx, upsertPipelineRun, arg.RunID, arg.Name, arg.FloorStage)
	return err
}

const updatePipelineRunComplete = `
UPDATE pipeline_run
SET status = $2, error = $3, finished_at = now()
WHERE run_id = $1
`

type UpdatePipelineRunCompleteParams struct {
	RunID  string
	Status string
	Error  pgtype.Text
}

func (q *Queries) UpdatePipelineRunComplete(ctx context.Context, arg UpdatePipelineRunCompleteParams) error {
	_, err := q.db.Exec(ctx, updatePipelineRunComplete, arg.RunID, arg.Status, arg.Error)
	return err
}

const insertPipelineRunStage = `
INSERT INTO pipeline_run_stage (pipeline_run_id, stage_index, stage_name, marker, status, started_at)
VALUES ($1, $2, $3, $4, 'running', now())
ON CONFLICT (pipeline_run_id, stage_index) DO UPDATE
SET status = 'running', marker = EXCLUDED.marker, error = NULL, duration_ms = NULL, finished_at = NULL
`

type InsertPipelineRunStageParams struct {
	PipelineRunID string
	StageIndex    int32
	StageName     string
	Marker        string
}

func (q *Queries) InsertPipelineRunStage(ctx context.Context, arg InsertPipelineRunStageParams) error {
	_, err := q.db.Exec(ctx, insertPipelineRunStage, arg.PipelineRunID, arg.StageIndex, arg.StageName, arg.Marker)
	return err
}

const updatePipelineRunStage = `
UPDATE pipeline_run_stage
SET status = $3, error = $4, duration_ms = $5, finished_at = now()
WHERE pipeline_run_id = $1 AND stage_index = $2
`

type UpdatePipelineRunStageParams struct {
	PipelineRunID string
	StageIndex    int32
	Status        string
	Error         pgtype.Text
	DurationMs    pgtype.Int8
}

func (q *Queries) UpdatePipelineRunStage(ctx context.Context, arg UpdatePipelineRunStageParams) error {
	_, err := q.db.Exec(ctx, updatePipelineRunStage,
		arg.PipelineRunID,
		arg.StageIndex,
		arg.Status,
		arg.Error,
		arg.DurationMs,
	)
	return err
}

const listPipelineRunStages = `
SELECT pipeline_run_id, stage_index, stage_name, marker, status, error, duration_ms, started_at, finished_at
FROM pipeline_run_stage
WHERE pipeline_run_id = $1
ORDER BY stage_index
`

func (q *Queries) ListPipelineRunStages(ctx context.Context, pipelineRunID string) ([]PipelineRunStage, error) {
	rows, err := q.db.Query(ctx, listPipelineRunStages, pipelineRunID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PipelineRunStage
	for rows.Next() {
		var i PipelineRunStage
		if err := rows.Scan(
			&i.PipelineRunID,
			&i.StageIndex,
			&i.StageName,
			&i.Marker,
			&i.Status,
			&i.Error,
			&i.DurationMs,
			&i.StartedAt,
			&i.FinishedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestPipelineRun = `
SELECT run_id, name, floor_stage, status, error, started_at, finished_at
FROM pipeline_run
WHERE name = $1
ORDER BY started_at DESC
LIMIT 1
`

func (q *Queries) GetLatestPipelineRun(ctx context.Context, name string) (PipelineRun, error) {
	row := q.db.QueryRow(ctx, getLatestPipelineRun, name)
	var i PipelineRun
	err := row.Scan(
		&i.RunID,
		&i.Name,
		&i.FloorStage,
		&i.Status,
		&i.Error,
		&i.StartedAt,
		&i.FinishedAt,
	)
	return i, err
}
