package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type PipelineRun struct {
	RunID      string
	Name       string
	FloorStage int32
	Status     string
	Error      pgtype.Text
	StartedAt  pgtype.Timestamptz
	FinishedAt pgtype.Timestamptz
}

type PipelineRunStage struct {
	PipelineRunID string
	StageIndex    int32
	StageName     string
	Marker        string
	Status        string
	Error         pgtype.Text
	DurationMs    pgtype.Int8
	StartedAt     pgtype.Timestamptz
	FinishedAt    pgtype.Timestamptz
}
