// Package observer provides pipeline.Observer implementations.
//
//   - LogObserver: slog records for every pipeline and stage event, plus a
//     banner before each stage and a "Finish <stage> (stage: <i>)." line after
//     each completed one.
//   - DBObserver: persists each run and its stages to Postgres (pipeline_run,
//     pipeline_run_stage). Open connects and applies the embedded migration.
//
// Combine them with pipeline.MultiObserver.
package observer
