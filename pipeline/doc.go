// Package pipeline runs a recipe as an ordered list of gated stages.
//
// Each Stage has an index, a name, a completion marker key and a body made of
// Steps (collaborator invocations or built-in actions). Pipeline.Run visits
// stages in increasing index order starting at RunOptions.Floor:
//
//   - if the stage's marker exists the body is skipped;
//   - otherwise every Prerequisite marker must exist, or Run fails with a
//     *PrerequisiteError carrying the corrective hint;
//   - steps run one at a time and the first error ends the whole run with a
//     *StageError (like shell set -e);
//   - when every step succeeds the marker is created.
//
// There are no retries. A failed run is fixed and rerun with the same
// command; completed stages are skipped because their markers exist.
//
// Optional pre/post hooks (Observer) let you log progress or persist run
// history: BeforePipeline, BeforeStage/AfterStage (with skipped/done/failed
// status and duration) and AfterPipeline. Pass RunOptions{Observer: obs}.
// Combine several with MultiObserver. The zero RunOptions runs every stage;
// set Stop with StopAt to end early.
//
//	p := &pipeline.Pipeline{
//	    Name:    "asr",
//	    Markers: store,
//	    Stages: []pipeline.Stage{
//	        {Index: 0, Name: "data preparation", Marker: marker.ComposeKey(0, "all"),
//	            Steps: []pipeline.Step{pipeline.Exec(runner, prep)}},
//	    },
//	}
//	res, err := p.Run(ctx, &pipeline.RunOptions{Observer: obs})
package pipeline
