// Package config resolves the frozen configuration of a recipe run and the
// collaborator registry.
//
// Parameters come from a compiled-in table (Defaults), optionally overridden
// by a YAML recipe file and then by command-line options:
//
//	params:
//	  unit: char
//	  enc_type: conformer
//	commands:
//	  asr_train: /opt/neural_sp/neural_sp/bin/asr/train.py
//
// Resolve applies the overrides in order and derives dependent values (vocab
// size cleared for characters, word-piece type cleared outside wp, train/dev
// set names, GPU list). The resulting Bundle is read-only and is shared by
// every stage. TrainerArgs flattens parameter groups into trainer options.
package config
