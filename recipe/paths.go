package recipe

import (
	"path/filepath"

	"github.com/dcshock/speechpipe/config"
)

// Paths are the artifact locations derived from a bundle. Every stage that
// reads an artifact finds it where the producing stage wrote it.
type Paths struct {
	Data  string
	Model string

	CorpusDir string
	Dict      string
	NLSyms    string

	// WPModel is the sentencepiece model prefix; the trainers get WPModel+".model".
	WPModel string
}

// NewPaths derives the artifact locations for b.
func NewPaths(b *config.Bundle) Paths {
	data := b.Get("data")
	d := b.Derived()
	return Paths{
		Data:      data,
		Model:     b.Get("model"),
		CorpusDir: filepath.Join(data, "csj-data"),
		Dict:      filepath.Join(data, "dict", d.TrainSet+"_"+b.UnitTag()+".txt"),
		NLSyms:    filepath.Join(data, "dict", "nlsyms.txt"),
		WPModel:   filepath.Join(data, "dict", d.TrainSet+"_"+b.Get("wp_type")+b.Get("vocab_size")),
	}
}

// SetDir is the Kaldi data directory of a set.
func (p Paths) SetDir(set string) string { return filepath.Join(p.Data, set) }

// DumpDir is where normalized features of a set are dumped.
func (p Paths) DumpDir(set string) string { return filepath.Join(p.Data, "dump", set) }

// LogDir is the collaborator log directory for a task and set.
func (p Paths) LogDir(task, set string) string { return filepath.Join(p.Data, "log", task, set) }

// Manifest is the ASR dataset tsv of a set.
func (p Paths) Manifest(set, unitTag string) string {
	return filepath.Join(p.Data, "dataset", set+"_"+unitTag+".tsv")
}

// LMManifest is the LM dataset tsv of a set.
func (p Paths) LMManifest(set, unitTag string) string {
	return filepath.Join(p.Data, "dataset_lm", set+"_"+unitTag+".tsv")
}
