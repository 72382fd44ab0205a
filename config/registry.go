package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Registry maps collaborator names to the programs that implement them.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]string)}
}

// DefaultRegistry returns the collaborator table of the CSJ recipe. Trainer
// entry points live under neuralspRoot.
func DefaultRegistry(neuralspRoot string) *Registry {
	r := NewRegistry()
	for name, program := range map[string]string{
		"extract_corpus":     "tar",
		"csj_autorun":        "local/csj_make_trans/csj_autorun.sh",
		"csj_data_prep":      "local/csj_data_prep.sh",
		"csj_eval_data_prep": "local/csj_eval_data_prep.sh",
		"remove_pos":         "local/remove_pos.py",
		"nkf":                "nkf",
		"make_fbank":         "steps/make_fbank.sh",
		"subset_data_dir":    "utils/subset_data_dir.sh",
		"remove_dup_utts":    "utils/data/remove_dup_utts.sh",
		"compute_cmvn_stats": "compute-cmvn-stats",
		"dump_feat":          "dump_feat.sh",
		"spm_train":          "spm_train",
		"spm_encode":         "spm_encode",
		"make_dataset":       "make_dataset.sh",
		"lm_train":           filepath.Join(neuralspRoot, "neural_sp", "bin", "lm", "train.py"),
		"asr_train":          filepath.Join(neuralspRoot, "neural_sp", "bin", "asr", "train.py"),
	} {
		r.Register(name, program)
	}
	return r
}

// Register sets the program for name. Overwrites any existing registration.
func (r *Registry) Register(name, program string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.programs == nil {
		r.programs = make(map[string]string)
	}
	r.programs[name] = program
}

// Get returns the program for name, or "" and false if not found.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}

// MustGet returns the program for name, or panics if not found.
func (r *Registry) MustGet(name string) string {
	p, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("config: collaborator %q not registered", name))
	}
	return p
}

// Names returns all registered collaborator names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for n := range r.programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply registers every command of rf, replacing defaults. Unknown names
// are rejected so typos do not silently leave a default in place.
func (r *Registry) Apply(rf *RecipeFile) error {
	if rf == nil {
		return nil
	}
	names := make([]string, 0, len(rf.Commands))
	for n := range rf.Commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, ok := r.Get(n); !ok {
			return configErrorf("unknown collaborator %q in commands", n)
		}
		r.Register(n, rf.Commands[n])
	}
	return nil
}
