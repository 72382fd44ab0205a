package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalSets are the fixed evaluation partitions, in order.
var EvalSets = []string{"eval1", "eval2", "eval3"}

// Param is one resolved parameter value.
type Param struct {
	ParamSpec
	Value string
}

// Derived holds values computed from the resolved parameters.
type Derived struct {
	TrainSet string
	DevSet   string
	EvalSets []string

	// GPUs are the device ids from the gpu parameter, in order.
	GPUs []string

	// RNNLMGPU is the single device used for RNNLM training: the first id.
	RNNLMGPU string
}

// NGPUs returns the number of requested devices.
func (d Derived) NGPUs() int { return len(d.GPUs) }

// Bundle is the frozen configuration shared by every stage. It has no
// mutating methods; accessors return copies.
type Bundle struct {
	params  []Param
	index   map[string]int
	derived Derived
}

// Get returns the value of name, or "" for unknown names.
func (b *Bundle) Get(name string) string {
	v, _ := b.Lookup(name)
	return v
}

// Lookup returns the value of name and whether the parameter exists.
func (b *Bundle) Lookup(name string) (string, bool) {
	i, ok := b.index[name]
	if !ok {
		return "", false
	}
	return b.params[i].Value, true
}

// Int returns the value of name parsed as an integer.
func (b *Bundle) Int(name string) (int, error) {
	v, ok := b.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not an integer", name, v)
	}
	return n, nil
}

// Params returns every parameter in declaration order.
func (b *Bundle) Params() []Param {
	out := make([]Param, len(b.params))
	copy(out, b.params)
	return out
}

// Group returns the parameters of g in declaration order.
func (b *Bundle) Group(g Group) []Param {
	var out []Param
	for _, p := range b.params {
		if p.Group == g {
			out = append(out, p)
		}
	}
	return out
}

// TrainerArgs flattens the parameters of groups into "--flag value" pairs
// in declaration order. Empty values are left out so the trainer falls back
// to its own default.
func (b *Bundle) TrainerArgs(groups ...Group) []string {
	want := make(map[Group]bool, len(groups))
	for _, g := range groups {
		want[g] = true
	}
	var args []string
	for _, p := range b.params {
		if !want[p.Group] || p.Value == "" {
			continue
		}
		args = append(args, "--"+p.TrainerFlag(), p.Value)
	}
	return args
}

// Derived returns the computed values.
func (b *Bundle) Derived() Derived {
	d := b.derived
	d.EvalSets = append([]string(nil), b.derived.EvalSets...)
	d.GPUs = append([]string(nil), b.derived.GPUs...)
	return d
}

// UnitTag is the unit fingerprint used in marker keys and artifact names:
// unit, word-piece type and vocabulary size concatenated (e.g. "wpbpe10000",
// "char").
func (b *Bundle) UnitTag() string {
	return b.Get("unit") + b.Get("wp_type") + b.Get("vocab_size")
}

// Override sets one parameter during resolution.
type Override struct {
	Name  string
	Value string
}

// ParseOverride parses "name=value".
func ParseOverride(s string) (Override, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Override{}, configErrorf("invalid override %q (expected name=value)", s)
	}
	return Override{Name: name, Value: value}, nil
}

// Resolve builds the frozen Bundle from the compiled-in defaults and the
// overrides, applied in order (a later override of the same name wins).
//
// Derived rules: unit char clears vocab_size, any unit other than wp clears
// wp_type, lm_data_size defaults to data_size, and gpu must name at least
// one device. Errors are *ConfigError.
func Resolve(overrides []Override) (*Bundle, error) {
	b := &Bundle{index: make(map[string]int, len(specs))}
	for i, s := range specs {
		b.params = append(b.params, Param{ParamSpec: s, Value: s.Default})
		b.index[s.Name] = i
	}
	for _, o := range overrides {
		i, ok := b.index[o.Name]
		if !ok {
			return nil, configErrorf("unknown parameter %q", o.Name)
		}
		b.params[i].Value = strings.TrimSpace(o.Value)
	}
	if err := b.derive(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) set(name, value string) {
	b.params[b.index[name]].Value = value
}

func (b *Bundle) derive() error {
	// A missing device list is reported before any other problem.
	gpus, err := splitGPUs(b.Get("gpu"))
	if err != nil {
		return err
	}

	unit := b.Get("unit")
	switch unit {
	case UnitChar, UnitWord, UnitWordPiece, UnitWordChar:
	default:
		return configErrorf("invalid unit %q (expected char, word, wp or word_char)", unit)
	}
	if unit == UnitChar {
		b.set("vocab_size", "")
	}
	if unit != UnitWordPiece {
		b.set("wp_type", "")
	} else if wp := b.Get("wp_type"); wp != "bpe" && wp != "unigram" {
		return configErrorf("invalid wp_type %q (expected bpe or unigram)", wp)
	}
	if unit != UnitChar {
		n, err := strconv.Atoi(b.Get("vocab_size"))
		if err != nil || n <= 0 {
			return configErrorf("vocab_size must be a positive integer for unit %s, got %q", unit, b.Get("vocab_size"))
		}
	}

	dataSize := b.Get("data_size")
	if dataSize == "" {
		return configErrorf("data_size is required")
	}
	if b.Get("lm_data_size") == "" {
		b.set("lm_data_size", dataSize)
	}
	for _, name := range []string{"nj", "dev_n_utts", "max_dup_utts"} {
		if n, err := b.Int(name); err != nil || n <= 0 {
			return configErrorf("%s must be a positive integer, got %q", name, b.Get(name))
		}
	}

	b.derived = Derived{
		TrainSet: "train_nodev_" + dataSize,
		DevSet:   "dev_" + dataSize,
		EvalSets: append([]string(nil), EvalSets...),
		GPUs:     gpus,
		RNNLMGPU: gpus[0],
	}
	return nil
}

func splitGPUs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ConfigError{Message: "set GPU number", Usage: GPUUsage}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("invalid gpu list %q: empty device id", raw), Usage: GPUUsage}
		}
		out = append(out, p)
	}
	return out, nil
}
