package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// RecipeFile is a YAML file of parameter overrides and collaborator paths:
//
//	params:
//	  unit: char
//	  enc_type: conformer
//	  batch_size: 50
//	commands:
//	  asr_train: /opt/neural_sp/neural_sp/bin/asr/train.py
type RecipeFile struct {
	Params   map[string]Scalar `yaml:"params"`
	Commands map[string]string `yaml:"commands"`
}

// Scalar is a YAML scalar kept as its literal text, so 1e-3, true and 50
// reach the trainers exactly as written.
type Scalar string

// UnmarshalYAML implements yaml.Unmarshaler. Only scalar nodes are accepted;
// null becomes the empty string.
func (s *Scalar) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", value.Line)
	}
	if value.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(value.Value)
	return nil
}

// ParseRecipeFile parses YAML bytes into a RecipeFile.
func ParseRecipeFile(data []byte) (*RecipeFile, error) {
	var rf RecipeFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, err
	}
	return &rf, nil
}

// LoadRecipeFile reads and parses path.
func LoadRecipeFile(path string) (*RecipeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rf, err := ParseRecipeFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

// Overrides returns the file's parameters as overrides sorted by name.
func (rf *RecipeFile) Overrides() []Override {
	if rf == nil {
		return nil
	}
	names := make([]string, 0, len(rf.Params))
	for n := range rf.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Override, 0, len(names))
	for _, n := range names {
		out = append(out, Override{Name: n, Value: string(rf.Params[n])})
	}
	return out
}

// MarshalBundle renders b as a RecipeFile YAML document listing every
// parameter in declaration order. Feeding it back through --config
// reproduces the bundle.
func MarshalBundle(b *Bundle) ([]byte, error) {
	params := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range b.Params() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: p.Name}
		if p.Usage != "" {
			key.HeadComment = p.Usage
		}
		params.Content = append(params.Content, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Value})
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "params"},
		params,
	}}
	return yaml.Marshal(doc)
}
