package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dcshock/speechpipe/config"
)

// bundleFlags exposes every recipe parameter as a long option plus --config.
type bundleFlags struct {
	configPath string
	fs         *pflag.FlagSet
}

func addBundleFlags(cmd *cobra.Command) *bundleFlags {
	bf := &bundleFlags{fs: cmd.Flags()}
	bf.fs.StringVar(&bf.configPath, "config", "", "YAML recipe file with params and commands")
	for _, s := range config.Defaults() {
		usage := s.Usage
		if usage == "" {
			usage = fmt.Sprintf("%s parameter", s.Group)
		}
		bf.fs.String(s.Name, s.Default, usage)
	}
	return bf
}

// resolve loads the recipe file, applies its params and then every option
// given on the command line, and builds the collaborator registry.
func (bf *bundleFlags) resolve() (*config.Bundle, *config.Registry, error) {
	var rf *config.RecipeFile
	if bf.configPath != "" {
		var err error
		rf, err = config.LoadRecipeFile(bf.configPath)
		if err != nil {
			return nil, nil, &config.ConfigError{Message: err.Error()}
		}
	}
	overrides := rf.Overrides()
	for _, s := range config.Defaults() {
		if !bf.fs.Changed(s.Name) {
			continue
		}
		v, err := bf.fs.GetString(s.Name)
		if err != nil {
			return nil, nil, err
		}
		overrides = append(overrides, config.Override{Name: s.Name, Value: v})
	}
	b, err := config.Resolve(overrides)
	if err != nil {
		return nil, nil, err
	}
	reg := config.DefaultRegistry(b.Get("neuralsp_root"))
	if err := reg.Apply(rf); err != nil {
		return nil, nil, err
	}
	return b, reg, nil
}
