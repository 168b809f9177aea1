// Package config handles the project configuration file, devenv.yaml
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devenvgo/devenv/pkg/fsutil"
)

// FileName is the configuration file inside the project root
const FileName = "devenv.yaml"

// ErrInvalidInput is returned when an input cannot be turned into a flake input
var ErrInvalidInput = errors.New("invalid input")

// Config is the in-memory project configuration
type Config struct {
	Inputs                    map[string]Input `yaml:"inputs,omitempty" json:"inputs"`
	Imports                   []string         `yaml:"imports,omitempty" json:"imports"`
	PermittedInsecurePackages []string         `yaml:"permittedInsecurePackages,omitempty" json:"permittedInsecurePackages"`
	Clean                     *Clean           `yaml:"clean,omitempty" json:"clean,omitempty"`
	Impure                    bool             `yaml:"impure,omitempty" json:"impure"`
	AllowUnfree               bool             `yaml:"allowUnfree,omitempty" json:"allowUnfree"`
	AllowBroken               bool             `yaml:"allowBroken,omitempty" json:"allowBroken"`
	Backend                   string           `yaml:"backend,omitempty" json:"backend,omitempty"`
}

// Input is a build input as declared in devenv.yaml
type Input struct {
	URL      string           `yaml:"url,omitempty" json:"url,omitempty"`
	Flake    *bool            `yaml:"flake,omitempty" json:"flake,omitempty"`
	Follows  string           `yaml:"follows,omitempty" json:"follows,omitempty"`
	Inputs   map[string]Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Overlays []string         `yaml:"overlays,omitempty" json:"overlays,omitempty"`
}

// FlakeInput is the record serialized into flake.json
type FlakeInput struct {
	URL      string           `json:"url,omitempty"`
	Follows  string           `json:"follows,omitempty"`
	Inputs   map[string]Input `json:"inputs"`
	Flake    bool             `json:"flake"`
	Overlays []string         `json:"overlays"`
}

// Clean controls the filtered-environment policy
type Clean struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Keep    []string `yaml:"keep,omitempty" json:"keep"`
}

// Default returns the configuration used when devenv.yaml is absent
func Default() *Config {
	return &Config{
		Inputs:  map[string]Input{},
		Imports: []string{},
	}
}

// Load reads devenv.yaml from root. A missing file yields the defaults.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Inputs == nil {
		cfg.Inputs = map[string]Input{}
	}
	if cfg.Imports == nil {
		cfg.Imports = []string{}
	}
	return cfg, nil
}

// Write serializes the configuration back to root/devenv.yaml
func (c *Config) Write(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if _, err := fsutil.WriteFileWithLock(filepath.Join(root, FileName), data); err != nil {
		return err
	}
	return nil
}

// AddInput declares a new input, or replaces an existing one. Each entry of
// follows makes the nested input of that name follow the top-level input of
// the same name.
func (c *Config) AddInput(name, url string, follows []string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if url == "" {
		return fmt.Errorf("%w: %s: url must not be empty", ErrInvalidInput, name)
	}

	input := Input{URL: url}
	if len(follows) > 0 {
		input.Inputs = make(map[string]Input, len(follows))
		for _, f := range follows {
			input.Inputs[f] = Input{Follows: f}
		}
	}

	if c.Inputs == nil {
		c.Inputs = map[string]Input{}
	}
	c.Inputs[name] = input
	return nil
}

// CleanPolicy returns the configured policy or the zero policy
func (c *Config) CleanPolicy() Clean {
	if c.Clean == nil {
		return Clean{}
	}
	return *c.Clean
}

// FlakeInput converts a declared input into the flake.json record
func (i Input) FlakeInput() (FlakeInput, error) {
	if i.URL == "" && i.Follows == "" {
		return FlakeInput{}, fmt.Errorf("%w: url or follows is required", ErrInvalidInput)
	}

	fi := FlakeInput{
		URL:      i.URL,
		Follows:  i.Follows,
		Inputs:   i.Inputs,
		Flake:    true,
		Overlays: i.Overlays,
	}
	if i.Flake != nil {
		fi.Flake = *i.Flake
	}
	if fi.Inputs == nil {
		fi.Inputs = map[string]Input{}
	}
	if fi.Overlays == nil {
		fi.Overlays = []string{}
	}
	return fi, nil
}

// FlakeInputs converts every declared input, failing on the first invalid one
func (c *Config) FlakeInputs() (map[string]FlakeInput, error) {
	out := make(map[string]FlakeInput, len(c.Inputs))
	for name, input := range c.Inputs {
		fi, err := input.FlakeInput()
		if err != nil {
			return nil, fmt.Errorf("failed to parse input %s: %w", name, err)
		}
		out[name] = fi
	}
	return out, nil
}
