package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ccx64/pkg/diag"
)

// Config holds the settings of one compiler invocation. It can be loaded
// from a YAML file and then overridden by command-line flags.
type Config struct {
	IncludePaths []string `yaml:"include_paths"`
	SystemPaths  []string `yaml:"system_paths"` // nil means the host defaults
	Defines      []string `yaml:"defines"`      // NAME or NAME=VALUE
	Undefines    []string `yaml:"undefines"`

	Debug    bool   `yaml:"debug"`    // emit .file/.loc directives
	Warnings string `yaml:"warnings"` // none, default or all
	Werror   bool   `yaml:"werror"`

	// ExternalCPP runs the system C preprocessor before the built-in one.
	ExternalCPP bool `yaml:"external_cpp"`

	// Now is the clock behind __DATE__ and __TIME__; nil means time.Now.
	Now func() time.Time `yaml:"-"`
}

// LoadConfig reads a YAML configuration file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f, path)
}

// DecodeConfig decodes a YAML configuration; name is used in errors.
func DecodeConfig(r io.Reader, name string) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if _, err := cfg.WarnLevel(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// WarnLevel maps the Warnings setting to a reporter level.
func (c *Config) WarnLevel() (diag.Level, error) {
	switch c.Warnings {
	case "", "default":
		return diag.WarnDefault, nil
	case "none":
		return diag.WarnNone, nil
	case "all":
		return diag.WarnAll, nil
	}
	return diag.WarnDefault, fmt.Errorf("unknown warning level %q", c.Warnings)
}
