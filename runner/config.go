// File: runner/config.go

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner/signature"
	"gopkg.in/yaml.v3"
)

// Config describes a kernel in a YAML file
//
//	source: vecadd.cl
//	function: addToVector
//	macros: [N=16]
//	compiler_options: -cl-fast-relaxed-math
//	thread_block_size: [16, 1, 1]
//	global_size: [1024, 1, 1]
//	argument_types:
//	  real_t: float
type Config struct {
	Source          string            `yaml:"source"`
	Function        string            `yaml:"function"`
	Device          *int              `yaml:"device"`
	Macros          []string          `yaml:"macros"`
	Includes        []string          `yaml:"includes"`
	CompilerOptions string            `yaml:"compiler_options"`
	ThreadBlockSize *Dim3             `yaml:"thread_block_size"`
	GridSize        *Dim3             `yaml:"grid_size"`
	GlobalSize      *Dim3             `yaml:"global_size"`
	GlobalOffset    *Dim3             `yaml:"global_offset"`
	ArgumentTypes   map[string]string `yaml:"argument_types"` // alias token -> element type name
}

// ParseConfig decodes a kernel configuration
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing kernel config: %w", err)
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("kernel config has no source file")
	}
	return &cfg, nil
}

// LoadConfig reads a kernel configuration file. Relative source and include
// paths are taken relative to the file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kernel config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Source) {
		cfg.Source = filepath.Join(dir, cfg.Source)
	}
	for i, inc := range cfg.Includes {
		if !filepath.IsAbs(inc) {
			cfg.Includes[i] = filepath.Join(dir, inc)
		}
	}
	return cfg, nil
}

// Options converts the configuration into kernel options. The global size
// is applied after the thread block size it reduces.
func (cfg *Config) Options() ([]Option, error) {
	var opts []Option
	if cfg.Device != nil {
		opts = append(opts, WithDevice(*cfg.Device))
	}
	if len(cfg.Macros) > 0 {
		opts = append(opts, WithMacros(cfg.Macros...))
	}
	if len(cfg.Includes) > 0 {
		opts = append(opts, WithIncludes(cfg.Includes...))
	}
	if cfg.CompilerOptions != "" {
		opts = append(opts, WithCompilerOptions(cfg.CompilerOptions))
	}
	if cfg.ThreadBlockSize != nil {
		opts = append(opts, WithThreadBlockSize(*cfg.ThreadBlockSize))
	}
	if cfg.GridSize != nil {
		opts = append(opts, WithGridSize(*cfg.GridSize))
	}
	if cfg.GlobalSize != nil {
		opts = append(opts, WithGlobalSize(*cfg.GlobalSize))
	}
	if cfg.GlobalOffset != nil {
		opts = append(opts, WithGlobalOffset(*cfg.GlobalOffset))
	}
	if len(cfg.ArgumentTypes) > 0 {
		aliases := make([]string, 0, len(cfg.ArgumentTypes))
		for alias := range cfg.ArgumentTypes {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		types := make([]signature.DataType, len(aliases))
		for i, alias := range aliases {
			dt, err := signature.ParseDataType(cfg.ArgumentTypes[alias])
			if err != nil {
				return nil, fmt.Errorf("argument type for %s: %w", alias, err)
			}
			types[i] = dt
		}
		opts = append(opts, WithArgumentTypes(types, aliases))
	}
	return opts, nil
}

// NewKernelFromConfig creates the kernel a configuration describes. extra
// options are applied after the configured ones.
func NewKernelFromConfig(devices *device.Directory, backend Backend, cfg *Config,
	extra ...Option) (*Kernel, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return NewKernel(devices, backend, cfg.Source, cfg.Function, append(opts, extra...)...)
}
