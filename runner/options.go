// File: runner/options.go

package runner

import (
	"fmt"
	"log/slog"

	"github.com/mattn/go-shellwords"
	"github.com/notargets/clkernel/runner/signature"
)

// Option configures a Kernel at construction or through Kernel.With
type Option func(*Kernel) error

// WithDevice selects the device by directory index
func WithDevice(i int) Option {
	return func(k *Kernel) error { return k.SetDevice(i) }
}

// WithMacros sets the preprocessor definitions, each "NAME" or "NAME=value"
func WithMacros(macros ...string) Option {
	return func(k *Kernel) error {
		k.SetMacros(macros...)
		return nil
	}
}

// WithIncludes sets the include search paths
func WithIncludes(paths ...string) Option {
	return func(k *Kernel) error {
		k.SetIncludes(paths...)
		return nil
	}
}

// WithCompilerOptions sets the free-form compiler options. Each entry may
// hold several shell-quoted tokens, e.g. "-cl-fast-relaxed-math -w".
func WithCompilerOptions(opts ...string) Option {
	return func(k *Kernel) error {
		var tokens []string
		for _, o := range opts {
			t, err := splitOptions(o)
			if err != nil {
				return err
			}
			tokens = append(tokens, t...)
		}
		k.SetCompilerOptions(tokens...)
		return nil
	}
}

func WithThreadBlockSize(d Dim3) Option {
	return func(k *Kernel) error { return k.SetThreadBlockSize(d) }
}

func WithGridSize(d Dim3) Option {
	return func(k *Kernel) error { return k.SetGridSize(d) }
}

// WithGlobalSize sets the total work size. Apply it after WithThreadBlockSize
// since it may reduce the thread block.
func WithGlobalSize(d Dim3) Option {
	return func(k *Kernel) error { return k.SetGlobalSize(d) }
}

func WithGlobalOffset(d Dim3) Option {
	return func(k *Kernel) error { return k.SetGlobalOffset(d) }
}

// WithArgumentTypes maps alias type tokens of the signature to element types
func WithArgumentTypes(types []signature.DataType, aliases []string) Option {
	return func(k *Kernel) error { return k.SetArgumentTypes(types, aliases) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) error {
		if logger == nil {
			return fmt.Errorf("logger is nil")
		}
		k.logger = logger
		return nil
	}
}

func splitOptions(s string) ([]string, error) {
	tokens, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("compiler options %q: %w", s, err)
	}
	return tokens, nil
}
