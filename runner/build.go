// File: runner/build.go

package runner

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// OptionString combines includes, macros and compiler options into the
// string passed to the backend compiler
func (k *Kernel) OptionString() string {
	s := k.settings
	tokens := make([]string, 0, len(s.Includes)+len(s.Macros)+len(s.CompilerOptions))
	for _, inc := range s.Includes {
		tokens = append(tokens, "-I"+inc)
	}
	for _, m := range s.Macros {
		tokens = append(tokens, "-D"+m)
	}
	tokens = append(tokens, s.CompilerOptions...)
	return strings.Join(tokens, " ")
}

// IsBuilt reports whether the last successful build matches the current
// device and option string
func (k *Kernel) IsBuilt() bool {
	return k.settings.Device == k.lastBuiltDevice && k.OptionString() == k.lastBuiltOptions
}

// Build compiles the kernel source for the selected device. extra options
// are appended for this compile only and are not part of the cache key.
func (k *Kernel) Build(extra ...string) error {
	options := k.OptionString()
	compileOptions := strings.Join(append([]string{options}, extra...), " ")
	compileOptions = strings.TrimSpace(compileOptions)
	dev := k.settings.Device

	k.logger.Debug("building kernel",
		slog.String("kernel", k.decl.Name),
		slog.Int("device", dev),
		slog.String("options", compileOptions))

	// a failed build leaves no valid artifact behind
	k.lastBuiltDevice = -1
	k.lastBuiltOptions = ""

	names, err := k.backend.Compile(dev, k.sourceFile, compileOptions)
	found := slices.Contains(names, k.decl.Name)
	if err != nil {
		if !found {
			return &BuildError{Kernel: k.decl.Name, Device: dev, Options: compileOptions, Err: err}
		}
		// another kernel in the same source failed
		k.logger.Warn("kernel built, other kernels in the source failed",
			slog.String("kernel", k.decl.Name),
			slog.Any("err", err))
	}
	if !found {
		return fmt.Errorf("%w: %s not among compiled kernels [%s] of %s",
			ErrKernelNotFoundInBuild, k.decl.Name, strings.Join(names, ", "), k.sourceFile)
	}

	k.lastBuiltDevice = dev
	k.lastBuiltOptions = options
	k.logger.Debug("kernel built",
		slog.String("kernel", k.decl.Name),
		slog.Any("kernels", names))
	return nil
}
