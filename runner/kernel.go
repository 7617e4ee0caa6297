// File: runner/kernel.go

package runner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner/signature"
)

// Settings is the mutable configuration of a kernel. Changing Device,
// Macros, Includes or CompilerOptions makes the kernel stale, and the next
// call rebuilds it.
type Settings struct {
	Geometry        Geometry
	Device          int
	Macros          []string
	Includes        []string
	CompilerOptions []string
}

func (s Settings) clone() Settings {
	s.Macros = append([]string(nil), s.Macros...)
	s.Includes = append([]string(nil), s.Includes...)
	s.CompilerOptions = append([]string(nil), s.CompilerOptions...)
	return s
}

// Kernel wraps one kernel function of a source file and makes it callable.
// The source file, function name and signature are fixed at construction.
// A Kernel is meant for use by one goroutine at a time.
type Kernel struct {
	backend Backend
	devices *device.Directory
	logger  *slog.Logger

	sourceFile string
	decl       signature.Declaration

	// resolved lazily from decl.Params
	params          []signature.Descriptor
	overrideTypes   []signature.DataType
	overrideAliases []string

	settings Settings

	// build cache key, set by a successful Build
	lastBuiltDevice  int
	lastBuiltOptions string
}

// NewKernel extracts functionName from the kernel source file. An empty
// functionName selects the only kernel in the file. The kernel starts on the
// directory's current device.
func NewKernel(devices *device.Directory, backend Backend, sourceFile, functionName string,
	opts ...Option) (*Kernel, error) {
	if devices == nil {
		return nil, fmt.Errorf("device directory is nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}

	decl, err := signature.ExtractFile(sourceFile, functionName)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		backend:         backend,
		devices:         devices,
		logger:          slog.Default(),
		sourceFile:      sourceFile,
		decl:            decl,
		lastBuiltDevice: -1,
		settings: Settings{
			Geometry: NewGeometry(),
			Device:   devices.CurrentIndex(),
		},
	}
	for _, opt := range opts {
		if err := opt(k); err != nil {
			return nil, fmt.Errorf("kernel %s: %w", decl.Name, err)
		}
	}
	return k, nil
}

// With returns an independent copy of the kernel with opts applied. The copy
// keeps the build cache key, so it stays built unless an option changes a
// build-relevant setting.
func (k *Kernel) With(opts ...Option) (*Kernel, error) {
	c := *k
	c.settings = k.settings.clone()
	c.params = append([]signature.Descriptor(nil), k.params...)
	c.overrideTypes = append([]signature.DataType(nil), k.overrideTypes...)
	c.overrideAliases = append([]string(nil), k.overrideAliases...)
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, fmt.Errorf("kernel %s: %w", k.decl.Name, err)
		}
	}
	return &c, nil
}

func (k *Kernel) FunctionName() string { return k.decl.Name }
func (k *Kernel) SourceFile() string   { return k.sourceFile }

// Signature returns the parameter list as declared in the source
func (k *Kernel) Signature() string { return k.decl.Params }

// Declaration renders the kernel declaration for diagnostics
func (k *Kernel) Declaration() string {
	return fmt.Sprintf("kernel void %s(%s)", k.decl.Name, k.decl.Params)
}

// Settings returns a copy of the mutable configuration
func (k *Kernel) Settings() Settings { return k.settings.clone() }

// Parameters returns the resolved parameter descriptors. They are resolved
// on first use, with any type override applied.
func (k *Kernel) Parameters() ([]signature.Descriptor, error) {
	if k.params == nil {
		descs, err := signature.Resolve(k.decl.Params)
		if err != nil {
			return nil, fmt.Errorf("kernel %s: %w", k.decl.Name, err)
		}
		if len(k.overrideAliases) > 0 {
			if descs, err = signature.Override(descs, k.overrideTypes, k.overrideAliases); err != nil {
				return nil, err
			}
		}
		if descs == nil {
			descs = []signature.Descriptor{}
		}
		k.params = descs
	}
	return append([]signature.Descriptor(nil), k.params...), nil
}

// SetArgumentTypes declares the element type behind each alias token, for
// typedef or macro types the resolver cannot translate
func (k *Kernel) SetArgumentTypes(types []signature.DataType, aliases []string) error {
	if len(types) != len(aliases) {
		return fmt.Errorf("%w: %d types given for %d aliases",
			signature.ErrInvalidAliasCount, len(types), len(aliases))
	}
	k.overrideTypes = append([]signature.DataType(nil), types...)
	k.overrideAliases = append([]string(nil), aliases...)
	k.params = nil
	return nil
}

// Geometry

func (k *Kernel) ThreadBlockSize() Dim3 { return k.settings.Geometry.ThreadBlockSize() }
func (k *Kernel) GridSize() Dim3        { return k.settings.Geometry.GridSize() }
func (k *Kernel) GlobalOffset() Dim3    { return k.settings.Geometry.GlobalOffset() }
func (k *Kernel) GlobalSize() Dim3      { return k.settings.Geometry.GlobalSize() }

func (k *Kernel) SetThreadBlockSize(d Dim3) error { return k.settings.Geometry.SetThreadBlockSize(d) }
func (k *Kernel) SetGridSize(d Dim3) error        { return k.settings.Geometry.SetGridSize(d) }
func (k *Kernel) SetGlobalOffset(d Dim3) error    { return k.settings.Geometry.SetGlobalOffset(d) }
func (k *Kernel) SetGlobalSize(d Dim3) error      { return k.settings.Geometry.SetGlobalSize(d) }

// Build settings

func (k *Kernel) Device() int { return k.settings.Device }

// SetDevice selects the device the kernel is built for and runs on
func (k *Kernel) SetDevice(i int) error {
	if _, err := k.devices.Device(i); err != nil {
		return err
	}
	k.settings.Device = i
	return nil
}

func (k *Kernel) Macros() []string          { return append([]string(nil), k.settings.Macros...) }
func (k *Kernel) Includes() []string        { return append([]string(nil), k.settings.Includes...) }
func (k *Kernel) CompilerOptions() []string { return append([]string(nil), k.settings.CompilerOptions...) }

// SetMacros replaces the macro definitions, each "NAME" or "NAME=value"
func (k *Kernel) SetMacros(macros ...string) {
	k.settings.Macros = append([]string(nil), macros...)
}

// SetIncludes replaces the include search paths
func (k *Kernel) SetIncludes(paths ...string) {
	k.settings.Includes = append([]string(nil), paths...)
}

// SetCompilerOptions replaces the free-form compiler option tokens
func (k *Kernel) SetCompilerOptions(opts ...string) {
	k.settings.CompilerOptions = append([]string(nil), opts...)
}

// SetCompilerOptionString replaces the compiler options with the tokens of a
// shell-quoted option string
func (k *Kernel) SetCompilerOptionString(s string) error {
	opts, err := splitOptions(s)
	if err != nil {
		return err
	}
	k.settings.CompilerOptions = opts
	return nil
}

// String lists the kernel and its resolved parameters
func (k *Kernel) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s]\n", k.Declaration(), k.sourceFile)
	params, err := k.Parameters()
	if err != nil {
		fmt.Fprintf(&sb, "\t%v\n", err)
		return sb.String()
	}
	for _, p := range params {
		fmt.Fprintf(&sb, "\t%s\n", p)
	}
	return sb.String()
}
