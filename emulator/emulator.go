// Package emulator runs kernels as Go functions on the CPU through guda.
// A kernel is registered under the name it has in the kernel source;
// compiling a source enables the registered kernels it declares.
package emulator

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/LynnColeArt/guda"
	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner/signature"
)

// KernelFunc is the body of a kernel, run once per work-item. args holds
// one entry per kernel parameter: slices for buffers, plain values for
// read-only scalars.
type KernelFunc func(w WorkItem, args []interface{})

// Work-group limits reported for the emulated device
const (
	MaxThreadsPerBlock = 1024
	MaxBlockDimZ       = 64
)

// Backend is a CPU backend. It satisfies runner.Backend and device.Prober.
type Backend struct {
	mu      sync.RWMutex
	kernels map[string]KernelFunc
	built   map[string]string // kernel name -> options it was compiled with
	logger  *slog.Logger
}

// New returns a backend without registered kernels
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		kernels: make(map[string]KernelFunc),
		built:   make(map[string]string),
		logger:  logger,
	}
}

// Register associates a kernel name with its Go implementation
func (b *Backend) Register(name string, fn KernelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kernels[name] = fn
	delete(b.built, name)
}

// Registered returns the registered kernel names, sorted
func (b *Backend) Registered() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.kernels))
	for name := range b.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Probe reports the guda CPU device
func (b *Backend) Probe() ([]device.Info, error) {
	props, err := guda.GetDeviceProperties(0)
	if err != nil {
		return nil, err
	}
	version, _ := guda.Version()
	if version == "" {
		version = "devel"
	}
	return []device.Info{{
		Name:               "GUDA " + props.Name,
		Vendor:             "guda",
		Version:            version,
		Backend:            "Emulator",
		Type:               device.TypeCPU,
		MaxThreadsPerBlock: MaxThreadsPerBlock,
		MaxThreadBlockSize: [3]int{MaxThreadsPerBlock, MaxThreadsPerBlock, MaxBlockDimZ},
		MaxComputeUnits:    props.NumCores,
		GlobalMemSize:      int64(props.TotalMem),
		MaxMemAllocSize:    int64(props.TotalMem / 4),
	}}, nil
}

// Compile enables the registered kernels declared in the source file and
// returns their names. The options are recorded but not interpreted.
func (b *Backend) Compile(dev int, sourcePath, options string) ([]string, error) {
	if _, err := guda.GetDeviceProperties(dev); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel source: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, decl := range signature.FindKernels(string(src)) {
		if _, ok := b.kernels[decl.Name]; !ok {
			b.logger.Debug("kernel has no registered implementation", slog.String("kernel", decl.Name))
			continue
		}
		b.built[decl.Name] = options
		names = append(names, decl.Name)
	}
	return names, nil
}

// Dispatch runs a compiled kernel over the geometry. Buffers are copied
// before the launch, so caller memory changes only through the returned
// values.
func (b *Backend) Dispatch(dev int, kernel string, geometry [6]int, block [3]int,
	args []interface{}, readOnly []bool) ([]interface{}, error) {
	if _, err := guda.GetDeviceProperties(dev); err != nil {
		return nil, err
	}
	if len(readOnly) != len(args) {
		return nil, fmt.Errorf("%d read-only flags for %d arguments", len(readOnly), len(args))
	}

	b.mu.RLock()
	fn, registered := b.kernels[kernel]
	_, built := b.built[kernel]
	b.mu.RUnlock()
	if !registered {
		return nil, fmt.Errorf("kernel %s is not registered", kernel)
	}
	if !built {
		return nil, fmt.Errorf("kernel %s has not been compiled", kernel)
	}

	grid, gridErr := gridOf(geometry, block)
	if gridErr != nil {
		return nil, gridErr
	}

	devArgs := make([]interface{}, len(args))
	wrapped := make([]bool, len(args))
	for i, a := range args {
		switch {
		case isBuffer(a):
			devArgs[i] = copyBuffer(a)
		case readOnly[i]:
			devArgs[i] = a
		default:
			// a writable single value lives in a one element buffer
			devArgs[i] = wrapValue(a)
			wrapped[i] = true
		}
	}

	offset := [3]int{geometry[0], geometry[1], geometry[2]}
	var (
		once     sync.Once
		panicErr error
	)
	run := func(tid guda.ThreadID, a ...interface{}) {
		defer func() {
			if r := recover(); r != nil {
				once.Do(func() { panicErr = fmt.Errorf("kernel %s panicked: %v", kernel, r) })
			}
		}()
		fn(WorkItem{tid: tid, offset: offset}, a)
	}

	b.logger.Debug("launching emulated kernel",
		slog.String("kernel", kernel),
		slog.Any("grid", grid),
		slog.Any("block", block))
	blockDim := guda.Dim3{X: block[0], Y: block[1], Z: block[2]}
	if err := guda.LaunchFunc(run, grid, blockDim, devArgs...); err != nil {
		return nil, err
	}
	if err := guda.Synchronize(); err != nil {
		return nil, err
	}
	if panicErr != nil {
		return nil, panicErr
	}

	results := make([]interface{}, len(args))
	for i := range args {
		switch {
		case readOnly[i]:
			results[i] = args[i]
		case wrapped[i]:
			results[i] = reflect.ValueOf(devArgs[i]).Index(0).Interface()
		default:
			results[i] = devArgs[i]
		}
	}
	return results, nil
}

func gridOf(geometry [6]int, block [3]int) (guda.Dim3, error) {
	var g [3]int
	for i := range g {
		if block[i] < 1 {
			return guda.Dim3{}, fmt.Errorf("block %v: component %d must be positive", block, i)
		}
		global := geometry[3+i]
		if global%block[i] != 0 {
			return guda.Dim3{}, fmt.Errorf("global size %d is not a multiple of block size %d in dimension %d",
				global, block[i], i)
		}
		g[i] = global / block[i]
	}
	return guda.Dim3{X: g[0], Y: g[1], Z: g[2]}, nil
}

func isBuffer(v interface{}) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Slice
}

func copyBuffer(v interface{}) interface{} {
	src := reflect.ValueOf(v)
	dst := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
	reflect.Copy(dst, src)
	return dst.Interface()
}

func wrapValue(v interface{}) interface{} {
	if v == nil {
		return []interface{}{nil}
	}
	rv := reflect.ValueOf(v)
	buf := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
	buf.Index(0).Set(rv)
	return buf.Interface()
}
