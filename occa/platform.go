// Package occa runs kernels on native devices through OCCA.
package occa

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/LynnColeArt/guda"
	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner/signature"
	"github.com/notargets/gocca"
)

// DefaultDevices are the device specifications probed when none are given,
// in order of preference
var DefaultDevices = []string{
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "OpenCL", "platform_id": 0, "device_id": 0}`,
	`{"mode": "OpenMP"}`,
	`{"mode": "Serial"}`,
}

// limits are the work-group limits assumed per OCCA mode. OCCA does not
// report them, so a device table can be used where they differ.
type limits struct {
	typ        device.Type
	maxThreads int
	maxBlock   [3]int
}

var modeLimits = map[string]limits{
	"CUDA":   {device.TypeGPU, 1024, [3]int{1024, 1024, 64}},
	"HIP":    {device.TypeGPU, 1024, [3]int{1024, 1024, 1024}},
	"OpenCL": {device.TypeDefault, 256, [3]int{256, 256, 256}},
	"OpenMP": {device.TypeCPU, 1024, [3]int{1024, 1024, 1024}},
	"Serial": {device.TypeCPU, 1024, [3]int{1024, 1024, 1024}},
}

type kernelKey struct {
	device int
	name   string
}

type compiled struct {
	kernel *gocca.OCCAKernel
	okl    bool
}

// Platform holds the OCCA devices found by Probe. It satisfies
// device.Prober and runner.Backend; device indices are positions in the
// probed list.
type Platform struct {
	mu      sync.Mutex
	specs   []string
	devices []*gocca.OCCADevice
	kernels map[kernelKey]compiled
	logger  *slog.Logger
}

// NewPlatform returns a platform probing the given device specifications,
// or DefaultDevices when none are given
func NewPlatform(logger *slog.Logger, specs ...string) *Platform {
	if logger == nil {
		logger = slog.Default()
	}
	if len(specs) == 0 {
		specs = DefaultDevices
	}
	return &Platform{
		specs:   append([]string(nil), specs...),
		kernels: make(map[kernelKey]compiled),
		logger:  logger,
	}
}

// Probe opens every device specification that OCCA accepts. Devices and
// kernels from an earlier probe are released.
func (p *Platform) Probe() ([]device.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()

	var infos []device.Info
	for _, spec := range p.specs {
		dev, err := gocca.NewDevice(spec)
		if err != nil {
			p.logger.Debug("OCCA device unavailable", slog.String("spec", spec), slog.Any("err", err))
			continue
		}
		p.devices = append(p.devices, dev)
		infos = append(infos, infoFor(dev.Mode(), spec))
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no OCCA device could be created from %d specifications", len(p.specs))
	}
	return infos, nil
}

func infoFor(mode, spec string) device.Info {
	lim, ok := modeLimits[mode]
	if !ok {
		lim = modeLimits["Serial"]
	}
	return device.Info{
		Name:               fmt.Sprintf("OCCA %s %s", mode, spec),
		Vendor:             "OCCA",
		Backend:            mode,
		Type:               lim.typ,
		MaxThreadsPerBlock: lim.maxThreads,
		MaxThreadBlockSize: lim.maxBlock,
	}
}

// Free releases all devices and kernels
func (p *Platform) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
}

func (p *Platform) release() {
	for key, c := range p.kernels {
		c.kernel.Free()
		delete(p.kernels, key)
	}
	for _, dev := range p.devices {
		dev.Free()
	}
	p.devices = nil
}

func (p *Platform) device(i int) (*gocca.OCCADevice, error) {
	if i < 0 || i >= len(p.devices) {
		return nil, fmt.Errorf("device %d out of range, %d OCCA devices probed", i, len(p.devices))
	}
	return p.devices[i], nil
}

// Compile builds every kernel the source declares and returns the names
// that built
func (p *Platform) Compile(dev int, sourcePath, options string) ([]string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read kernel source: %w", err)
	}
	src := string(data)
	okl := isOKL(src)
	propsJSON, err := buildProps(options, okl)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	d, err := p.device(dev)
	if err != nil {
		return nil, err
	}

	props := gocca.JsonParse(propsJSON)
	defer props.Free()

	var names []string
	var failures []string
	for _, decl := range signature.FindKernels(src) {
		kernel, err := d.BuildKernelFromString(src, decl.Name, props)
		if err != nil {
			p.logger.Warn("OCCA kernel build failed",
				slog.String("kernel", decl.Name), slog.Any("err", err))
			failures = append(failures, fmt.Sprintf("%s: %v", decl.Name, err))
			continue
		}
		key := kernelKey{device: dev, name: decl.Name}
		if old, ok := p.kernels[key]; ok {
			old.kernel.Free()
		}
		p.kernels[key] = compiled{kernel: kernel, okl: okl}
		names = append(names, decl.Name)
	}
	if len(failures) > 0 {
		return names, fmt.Errorf("%s", strings.Join(failures, "; "))
	}
	return names, nil
}

// Dispatch copies buffers and writable scalars to device memory, runs the
// kernel and copies writable buffers back into new host slices
func (p *Platform) Dispatch(dev int, kernel string, geometry [6]int, block [3]int,
	args []interface{}, readOnly []bool) ([]interface{}, error) {
	if err := checkOffset(geometry); err != nil {
		return nil, err
	}
	grid, err := gridOf(geometry, block)
	if err != nil {
		return nil, err
	}
	if len(readOnly) != len(args) {
		return nil, fmt.Errorf("%d read-only flags for %d arguments", len(readOnly), len(args))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	d, err := p.device(dev)
	if err != nil {
		return nil, err
	}
	c, ok := p.kernels[kernelKey{device: dev, name: kernel}]
	if !ok {
		return nil, fmt.Errorf("kernel %s has not been compiled for device %d", kernel, dev)
	}

	buffers := make([]*gocca.OCCAMemory, len(args))
	defer func() {
		for _, mem := range buffers {
			if mem != nil {
				mem.Free()
			}
		}
	}()

	hostArgs := make([]interface{}, len(args))
	runArgs := make([]interface{}, len(args))
	for i, a := range args {
		if !isSlice(a) && readOnly[i] {
			v, err := scalarArg(a)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			runArgs[i] = v
			continue
		}
		if !isSlice(a) {
			a = wrapValue(a)
		}
		hostArgs[i] = a
		ptr, size := hostBytes(a)
		buffers[i] = d.Malloc(size, ptr, nil)
		runArgs[i] = buffers[i]
	}

	if !c.okl {
		c.kernel.SetRunDims(grid, gocca.OCCADim{X: uint64(block[0]), Y: uint64(block[1]), Z: uint64(block[2])})
	}
	p.logger.Debug("running OCCA kernel", slog.String("kernel", kernel), slog.Int("device", dev))
	if err := c.kernel.RunWithArgs(runArgs...); err != nil {
		return nil, err
	}
	d.Finish()

	results := make([]interface{}, len(args))
	for i, a := range args {
		if readOnly[i] {
			results[i] = a
			continue
		}
		out := newLike(hostArgs[i])
		ptr, size := hostBytes(out)
		if size > 0 {
			buffers[i].CopyTo(ptr, size)
		}
		if !isSlice(a) {
			results[i] = reflect.ValueOf(out).Index(0).Interface()
			continue
		}
		results[i] = out
	}
	return results, nil
}

// isOKL reports whether the source uses OCCA kernel language attributes.
// Other sources are compiled as native kernels with explicit run dims.
func isOKL(src string) bool {
	return strings.Contains(signature.Strip(src), "@kernel")
}

func buildProps(options string, okl bool) (string, error) {
	props := map[string]interface{}{}
	if options != "" {
		props["compiler_flags"] = options
	}
	if !okl {
		props["okl"] = map[string]interface{}{"enabled": false}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func checkOffset(geometry [6]int) error {
	if geometry[0] != 0 || geometry[1] != 0 || geometry[2] != 0 {
		return fmt.Errorf("OCCA does not support a global offset, got %v", geometry[:3])
	}
	return nil
}

func gridOf(geometry [6]int, block [3]int) (gocca.OCCADim, error) {
	var g [3]uint64
	for i := range g {
		if block[i] < 1 || geometry[3+i]%block[i] != 0 {
			return gocca.OCCADim{}, fmt.Errorf("global size %v is not a multiple of block %v", geometry[3:], block)
		}
		g[i] = uint64(geometry[3+i] / block[i])
	}
	return gocca.OCCADim{X: g[0], Y: g[1], Z: g[2]}, nil
}

// scalarArg converts a by-value argument to a type OCCA accepts
func scalarArg(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case guda.Float16:
		return uint16(s), nil
	case bool, int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32, float64:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported scalar type %T", v)
}

func isSlice(v interface{}) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Slice
}

func wrapValue(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	buf := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
	buf.Index(0).Set(rv)
	return buf.Interface()
}

func newLike(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	return reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len()).Interface()
}

// hostBytes returns the address and byte size of a slice's elements. An
// empty slice yields a nil pointer and zero size.
func hostBytes(v interface{}) (unsafe.Pointer, int64) {
	rv := reflect.ValueOf(v)
	if rv.Len() == 0 {
		return nil, 0
	}
	return rv.UnsafePointer(), int64(rv.Len()) * int64(rv.Type().Elem().Size())
}
