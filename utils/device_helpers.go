package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/notargets/clkernel/device"
	"github.com/notargets/clkernel/runner/signature"
)

// TestDevices returns a stubbed device table: a small GPU-like device and a
// CPU-like device with a larger work-group limit
func TestDevices() *device.Table {
	return &device.Table{Entries: []device.Info{
		{
			Name:               "Stub GPU",
			Vendor:             "clkernel",
			Version:            "OpenCL 1.2 stub",
			Backend:            "Stub",
			Type:               device.TypeGPU,
			MaxThreadsPerBlock: 256,
			MaxThreadBlockSize: [3]int{256, 256, 64},
			MaxComputeUnits:    16,
			GlobalMemSize:      1 << 30,
			LocalMemSize:       48 << 10,
			MaxMemAllocSize:    256 << 20,
			ClockMHz:           1000,
			Extensions:         []string{"cl_khr_fp64", "cl_khr_fp16"},
		},
		{
			Name:               "Stub CPU",
			Vendor:             "clkernel",
			Version:            "OpenCL 1.2 stub",
			Backend:            "Stub",
			Type:               device.TypeCPU,
			MaxThreadsPerBlock: 1024,
			MaxThreadBlockSize: [3]int{1024, 1024, 1024},
			MaxComputeUnits:    4,
			GlobalMemSize:      4 << 30,
			LocalMemSize:       32 << 10,
			MaxMemAllocSize:    1 << 30,
			ClockMHz:           2400,
			Extensions:         []string{"cl_khr_fp64"},
		},
	}}
}

// StubBackend records compile and dispatch calls without running anything.
// It satisfies runner.Backend.
type StubBackend struct {
	mu sync.Mutex

	// Kernels is the list Compile reports. When nil the kernels declared in
	// the source file are reported.
	Kernels []string

	// CompileErr fails every compile. Kernels, when also set, are reported
	// as the kernels that did build.
	CompileErr  error
	DispatchErr error

	// Run, when set, is called with the dispatched argument list and may
	// modify it to simulate a kernel
	Run func(kernel string, args []interface{}, readOnly []bool) error

	CompileCalls  int
	DispatchCalls int

	LastDevice   int
	LastOptions  string
	LastKernel   string
	LastGeometry [6]int
	LastBlock    [3]int
	LastArgs     []interface{}
	LastReadOnly []bool
}

func (s *StubBackend) Compile(dev int, sourcePath, options string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompileCalls++
	s.LastDevice = dev
	s.LastOptions = options
	if s.CompileErr != nil {
		// Kernels set alongside CompileErr simulates a partial build
		return append([]string(nil), s.Kernels...), s.CompileErr
	}
	if s.Kernels != nil {
		return append([]string(nil), s.Kernels...), nil
	}
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stub compile: %w", err)
	}
	return signature.Names(signature.FindKernels(string(src))), nil
}

func (s *StubBackend) Dispatch(dev int, kernel string, geometry [6]int, block [3]int,
	args []interface{}, readOnly []bool) ([]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DispatchCalls++
	s.LastDevice = dev
	s.LastKernel = kernel
	s.LastGeometry = geometry
	s.LastBlock = block
	s.LastArgs = append([]interface{}(nil), args...)
	s.LastReadOnly = append([]bool(nil), readOnly...)
	if s.DispatchErr != nil {
		return nil, s.DispatchErr
	}
	out := append([]interface{}(nil), args...)
	if s.Run != nil {
		if err := s.Run(kernel, out, readOnly); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Counts returns the number of compile and dispatch calls so far
func (s *StubBackend) Counts() (compiles, dispatches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CompileCalls, s.DispatchCalls
}

// CreateTestPlatform returns a directory over TestDevices and a fresh stub
// backend
func CreateTestPlatform() (*device.Directory, *StubBackend) {
	dir, err := device.NewDirectory(TestDevices())
	if err != nil {
		// Should not reach here
		panic(err)
	}
	return dir, &StubBackend{}
}

// WriteKernelSource writes a kernel source into dir and returns its path
func WriteKernelSource(dir, name, src string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
