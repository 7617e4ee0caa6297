// File: runner/errors.go

package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrKernelNotFoundInBuild is returned when the source declares the kernel
	// but the compiled unit does not contain it, e.g. because conditional
	// compilation removed it
	ErrKernelNotFoundInBuild = errors.New("kernel not found in build")

	// ErrWrongArgumentCount is returned when a call does not supply exactly
	// one argument per kernel parameter
	ErrWrongArgumentCount = errors.New("wrong argument count")

	// ErrInvalidThreadBlockSize is returned when the thread block exceeds the
	// selected device's per-dimension or total work-group limit
	ErrInvalidThreadBlockSize = errors.New("invalid thread block size")
)

// BuildError wraps a backend compile failure
type BuildError struct {
	Kernel  string
	Device  int
	Options string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build of kernel %s on device %d with options %q failed: %v",
		e.Kernel, e.Device, e.Options, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ExecutionError wraps a backend dispatch failure
type ExecutionError struct {
	Kernel string
	Device int
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of kernel %s on device %d failed: %v", e.Kernel, e.Device, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
