// File: runner/backend.go

package runner

// Backend compiles kernel sources and launches kernels on a device. Devices
// are addressed by their index in the device directory.
type Backend interface {
	// Compile builds the source file with the given option string and returns
	// the names of the kernels present in the compiled unit. When only some
	// kernels fail, the names that did build are returned along with the
	// compiler error.
	Compile(device int, sourcePath, options string) ([]string, error)

	// Dispatch launches a compiled kernel. geometry holds the global offset
	// followed by the global size; block is the work-group size. readOnly
	// runs parallel to args. Scalars marked read-only are passed by value,
	// everything else through device memory. The returned list holds the
	// argument values after the kernel ran.
	Dispatch(device int, kernel string, geometry [6]int, block [3]int,
		args []interface{}, readOnly []bool) ([]interface{}, error)
}
