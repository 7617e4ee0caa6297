// File: runner/readonly.go

package runner

import (
	"github.com/notargets/clkernel/runner/signature"
)

// effectiveReadOnly builds the read-only mask passed to the backend.
// Declared const parameters start read-only and scalar parameters are
// always read-only, since the backend passes them by value.
func effectiveReadOnly(params []signature.Descriptor, args []interface{}) []bool {
	mask := make([]bool, len(params))
	for i, p := range params {
		mask[i] = p.Direction == signature.In
		if scalarValueForPointer(p, args[i]) {
			mask[i] = false
		}
		if p.Shape == signature.Scalar {
			mask[i] = true
		}
	}
	return mask
}

// scalarValueForPointer reports a const pointer parameter called with a
// single value. The backend would pass such a value by value instead of
// through a buffer, so it is sent read-write. Remove once backends
// allocate buffers for read-only single values themselves.
func scalarValueForPointer(p signature.Descriptor, v interface{}) bool {
	return p.Direction == signature.In && p.Shape == signature.Vector && isScalarValue(v)
}
