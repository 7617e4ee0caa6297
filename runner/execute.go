// File: runner/execute.go

package runner

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/notargets/clkernel/runner/signature"
	"gonum.org/v1/gonum/mat"
)

// Call runs the kernel with one argument per parameter, building it first
// when the device or options changed. Every argument is cast to its
// parameter's element type, so the backend never sees caller memory.
// The values of the parameters declared without const are returned in
// parameter order, complex and matrix arguments in their original form.
func (k *Kernel) Call(args ...interface{}) ([]interface{}, error) {
	return k.call(false, args)
}

// CallInPlace runs the kernel like Call but passes arguments that already
// have their parameter's element type unchanged, so a backend working on
// host memory updates them in place. Arguments of another element type are
// still cast, with a warning, and so are not updated in place. Complex and
// matrix arguments are always copied. One-element slices given for by-value
// parameters are passed as plain values, as in Call.
func (k *Kernel) CallInPlace(args ...interface{}) ([]interface{}, error) {
	return k.call(true, args)
}

func (k *Kernel) call(inplace bool, args []interface{}) ([]interface{}, error) {
	params, err := k.Parameters()
	if err != nil {
		return nil, err
	}
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			ErrWrongArgumentCount, k.Declaration(), len(params), len(args))
	}
	if err = signature.CheckResolved(params); err != nil {
		return nil, fmt.Errorf("kernel %s: %w", k.decl.Name, err)
	}

	if !k.IsBuilt() {
		if err = k.Build(); err != nil {
			return nil, err
		}
	}

	if err = k.checkGeometry(); err != nil {
		return nil, err
	}

	values := make([]interface{}, len(args))
	forms := make([]hostForm, len(args))
	for i, a := range args {
		if enc, form, ok := encodeComplex(a); ok {
			values[i], forms[i] = enc, form
			if inplace {
				k.logger.Warn("complex argument copied, it is not updated in place",
					slog.String("kernel", k.decl.Name),
					slog.String("parameter", params[i].Name))
			}
			continue
		}
		if m, ok := a.(mat.Matrix); ok {
			values[i], forms[i] = flattenMatrix(m)
			if inplace {
				k.logger.Warn("matrix argument copied, it is not updated in place",
					slog.String("kernel", k.decl.Name),
					slog.String("parameter", params[i].Name))
			}
			continue
		}
		values[i] = a
	}

	for i, p := range params {
		if !inplace || !hasElementType(values[i], p.Type) {
			if inplace {
				k.logger.Warn("argument type differs from parameter, argument copied",
					slog.String("kernel", k.decl.Name),
					slog.String("parameter", p.Name),
					slog.String("type", p.Type.String()))
			}
			if values[i], err = castValue(values[i], p.Type); err != nil {
				return nil, fmt.Errorf("kernel %s: argument %d (%s): %w", k.decl.Name, i, p.Name, err)
			}
		}
		// by-value parameters always reach the backend as a plain value
		if p.Shape == signature.Scalar {
			values[i] = singleValue(values[i])
		}
	}

	readOnly := effectiveReadOnly(params, args)
	geometry, block := k.settings.Geometry.Dispatch()
	k.logger.Debug("dispatching kernel",
		slog.String("kernel", k.decl.Name),
		slog.Int("device", k.settings.Device),
		slog.Any("geometry", geometry),
		slog.Any("block", block))

	results, err := k.backend.Dispatch(k.settings.Device, k.decl.Name, geometry, block, values, readOnly)
	if err != nil {
		return nil, &ExecutionError{Kernel: k.decl.Name, Device: k.settings.Device, Err: err}
	}
	if len(results) != len(params) {
		return nil, &ExecutionError{Kernel: k.decl.Name, Device: k.settings.Device,
			Err: fmt.Errorf("backend returned %d values for %d parameters", len(results), len(params))}
	}

	outputs := make([]interface{}, 0, len(params))
	for i, p := range params {
		if p.Direction == signature.In {
			continue
		}
		out, err := restoreHostForm(results[i], forms[i])
		if err != nil {
			return nil, fmt.Errorf("kernel %s: result %d (%s): %w", k.decl.Name, i, p.Name, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// checkGeometry validates the thread block against the selected device
func (k *Kernel) checkGeometry() error {
	info, err := k.devices.Device(k.settings.Device)
	if err != nil {
		return err
	}
	block := k.settings.Geometry.ThreadBlockSize()
	for i, b := range block {
		if b > info.MaxThreadBlockSize[i] {
			return fmt.Errorf("%w: thread block %v exceeds the limit %d of dimension %d on device %d (%s)",
				ErrInvalidThreadBlockSize, block, info.MaxThreadBlockSize[i], i, info.Index, info.Name)
		}
	}
	if n := block.Product(); n > info.MaxThreadsPerBlock {
		return fmt.Errorf("%w: thread block %v holds %d work-items, device %d (%s) allows %d",
			ErrInvalidThreadBlockSize, block, n, info.Index, info.Name, info.MaxThreadsPerBlock)
	}
	return nil
}

// singleValue unwraps a one element slice
func singleValue(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Len() == 1 {
		return rv.Index(0).Interface()
	}
	return v
}
