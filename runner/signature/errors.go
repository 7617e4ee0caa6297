package signature

import "errors"

var (
	// ErrAmbiguousKernel is returned when no function name was requested and
	// the source declares more than one kernel
	ErrAmbiguousKernel = errors.New("ambiguous kernel")

	// ErrKernelNotFound is returned when the requested kernel is not declared
	// exactly once in the source
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrInvalidAliasCount is returned when a type override supplies a
	// different number of types and aliases
	ErrInvalidAliasCount = errors.New("invalid alias count")

	// ErrUnresolvedType is returned when a parameter type could not be
	// translated and no override was supplied for it
	ErrUnresolvedType = errors.New("unresolved parameter type")
)
