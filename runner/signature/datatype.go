// File: runner/signature/datatype.go

package signature

import (
	"fmt"
	"strings"
)

// DataType is the element type of a kernel parameter
type DataType int

const (
	// Unresolved marks a type token the translation table does not know,
	// typically a typedef or macro. It must be overridden before a call.
	Unresolved DataType = iota
	Float32
	Float64
	INT32
	INT64
	INT8
	INT16
	UINT8
	UINT16
	UINT32
	UINT64
	Float16
	Bool
)

var dataTypeNames = map[DataType]string{
	Unresolved: "unresolved",
	Float32:    "float",
	Float64:    "double",
	Float16:    "half",
	INT8:       "int8",
	INT16:      "int16",
	INT32:      "int32",
	INT64:      "int64",
	UINT8:      "uint8",
	UINT16:     "uint16",
	UINT32:     "uint32",
	UINT64:     "uint64",
	Bool:       "bool",
}

func (dt DataType) String() string {
	if name, ok := dataTypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// Size returns the element size in bytes
func (dt DataType) Size() int64 {
	switch dt {
	case INT8, UINT8, Bool:
		return 1
	case INT16, UINT16, Float16:
		return 2
	case Float32, INT32, UINT32:
		return 4
	case Float64, INT64, UINT64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether dt is a floating point type
func (dt DataType) IsFloat() bool {
	return dt == Float16 || dt == Float32 || dt == Float64
}

// IsSigned reports whether dt is a signed integer type
func (dt DataType) IsSigned() bool {
	return dt == INT8 || dt == INT16 || dt == INT32 || dt == INT64
}

// kernelTypes translates kernel-language scalar type names to element types.
// Vector widths are stripped before lookup, so "float4" resolves as "float".
var kernelTypes = map[string]DataType{
	"char":      INT8,
	"schar":     INT8,
	"int8_t":    INT8,
	"uchar":     UINT8,
	"uint8_t":   UINT8,
	"short":     INT16,
	"int16_t":   INT16,
	"ushort":    UINT16,
	"uint16_t":  UINT16,
	"int":       INT32,
	"int32_t":   INT32,
	"uint":      UINT32,
	"uint32_t":  UINT32,
	"long":      INT64,
	"int64_t":   INT64,
	"ptrdiff_t": INT64,
	"intptr_t":  INT64,
	"ulong":     UINT64,
	"uint64_t":  UINT64,
	"size_t":    UINT64,
	"uintptr_t": UINT64,
	"half":      Float16,
	"float":     Float32,
	"double":    Float64,
	"bool":      Bool,
}

// LookupKernelType translates a kernel-language type token
func LookupKernelType(token string) (DataType, bool) {
	dt, ok := kernelTypes[token]
	return dt, ok
}

// ParseDataType accepts the canonical type names used in configuration,
// plus the kernel-language spellings
func ParseDataType(name string) (DataType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "single", "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "float16":
		return Float16, nil
	case "logical":
		return Bool, nil
	}
	for dt, n := range dataTypeNames {
		if dt != Unresolved && n == key {
			return dt, nil
		}
	}
	if dt, ok := kernelTypes[key]; ok {
		return dt, nil
	}
	return Unresolved, fmt.Errorf("unknown data type %q", name)
}
