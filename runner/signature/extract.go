// File: runner/signature/extract.go

package signature

import (
	"fmt"
	"os"
	"strings"
)

// Declaration is one kernel entry point found in the source
type Declaration struct {
	Name   string
	Params string // raw parameter-list text, between the parentheses
}

// kernelQualifiers are the spellings that open a kernel declaration.
// The OKL form "@kernel" matches "kernel" since '@' ends no identifier.
var kernelQualifiers = map[string]bool{
	"kernel":   true,
	"__kernel": true,
}

// FindKernels returns every kernel declaration of the form
// "kernel void name(params)" in source order
func FindKernels(src string) []Declaration {
	text := Strip(src)
	var decls []Declaration

	for i := 0; i < len(text); i++ {
		if !isIdentByte(text[i]) || (i > 0 && isIdentByte(text[i-1])) {
			continue
		}
		s := &scanner{src: text, pos: i}
		word := s.ident()
		if word == "" {
			continue
		}
		if !kernelQualifiers[word] {
			i = s.pos - 1
			continue
		}
		if decl, ok := matchDeclaration(s); ok {
			decls = append(decls, decl)
			i = s.pos - 1
		}
	}
	return decls
}

// matchDeclaration matches "void name(params)" following a kernel qualifier.
// Attribute blocks between the qualifier and "void" are skipped.
func matchDeclaration(s *scanner) (Declaration, bool) {
	word := s.ident()
	for word == "__attribute__" {
		if _, ok := s.balanced('(', ')'); !ok {
			return Declaration{}, false
		}
		word = s.ident()
	}
	if word != "void" {
		return Declaration{}, false
	}
	name := s.ident()
	if name == "" {
		return Declaration{}, false
	}
	params, ok := s.balanced('(', ')')
	if !ok {
		return Declaration{}, false
	}
	return Declaration{Name: name, Params: strings.TrimSpace(params)}, true
}

// Names returns the names of the given declarations
func Names(decls []Declaration) []string {
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	return names
}

// Extract selects one kernel declaration from the source. With a name, exactly
// one declaration of that name must exist. Without a name, the source must
// declare exactly one kernel.
func Extract(src, name string) (Declaration, error) {
	decls := FindKernels(src)
	found := Names(decls)

	if name == "" {
		switch len(decls) {
		case 1:
			return decls[0], nil
		case 0:
			return Declaration{}, fmt.Errorf("%w: source declares no kernel functions", ErrKernelNotFound)
		default:
			return Declaration{}, fmt.Errorf("%w: no function name given and source declares %d kernels: %s",
				ErrAmbiguousKernel, len(decls), strings.Join(found, ", "))
		}
	}

	var matches []Declaration
	for _, d := range decls {
		if d.Name == name {
			matches = append(matches, d)
		}
	}
	if len(matches) != 1 {
		return Declaration{}, fmt.Errorf("%w: %q declared %d times, kernels found: [%s]",
			ErrKernelNotFound, name, len(matches), strings.Join(found, ", "))
	}
	return matches[0], nil
}

// ExtractFile reads a kernel source file and extracts one declaration from it
func ExtractFile(path, name string) (Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Declaration{}, fmt.Errorf("failed to read kernel source: %w", err)
	}
	decl, err := Extract(string(data), name)
	if err != nil {
		return Declaration{}, fmt.Errorf("%s: %w", path, err)
	}
	return decl, nil
}
