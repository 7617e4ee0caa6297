// File: runner/signature/resolve.go

package signature

import (
	"fmt"
	"strings"
)

// Direction indicates whether the kernel may write a parameter
type Direction int

const (
	InOut Direction = iota // no const qualifier
	In                     // const qualified, read-only
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "inout"
}

// Shape distinguishes pass-by-value parameters from pointers and arrays
type Shape int

const (
	Scalar Shape = iota
	Vector
)

func (s Shape) String() string {
	if s == Vector {
		return "vector"
	}
	return "scalar"
}

// Descriptor is the resolved form of one kernel parameter
type Descriptor struct {
	Name      string
	Raw       string // declaration text as written
	Direction Direction
	Shape     Shape
	TypeToken string   // element type token after qualifier stripping
	Type      DataType // Unresolved when TypeToken is not in the table
}

func (d Descriptor) String() string {
	typ := d.Type.String()
	if d.Type == Unresolved {
		typ = d.TypeToken + "?"
	}
	return fmt.Sprintf("%s {%s, %s, %s}", d.Name, d.Direction, d.Shape, typ)
}

// qualifiers are stripped before the element type is read
var qualifiers = map[string]bool{
	"global": true, "__global": true,
	"local": true, "__local": true,
	"constant": true, "__constant": true,
	"private": true, "__private": true,
	"generic": true, "__generic": true,
	"restrict": true, "__restrict": true, "__restrict__": true,
	"volatile": true,
	"read_only": true, "__read_only": true,
	"write_only": true, "__write_only": true,
	"read_write": true, "__read_write": true,
	"const":  true,
	"signed": true,
	"struct": true,
}

// readOnlyQualifiers make a parameter read-only; the constant address space
// cannot be written by a kernel
var readOnlyQualifiers = map[string]bool{
	"const":      true,
	"constant":   true,
	"__constant": true,
}

var vectorWidths = []string{"16", "8", "4", "3", "2"}

// SplitParams splits a parameter list on its top-level commas
func SplitParams(params string) ([]string, error) {
	params = strings.TrimSpace(params)
	if params == "" || params == "void" {
		return nil, nil
	}

	var (
		entries []string
		depth   int
		start   int
	)
	for i := 0; i < len(params); i++ {
		switch params[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in parameter list %q", params)
			}
		case ',':
			if depth == 0 {
				entries = append(entries, strings.TrimSpace(params[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in parameter list %q", params)
	}
	entries = append(entries, strings.TrimSpace(params[start:]))

	for i, e := range entries {
		if e == "" {
			return nil, fmt.Errorf("empty parameter %d in %q", i, params)
		}
	}
	return entries, nil
}

// removeGroups deletes every keyword(...) group, e.g. __attribute__((x)).
// The attribute contents are not interpreted.
func removeGroups(entry, keyword string) string {
	for {
		idx := strings.Index(entry, keyword)
		if idx < 0 {
			return entry
		}
		s := &scanner{src: entry, pos: idx + len(keyword)}
		if _, ok := s.balanced('(', ')'); !ok {
			return entry[:idx] + entry[idx+len(keyword):]
		}
		entry = entry[:idx] + " " + entry[s.pos:]
	}
}

// removeBrackets deletes array extents, reporting whether any were present
func removeBrackets(entry string) (string, bool) {
	var (
		sb    strings.Builder
		depth int
		found bool
	)
	for i := 0; i < len(entry); i++ {
		switch c := entry[i]; {
		case c == '[':
			depth++
			found = true
		case c == ']':
			depth--
		case depth == 0:
			sb.WriteByte(c)
		}
	}
	return sb.String(), found
}

// ParseParameter resolves one parameter declaration
func ParseParameter(entry string) (Descriptor, error) {
	d := Descriptor{Raw: strings.TrimSpace(entry)}

	text := removeGroups(d.Raw, "__attribute__")
	text, isArray := removeBrackets(text)
	if isArray || strings.ContainsRune(text, '*') {
		d.Shape = Vector
	}

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r > 127 || !isIdentByte(byte(r))
	})

	var words []string
	for _, tok := range tokens {
		if readOnlyQualifiers[tok] {
			d.Direction = In
		}
		if !qualifiers[tok] {
			words = append(words, tok)
		}
	}

	switch {
	case len(words) == 0:
		return d, fmt.Errorf("parameter %q has no type", d.Raw)
	case len(words) == 1, isTypeOnly(words):
		// unnamed parameter
	default:
		d.Name = words[len(words)-1]
		words = words[:len(words)-1]
	}

	d.TypeToken = joinTypeWords(words)
	d.Type = lookupElementType(d.TypeToken)
	return d, nil
}

// sizeModifiers may be followed by another type word, as in unsigned int
var sizeModifiers = map[string]bool{"unsigned": true, "long": true, "short": true}

var modifiedTypes = map[string]bool{
	"int": true, "long": true, "short": true, "char": true, "double": true,
}

// isTypeOnly reports whether words spell a multi-word type with no name
func isTypeOnly(words []string) bool {
	if !modifiedTypes[words[len(words)-1]] {
		return false
	}
	for _, w := range words[:len(words)-1] {
		if !sizeModifiers[w] {
			return false
		}
	}
	return true
}

// joinTypeWords collapses multi-word C types onto their short names
func joinTypeWords(words []string) string {
	if words[0] == "unsigned" {
		if len(words) == 1 || words[1] == "int" {
			return "uint"
		}
		return "u" + joinTypeWords(words[1:])
	}
	switch {
	case len(words) >= 2 && words[0] == "long" && (words[1] == "long" || words[1] == "int"):
		return "long"
	case len(words) >= 2 && words[0] == "short" && words[1] == "int":
		return "short"
	case len(words) >= 2 && words[0] == "long" && words[1] == "double":
		// no device support for extended precision; leave for override
		return "long double"
	}
	return strings.Join(words, " ")
}

// lookupElementType translates a type token, ignoring any vector width
func lookupElementType(token string) DataType {
	if dt, ok := LookupKernelType(token); ok {
		return dt
	}
	for _, w := range vectorWidths {
		if base := strings.TrimSuffix(token, w); base != token {
			if dt, ok := LookupKernelType(base); ok {
				return dt
			}
		}
	}
	return Unresolved
}

// Resolve parses a raw parameter list into ordered descriptors
func Resolve(params string) ([]Descriptor, error) {
	entries, err := SplitParams(params)
	if err != nil {
		return nil, err
	}
	descs := make([]Descriptor, len(entries))
	for i, e := range entries {
		d, err := ParseParameter(e)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		descs[i] = d
	}
	return descs, nil
}

// Override substitutes types[i] into every descriptor whose type token is
// aliases[i]. The input slice is not modified.
func Override(descs []Descriptor, types []DataType, aliases []string) ([]Descriptor, error) {
	if len(types) != len(aliases) {
		return nil, fmt.Errorf("%w: %d types given for %d aliases",
			ErrInvalidAliasCount, len(types), len(aliases))
	}
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	for i, alias := range aliases {
		for j := range out {
			if out[j].TypeToken == alias {
				out[j].Type = types[i]
			}
		}
	}
	return out, nil
}

// CheckResolved fails on the first parameter without an element type
func CheckResolved(descs []Descriptor) error {
	for i, d := range descs {
		if d.Type == Unresolved {
			return fmt.Errorf("%w: parameter %d (%s) has type %q; supply a type override for it",
				ErrUnresolvedType, i, d.Raw, d.TypeToken)
		}
	}
	return nil
}
