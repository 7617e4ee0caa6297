// File: runner/signature/lexer.go

package signature

import (
	"strings"
)

// Strip removes comments and preprocessor lines from kernel source.
// Block comments may span lines; their newlines are kept so that line
// structure survives. Comment markers inside string and character literals
// are left alone. A preprocessor directive continued with a trailing
// backslash is dropped together with its continuation lines.
func Strip(src string) string {
	return dropPreprocessor(stripComments(src))
}

func stripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))

	n := len(src)
	for i := 0; i < n; i++ {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			// Copy the literal through its closing quote
			j := i + 1
			for j < n && src[j] != c && src[j] != '\n' {
				if src[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			if j < n && src[j] == c {
				j++
			}
			sb.WriteString(src[i:j])
			i = j - 1

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
			if i < n {
				sb.WriteByte('\n')
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				if src[i] == '\n' {
					sb.WriteByte('\n')
				}
				i++
			}
			i++ // skip the closing '/'
			sb.WriteByte(' ')

		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func dropPreprocessor(src string) string {
	lines := strings.Split(src, "\n")
	continued := false
	for i, line := range lines {
		if continued || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continued = strings.HasSuffix(strings.TrimRight(line, " \t\r"), "\\")
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// isIdentByte reports whether c may appear in a C identifier
func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// scanner walks stripped source one token at a time
type scanner struct {
	src string
	pos int
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

// ident reads an identifier at the current position, or returns ""
func (s *scanner) ident() string {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) && isIdentByte(s.src[s.pos]) {
		s.pos++
	}
	if start == s.pos || (s.src[start] >= '0' && s.src[start] <= '9') {
		s.pos = start
		return ""
	}
	return s.src[start:s.pos]
}

// balanced reads a bracketed group starting at the current position, which
// must hold open. Nested (), [] and {} are matched. It returns the text
// between the outer brackets.
func (s *scanner) balanced(open, close byte) (string, bool) {
	s.skipSpace()
	if s.pos >= len(s.src) || s.src[s.pos] != open {
		return "", false
	}
	var stack []byte
	start := s.pos + 1
	for i := s.pos; i < len(s.src); i++ {
		switch c := s.src[i]; c {
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				s.pos = i + 1
				if c != close {
					return "", false
				}
				return s.src[start:i], true
			}
		}
	}
	return "", false
}
