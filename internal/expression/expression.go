package expression

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr   string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q: %s at offset %d", e.Expr, e.Msg, e.Offset)
}

// UnresolvedError reports a reference to an attribute the record does not carry.
type UnresolvedError struct {
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("attribute %q is not set", e.Name)
}

type part struct {
	literal string
	ref     string // attribute name when non-empty
}

// Expression is a parsed attribute expression: literal text with ${name}
// references. "$$" is a literal "$".
type Expression struct {
	raw   string
	parts []part
}

func Parse(expr string) (*Expression, error) {
	e := &Expression{raw: expr}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			e.parts = append(e.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c != '$' || i+1 >= len(expr) {
			lit.WriteByte(c)
			continue
		}
		switch expr[i+1] {
		case '$':
			lit.WriteByte('$')
			i++
		case '{':
			end := strings.IndexByte(expr[i+2:], '}')
			if end < 0 {
				return nil, &SyntaxError{Expr: expr, Offset: i, Msg: "unterminated reference"}
			}
			name := strings.TrimSpace(expr[i+2 : i+2+end])
			if name == "" {
				return nil, &SyntaxError{Expr: expr, Offset: i, Msg: "empty attribute name"}
			}
			flush()
			e.parts = append(e.parts, part{ref: name})
			i += 2 + end
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return e, nil
}

// Evaluate substitutes every reference with the matching attribute value.
func (e *Expression) Evaluate(attrs map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range e.parts {
		if p.ref == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := attrs[p.ref]
		if !ok {
			return "", &UnresolvedError{Name: p.ref}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// References lists the attribute names the expression reads, in order.
func (e *Expression) References() []string {
	var refs []string
	for _, p := range e.parts {
		if p.ref != "" {
			refs = append(refs, p.ref)
		}
	}
	return refs
}

func (e *Expression) String() string { return e.raw }

// Evaluate parses and evaluates expr in one step.
func Evaluate(expr string, attrs map[string]string) (string, error) {
	e, err := Parse(expr)
	if err != nil {
		return "", err
	}
	return e.Evaluate(attrs)
}

// HasReferences reports whether expr contains at least one ${...} reference.
func HasReferences(expr string) bool {
	e, err := Parse(expr)
	if err != nil {
		return strings.Contains(expr, "${")
	}
	return len(e.References()) > 0
}
