package processor

import (
	"fmt"
	"strings"
)

// ExpressionScope controls whether a property value may reference record
// attributes.
type ExpressionScope int

const (
	ScopeNone ExpressionScope = iota
	ScopeFlowFileAttributes
)

func (s ExpressionScope) String() string {
	switch s {
	case ScopeFlowFileAttributes:
		return "flowfile-attributes"
	default:
		return "none"
	}
}

// Validator checks a raw (unevaluated) property value.
type Validator func(name, value string) error

// NonEmpty rejects blank values.
func NonEmpty(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	return nil
}

type PropertyDescriptor struct {
	Name               string
	Description        string
	Required           bool
	ExpressionLanguage ExpressionScope
	Default            string
	Validators         []Validator
}

type Relationship struct {
	Name        string
	Description string
}

func (r Relationship) String() string { return r.Name }

// WritesAttribute documents an attribute a processor sets on its output.
type WritesAttribute struct {
	Name        string
	Description string
}
