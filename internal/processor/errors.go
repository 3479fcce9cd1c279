package processor

import "fmt"

// ConfigurationError: a property is missing, empty, or evaluates to nothing.
type ConfigurationError struct {
	Property string
	Msg      string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Property, e.Msg)
}

// ResolutionError: attribute substitution failed for a record.
type ResolutionError struct {
	Property string
	Expr     string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s (%q): %v", e.Property, e.Expr, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// WriteError: the output content could not be materialized.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write content: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
