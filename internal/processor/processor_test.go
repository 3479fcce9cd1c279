package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	props []PropertyDescriptor
}

func (stubProcessor) Name() string                       { return "stub" }
func (stubProcessor) Description() string                { return "" }
func (s stubProcessor) Properties() []PropertyDescriptor { return s.props }
func (stubProcessor) Relationships() []Relationship      { return nil }
func (stubProcessor) WritesAttributes() []WritesAttribute {
	return nil
}
func (stubProcessor) OnTrigger(context.Context, *Context, Session) error { return nil }

func TestForNameUnknown(t *testing.T) {
	_, err := ForName("notexist")
	if !errors.Is(err, ErrUnknownProcessor) {
		t.Fatalf("ForName should fail with ErrUnknownProcessor, got %v", err)
	}
}

func TestRegistered(t *testing.T) {
	require.Contains(t, Registered(), TableNameExtractorName)
}

func TestValidateProperties(t *testing.T) {
	p := TableNameExtractor{}

	require.NoError(t, ValidateProperties(p, map[string]string{"Table Name": "orders"}))
	require.NoError(t, ValidateProperties(p, map[string]string{"Table Name": "${env}_orders"}))

	err := ValidateProperties(p, nil)
	require.ErrorContains(t, err, "Table Name is required")

	err = ValidateProperties(p, map[string]string{"Table Name": "  "})
	require.ErrorContains(t, err, "must not be empty")

	err = ValidateProperties(p, map[string]string{"Table Name": "${env"})
	require.ErrorContains(t, err, "unterminated")

	err = ValidateProperties(p, map[string]string{"Table Name": "t", "Schema": "public"})
	require.ErrorContains(t, err, "Schema is not a supported property")
}

func TestContextDefaults(t *testing.T) {
	p := stubProcessor{props: []PropertyDescriptor{{Name: "Mode", Default: "fast"}}}
	c := NewContext(p, nil, nil)
	v, ok := c.Property("Mode")
	require.True(t, ok)
	require.Equal(t, "fast", v)

	v, err := c.Evaluate("Mode", nil)
	require.NoError(t, err)
	require.Equal(t, "fast", v)
}

func TestScopeNoneSkipsSubstitution(t *testing.T) {
	p := stubProcessor{props: []PropertyDescriptor{{Name: "Literal"}}}
	c := NewContext(p, map[string]string{"Literal": "${keep}"}, nil)
	ff := flowfile.New(nil, map[string]string{"keep": "no"})
	v, err := c.Evaluate("Literal", ff)
	require.NoError(t, err)
	require.Equal(t, "${keep}", v)
}
