package processor

import (
	"fmt"
	"io"
	"strings"

	"github.com/chtzvt/tablemapper/internal/expression"
	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/sirupsen/logrus"
)

// Context carries a processor's configured property values and logger. It is
// shared read-only across invocations.
type Context struct {
	Log        logrus.FieldLogger
	props      map[string]string
	descriptor map[string]PropertyDescriptor
}

// NewContext binds props to p's descriptors, filling in defaults. A nil
// logger discards output.
func NewContext(p Processor, props map[string]string, log logrus.FieldLogger) *Context {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	c := &Context{
		Log:        log.WithField("processor", p.Name()),
		props:      make(map[string]string, len(props)),
		descriptor: make(map[string]PropertyDescriptor),
	}
	for _, d := range p.Properties() {
		c.descriptor[d.Name] = d
		if d.Default != "" {
			c.props[d.Name] = d.Default
		}
	}
	for k, v := range props {
		c.props[k] = v
	}
	return c
}

// Property returns the raw configured value.
func (c *Context) Property(name string) (string, bool) {
	v, ok := c.props[name]
	return v, ok
}

// Evaluate returns the property's value for ff, substituting attribute
// references when the descriptor allows them.
func (c *Context) Evaluate(name string, ff *flowfile.FlowFile) (string, error) {
	raw, ok := c.props[name]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", &ConfigurationError{Property: name, Msg: "value is not set"}
	}
	d, known := c.descriptor[name]
	if !known || d.ExpressionLanguage == ScopeNone || ff == nil {
		return raw, nil
	}
	v, err := expression.Evaluate(raw, ff.Attributes)
	if err != nil {
		return "", &ResolutionError{Property: name, Expr: raw, Err: err}
	}
	return v, nil
}

// ValidateProperties checks props against p's descriptors. Expression-bearing
// values are checked for syntax only.
func ValidateProperties(p Processor, props map[string]string) error {
	var problems []string
	for _, d := range p.Properties() {
		v, ok := props[d.Name]
		if !ok || v == "" {
			v = d.Default
		}
		if v == "" {
			if d.Required {
				problems = append(problems, fmt.Sprintf("%s is required", d.Name))
			}
			continue
		}
		for _, validate := range d.Validators {
			if err := validate(d.Name, v); err != nil {
				problems = append(problems, err.Error())
			}
		}
		if d.ExpressionLanguage != ScopeNone {
			if _, err := expression.Parse(v); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}
	for k := range props {
		if !hasProperty(p, k) {
			problems = append(problems, fmt.Sprintf("%s is not a supported property", k))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid %s properties: %s", p.Name(), strings.Join(problems, "; "))
	}
	return nil
}

func hasProperty(p Processor, name string) bool {
	for _, d := range p.Properties() {
		if d.Name == name {
			return true
		}
	}
	return false
}
