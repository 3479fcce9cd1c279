package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// Session is the host's record lifecycle API. A processor only ever sees
// records through it.
type Session interface {
	// Get returns the next input record, or nil when none is queued.
	Get() *flowfile.FlowFile

	// Create derives a new record from parent.
	Create(parent *flowfile.FlowFile) *flowfile.FlowFile

	// Write replaces the record content with whatever fn writes.
	Write(ff *flowfile.FlowFile, fn func(w io.Writer) error) (*flowfile.FlowFile, error)

	PutAttribute(ff *flowfile.FlowFile, key, value string) *flowfile.FlowFile

	// Remove drops a record the processor created without routing it.
	Remove(ff *flowfile.FlowFile)

	Transfer(ff *flowfile.FlowFile, rel Relationship)
}

// Processor is a single record transform driven by the host.
type Processor interface {
	Name() string
	Description() string
	Properties() []PropertyDescriptor
	Relationships() []Relationship
	WritesAttributes() []WritesAttribute

	// OnTrigger handles at most one input record. Processing failures are
	// routed by the processor itself; a returned error means the invocation
	// could not run at all.
	OnTrigger(ctx context.Context, pctx *Context, s Session) error
}

var ErrUnknownProcessor = errors.New("unknown processor")

type Factory func() Processor

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	registry[name] = f
}

func ForName(name string) (Processor, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	return f(), nil
}

// Registered returns the registered processor names in sorted order.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RelationshipByName finds one of p's declared relationships.
func RelationshipByName(p Processor, name string) (Relationship, bool) {
	for _, r := range p.Relationships() {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}
