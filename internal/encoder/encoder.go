package encoder

import (
	"fmt"
	"sort"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// Context is what an encoder knows about the route it serves.
type Context struct {
	Route   string
	Options map[string]interface{}
}

// Encoder serialises routed records for a sink.
type Encoder interface {
	Encode(ctx *Context, ff *flowfile.FlowFile) ([]byte, error)

	// Header returns any leading bytes (e.g., header row, opening bracket, etc).
	// Should return nil/empty if not needed.
	Header(ctx *Context) ([]byte, error)

	// Footer returns any trailing bytes (e.g., closing bracket, sentinel value, etc).
	// Should return nil/empty if not needed.
	Footer(ctx *Context) ([]byte, error)
}

var registry = make(map[string]Encoder)

func Register(name string, e Encoder) {
	registry[name] = e
}

func ForName(name string) (Encoder, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("encoder not found: %s", name)
	}
	return e, nil
}

func Registered() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
