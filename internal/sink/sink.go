package sink

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/chtzvt/tablemapper/internal/secrets"
)

// SinkWriter receives one chunk of encoded records. Close commits the chunk.
type SinkWriter interface {
	io.Writer
	io.Closer
}

// Sink is the interface for output sinks (disk, s3, etc). Close releases
// any connection the sink holds; no chunk may be opened afterwards.
type Sink interface {
	Open(ctx context.Context, name string) (SinkWriter, error)
	Close() error
}

var errSinkClosed = errors.New("sink closed")

// Factory builds a sink from its route options.
type Factory func(opts map[string]interface{}, secrets secrets.Store) (Sink, error)

var registry = map[string]Factory{}

func Register(name string, f Factory) {
	registry[name] = f
}

func ForName(name string) (Factory, bool) {
	f, ok := registry[name]
	return f, ok
}

func Registered() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
