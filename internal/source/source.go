package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// Reader yields records one at a time; Next returns io.EOF when exhausted.
type Reader interface {
	Next(ctx context.Context) (*flowfile.FlowFile, error)
	Close() error
}

// Source produces the records a flow consumes.
type Source interface {
	Open(ctx context.Context) (Reader, error)
}

type Factory func(opts map[string]interface{}) (Source, error)

var sources = make(map[string]Factory)

func Register(name string, f Factory) {
	sources[name] = f
}

func ForName(name string) (Factory, error) {
	f, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("source not found: %s", name)
	}
	return f, nil
}

func Registered() []string {
	names := make([]string, 0, len(sources))
	for k := range sources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// New looks up name and builds the source from opts.
func New(name string, opts map[string]interface{}) (Source, error) {
	f, err := ForName(name)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = map[string]interface{}{}
	}
	return f(opts)
}

func toStringMap(v interface{}) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]interface{}:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}

func toBool(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true" || v == "on"
	default:
		return false
	}
}

func toInt(val interface{}, def int) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
