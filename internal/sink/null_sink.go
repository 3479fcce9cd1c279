package sink

import (
	"context"
	"io"

	"github.com/chtzvt/tablemapper/internal/secrets"
)

// NullSink discards every chunk. Useful for auto-terminate style routes that
// still want chunk accounting, and for benchmarks.
type NullSink struct{}

func NewNullSink(_ map[string]interface{}, _ secrets.Store) (Sink, error) {
	return NullSink{}, nil
}

func (NullSink) Open(context.Context, string) (SinkWriter, error) {
	return nopWriter{io.Discard}, nil
}

func (NullSink) Close() error { return nil }

type nopWriter struct {
	io.Writer
}

func (nopWriter) Close() error { return nil }

func init() {
	Register("null", NewNullSink)
}
