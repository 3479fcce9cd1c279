package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chtzvt/tablemapper/internal/secrets"
)

// pipeSinkWriter feeds an upload goroutine through an io.Pipe. Close waits
// for the upload and reports its result.
type pipeSinkWriter struct {
	io.Writer
	compressor io.Closer
	pw         *io.PipeWriter
	done       <-chan error
}

func (p *pipeSinkWriter) Close() error {
	cerr := p.compressor.Close()
	if cerr != nil {
		_ = p.pw.CloseWithError(cerr)
	} else {
		_ = p.pw.Close()
	}
	uerr := <-p.done
	if cerr != nil {
		return cerr
	}
	return uerr
}

// bufferWriter collects a chunk in memory and hands it to commit on Close.
type bufferWriter struct {
	buf    bytes.Buffer
	closed bool
	commit func(payload []byte) error
}

func newBufferWriter(commit func(payload []byte) error) *bufferWriter {
	return &bufferWriter{commit: commit}
}

func (w *bufferWriter) Write(b []byte) (int, error) {
	if w.closed {
		return 0, errors.New("sinkwriter closed")
	}
	return w.buf.Write(b)
}

func (w *bufferWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.commit(w.buf.Bytes())
}

func toBool(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
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

// lookupSecret reads the secret named by opts[optKey], or defName when the
// option is unset.
func lookupSecret(ctx context.Context, store secrets.Store, opts map[string]interface{}, optKey, defName string) ([]byte, error) {
	name := defName
	if v, _ := opts[optKey].(string); v != "" {
		name = v
	}
	if store == nil {
		return nil, fmt.Errorf("missing %s: no secrets store configured", name)
	}
	b, err := store.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", name, err)
	}
	return b, nil
}
