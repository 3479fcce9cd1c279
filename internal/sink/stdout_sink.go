package sink

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/chtzvt/tablemapper/internal/secrets"
)

// StdoutSink writes every chunk to standard output. Chunks from concurrent
// routes are written whole, never interleaved.
type StdoutSink struct {
	out io.Writer
	mu  *sync.Mutex
}

// stdoutMu is shared by every stdout sink in the process.
var stdoutMu sync.Mutex

func NewStdoutSink(_ map[string]interface{}, _ secrets.Store) (Sink, error) {
	return &StdoutSink{out: os.Stdout, mu: &stdoutMu}, nil
}

func (s *StdoutSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	return newBufferWriter(func(payload []byte) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := s.out.Write(payload)
		return err
	}), nil
}

// Close leaves os.Stdout open.
func (s *StdoutSink) Close() error { return nil }

func init() {
	Register("stdout", NewStdoutSink)
}
