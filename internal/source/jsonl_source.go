package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/encoder"
	"github.com/chtzvt/tablemapper/internal/flowfile"
)

const maxLineBytes = 16 << 20

// JSONLSource reads one record per line in the jsonl encoder's envelope
// format. A path of "-" reads stdin.
type JSONLSource struct {
	path        string
	compression string
	stdin       io.Reader
}

func NewJSONLSource(opts map[string]interface{}) (Source, error) {
	path, _ := opts["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("jsonl source requires 'path' option")
	}
	comp, _ := opts["compression"].(string)
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}
	return &JSONLSource{path: path, compression: comp, stdin: os.Stdin}, nil
}

func (s *JSONLSource) Open(ctx context.Context) (Reader, error) {
	var (
		in     io.Reader
		closer io.Closer = io.NopCloser(nil)
	)
	if s.path == "-" {
		in = s.stdin
	} else {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, err
		}
		in, closer = f, f
	}
	rd, err := compression.NewReader(in, s.compression)
	if err != nil {
		closer.Close()
		return nil, err
	}
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &jsonlReader{sc: sc, closers: []io.Closer{rd, closer}}, nil
}

type jsonlReader struct {
	sc      *bufio.Scanner
	line    int
	closers []io.Closer
}

func (r *jsonlReader) Next(ctx context.Context) (*flowfile.FlowFile, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.sc.Scan() {
			if err := r.sc.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		r.line++
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var env encoder.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		attrs := env.Attributes
		delete(attrs, flowfile.AttrUUID)
		return flowfile.New([]byte(env.Content), attrs), nil
	}
}

func (r *jsonlReader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func init() {
	Register("jsonl", NewJSONLSource)
}
