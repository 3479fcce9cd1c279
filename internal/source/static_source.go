package source

import (
	"context"
	"fmt"
	"io"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// StaticSource emits records listed inline in the flow definition under the
// "records" option, each {attributes: {...}, content: "..."}.
type StaticSource struct {
	records []staticRecord
}

type staticRecord struct {
	attrs   map[string]string
	content string
}

func NewStaticSource(opts map[string]interface{}) (Source, error) {
	raw, _ := opts["records"].([]interface{})
	s := &StaticSource{}
	for i, r := range raw {
		m, ok := r.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("static source: record %d is not an object", i)
		}
		content, _ := m["content"].(string)
		s.records = append(s.records, staticRecord{attrs: toStringMap(m["attributes"]), content: content})
	}
	return s, nil
}

func (s *StaticSource) Open(ctx context.Context) (Reader, error) {
	return &staticReader{records: s.records}, nil
}

type staticReader struct {
	records []staticRecord
}

func (r *staticReader) Next(ctx context.Context) (*flowfile.FlowFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(r.records) == 0 {
		return nil, io.EOF
	}
	rec := r.records[0]
	r.records = r.records[1:]
	return flowfile.New([]byte(rec.content), rec.attrs), nil
}

func (r *staticReader) Close() error { return nil }

func init() {
	Register("static", NewStaticSource)
}
