package encoder

import (
	"bytes"
	"encoding/json"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// Envelope is the structured form of a record used by the jsonl and cbor
// encoders and the jsonl source.
type Envelope struct {
	UUID       string            `json:"uuid,omitempty" cbor:"uuid,omitempty"`
	Route      string            `json:"route,omitempty" cbor:"route,omitempty"`
	Attributes map[string]string `json:"attributes" cbor:"attributes"`
	Content    string            `json:"content" cbor:"content"`
}

func NewEnvelope(route string, ff *flowfile.FlowFile) Envelope {
	return Envelope{
		UUID:       ff.ID,
		Route:      route,
		Attributes: ff.Attributes,
		Content:    string(ff.Content),
	}
}

type JSONLEncoder struct{}

func (j *JSONLEncoder) Encode(ctx *Context, ff *flowfile.FlowFile) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(NewEnvelope(ctx.Route, ff)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *JSONLEncoder) Header(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func (c *JSONLEncoder) Footer(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func init() {
	Register("jsonl", &JSONLEncoder{})
}
