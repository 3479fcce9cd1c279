package encoder

import (
	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/fxamacker/cbor/v2"
)

// CBOREncoder emits one CBOR-encoded Envelope per record; the stream is a
// CBOR sequence.
type CBOREncoder struct{}

func (c *CBOREncoder) Encode(ctx *Context, ff *flowfile.FlowFile) ([]byte, error) {
	return cbor.Marshal(NewEnvelope(ctx.Route, ff))
}

func (c *CBOREncoder) Header(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func (c *CBOREncoder) Footer(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func init() {
	Register("cbor", &CBOREncoder{})
}
