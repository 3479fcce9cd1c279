package encoder

import (
	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// RawEncoder writes record content as-is, followed by the "separator" option
// (default "\n"; set to "" to concatenate).
type RawEncoder struct{}

func (r *RawEncoder) Encode(ctx *Context, ff *flowfile.FlowFile) ([]byte, error) {
	sep := "\n"
	if v, ok := ctx.Options["separator"].(string); ok {
		sep = v
	}
	out := make([]byte, 0, len(ff.Content)+len(sep))
	out = append(out, ff.Content...)
	return append(out, sep...), nil
}

func (r *RawEncoder) Header(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func (r *RawEncoder) Footer(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func init() {
	Register("raw", &RawEncoder{})
}
