package flow

import (
	"context"
	"fmt"

	"github.com/chtzvt/tablemapper/internal/encoder"
	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/chtzvt/tablemapper/internal/sink"
)

// Pipeline encodes the records of one route into chunks written to a sink.
type Pipeline struct {
	Encoder       encoder.Encoder
	Sink          sink.Sink
	Ctx           *encoder.Context
	MaxChunkBytes int // 0 means unlimited
	MaxChunkRecs  int // 0 means unlimited
	BaseName      string
}

func NewPipeline(route string, rs RouteSpec, store secrets.Store, baseName string) (*Pipeline, error) {
	enc, err := encoder.ForName(rs.Encoder)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	sinkFactory, ok := sink.ForName(rs.Sink)
	if !ok {
		return nil, fmt.Errorf("sink: not found: %s", rs.Sink)
	}
	opts := rs.SinkOptions
	if opts == nil {
		opts = map[string]interface{}{}
	}
	sinkInst, err := sinkFactory(opts, store)
	if err != nil {
		return nil, fmt.Errorf("sink init: %w", err)
	}
	if rs.Name != "" {
		baseName = rs.Name
	}
	return &Pipeline{
		Encoder:       enc,
		Sink:          sinkInst,
		Ctx:           &encoder.Context{Route: route, Options: rs.EncoderOptions},
		BaseName:      baseName,
		MaxChunkBytes: rs.ChunkBytes,
		MaxChunkRecs:  rs.ChunkRecords,
	}, nil
}

// StreamProcess encodes records until the channel closes, rotating chunks
// when either limit is reached. The ctx is passed to Sink.Open.
func (p *Pipeline) StreamProcess(ctx context.Context, records <-chan *flowfile.FlowFile) error {
	var (
		writer   sink.SinkWriter
		curBytes int
		curRecs  int
		chunkNum = 1
	)
	openChunk := func() (sink.SinkWriter, error) {
		name := p.BaseName
		if p.MaxChunkBytes > 0 || p.MaxChunkRecs > 0 {
			name = fmt.Sprintf("%s.%04d", p.BaseName, chunkNum)
		}
		w, err := p.Sink.Open(ctx, name)
		if err != nil {
			return nil, err
		}
		header, err := p.Encoder.Header(p.Ctx)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("header: %w", err)
		}
		if len(header) > 0 {
			if _, err := w.Write(header); err != nil {
				w.Close()
				return nil, fmt.Errorf("header write: %w", err)
			}
		}
		return w, nil
	}
	closeChunk := func() error {
		if writer == nil {
			return nil
		}
		w := writer
		writer = nil
		if footer, _ := p.Encoder.Footer(p.Ctx); len(footer) > 0 {
			if _, err := w.Write(footer); err != nil {
				w.Close()
				return err
			}
		}
		return w.Close()
	}

	for ff := range records {
		if writer == nil {
			var err error
			writer, err = openChunk()
			if err != nil {
				return fmt.Errorf("open sink: %w", err)
			}
			curBytes = 0
			curRecs = 0
			chunkNum++
		}

		data, err := p.Encoder.Encode(p.Ctx, ff)
		if err != nil {
			writer.Close()
			return fmt.Errorf("encode %s: %w", ff.ID, err)
		}
		n, err := writer.Write(data)
		if err != nil {
			writer.Close()
			return fmt.Errorf("write: %w", err)
		}
		curBytes += n
		curRecs++

		rotate := false
		if p.MaxChunkBytes > 0 && curBytes >= p.MaxChunkBytes {
			rotate = true
		}
		if p.MaxChunkRecs > 0 && curRecs >= p.MaxChunkRecs {
			rotate = true
		}
		if rotate {
			if err := closeChunk(); err != nil {
				return fmt.Errorf("close sink: %w", err)
			}
		}
	}

	if err := closeChunk(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	return nil
}
