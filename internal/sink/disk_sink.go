package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/secrets"
)

type DiskSink struct {
	baseDir     string
	compression string
	extension   string
}

func NewDiskSink(opts map[string]interface{}, _ secrets.Store) (Sink, error) {
	baseDir, ok := opts["path"].(string)
	if !ok || baseDir == "" {
		return nil, fmt.Errorf("disk sink requires 'path' option")
	}
	comp, _ := opts["compression"].(string)
	if comp == "" {
		comp = "none"
	}
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}
	ext, _ := opts["extension"].(string)
	if toBool(opts["compression_suffix"]) {
		ext += compression.Extension(comp)
	}
	return &DiskSink{baseDir: baseDir, compression: comp, extension: ext}, nil
}

func (d *DiskSink) Close() error { return nil }

func (d *DiskSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	fullPath := filepath.Join(d.baseDir, name+d.extension)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, err
	}
	w, err := compression.NewWriter(f, d.compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &compression.CascadeWriteCloser{Compressor: w, Underlying: f}, nil
}

func init() {
	Register("disk", NewDiskSink)
}
