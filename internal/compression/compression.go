package compression

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// NewWriter returns an io.WriteCloser that wraps w with the requested compression.
// Supported: "gzip", "bzip2", "zstd", or "" / "none" (no compression).
// Closing the returned writer does not close w.
func NewWriter(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "bzip2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case "zstd":
		return zstd.NewWriter(w)
	case "", "none":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// NewReader is the inverse of NewWriter.
func NewReader(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case "gzip":
		return gzip.NewReader(r)
	case "bzip2":
		return bzip2.NewReader(r, nil)
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case "", "none":
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// Supported reports whether compression names a known mode.
func Supported(compression string) bool {
	switch compression {
	case "gzip", "bzip2", "zstd", "", "none":
		return true
	}
	return false
}

// Extension returns the conventional file suffix for compression.
func Extension(compression string) string {
	switch compression {
	case "gzip":
		return ".gz"
	case "bzip2":
		return ".bz2"
	case "zstd":
		return ".zst"
	default:
		return ""
	}
}
