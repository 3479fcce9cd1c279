package compression

import (
	"bytes"
	"io"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, mode := range []string{"gzip", "bzip2", "zstd", "none", ""} {
		t.Run(mode, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, mode)
			if err != nil {
				t.Fatalf("NewWriter %s: %v", mode, err)
			}
			original := []byte("hello " + mode + " world")
			if _, err := w.Write(original); err != nil {
				t.Fatalf("Write %s: %v", mode, err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close %s: %v", mode, err)
			}

			r, err := NewReader(&buf, mode)
			if err != nil {
				t.Fatalf("NewReader %s: %v", mode, err)
			}
			defer r.Close()
			out, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll %s: %v", mode, err)
			}
			if string(out) != string(original) {
				t.Errorf("%s decompress mismatch: got %q, want %q", mode, out, original)
			}
		})
	}
}

func TestNewWriter_NonePassthrough(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "none")
	if err != nil {
		t.Fatalf("NewWriter none: %v", err)
	}
	original := []byte("plain text passthrough")
	if _, err := w.Write(original); err != nil {
		t.Fatalf("Write none: %v", err)
	}
	w.Close()

	if buf.String() != string(original) {
		t.Errorf("none passthrough mismatch: got %q, want %q", buf.String(), original)
	}
}

func TestUnsupported(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, "lzma"); err == nil {
		t.Error("Expected error for unsupported compression, got nil")
	}
	if _, err := NewReader(&buf, "lzma"); err == nil {
		t.Error("Expected error for unsupported decompression, got nil")
	}
	if Supported("lzma") || !Supported("zstd") {
		t.Error("Supported disagrees with NewWriter")
	}
}

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error { c.closed = true; return nil }

func TestCascadeWriteCloser(t *testing.T) {
	var buf bytes.Buffer
	gz, err := NewWriter(&buf, "gzip")
	if err != nil {
		t.Fatal(err)
	}
	under := &closeRecorder{}
	c := &CascadeWriteCloser{Compressor: gz, Underlying: under}
	if _, err := c.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if !under.closed {
		t.Error("underlying closer was not closed")
	}
	if ext := Extension("gzip"); ext != ".gz" {
		t.Errorf("Extension(gzip) = %q", ext)
	}
}
