package compression

import "io"

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.Writer.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }

// CascadeWriteCloser closes the compressor first, then the underlying sink.
type CascadeWriteCloser struct {
	Compressor io.WriteCloser
	Underlying io.Closer
}

func (c *CascadeWriteCloser) Write(p []byte) (int, error) {
	return c.Compressor.Write(p)
}

func (c *CascadeWriteCloser) Close() error {
	err1 := c.Compressor.Close()
	err2 := c.Underlying.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
