package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/secrets"
)

// HTTPSink POSTs each chunk to an endpoint once the chunk is closed.
type HTTPSink struct {
	endpoint    string
	compression string
	maxRetries  int
	backoff     time.Duration
	headers     map[string]string
	client      *http.Client
}

func NewHTTPSink(opts map[string]interface{}, _ secrets.Store) (Sink, error) {
	endpoint, ok := opts["endpoint"].(string)
	if !ok || endpoint == "" {
		return nil, errors.New("http sink requires 'endpoint' option")
	}
	comp, _ := opts["compression"].(string)
	if comp == "" {
		comp = "none"
	}
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}
	maxRetries := toInt(opts["max_retries"], 3)
	if maxRetries <= 0 {
		maxRetries = 3
	}
	headers := map[string]string{}
	if m, ok := opts["headers"].(map[string]interface{}); ok {
		for k, v := range m {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	return &HTTPSink{
		endpoint:    endpoint,
		compression: comp,
		maxRetries:  maxRetries,
		backoff:     200 * time.Millisecond,
		headers:     headers,
		client:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type httpSinkWriter struct {
	sink   *HTTPSink
	ctx    context.Context
	name   string
	buf    *bytes.Buffer
	w      io.WriteCloser
	closed bool
}

func (s *HTTPSink) Close() error { return nil }

func (s *HTTPSink) Open(ctx context.Context, name string) (SinkWriter, error) {
	buf := &bytes.Buffer{}
	w, err := compression.NewWriter(buf, s.compression)
	if err != nil {
		return nil, err
	}
	return &httpSinkWriter{
		sink: s,
		ctx:  ctx,
		name: name,
		buf:  buf,
		w:    w,
	}, nil
}

func (w *httpSinkWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("sinkwriter closed")
	}
	return w.w.Write(p)
}

func (w *httpSinkWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Close(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= w.sink.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(w.ctx, http.MethodPost, w.sink.endpoint, bytes.NewReader(w.buf.Bytes()))
		if err != nil {
			return err
		}
		for k, v := range w.sink.headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("X-Chunk-Name", w.name)
		switch w.sink.compression {
		case "gzip":
			req.Header.Set("Content-Encoding", "gzip")
		case "bzip2":
			req.Header.Set("Content-Encoding", "x-bzip2")
		case "zstd":
			req.Header.Set("Content-Encoding", "zstd")
		}
		resp, err := w.sink.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return nil
		}
		if resp != nil {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			_ = resp.Body.Close()
		} else {
			lastErr = err
		}
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-time.After(time.Duration(attempt) * w.sink.backoff):
		}
	}
	return fmt.Errorf("all HTTP POST attempts failed: %w", lastErr)
}

func init() {
	Register("http", NewHTTPSink)
}
