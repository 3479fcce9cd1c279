package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/go-chi/chi/v5"
)

const (
	AttrRemoteAddr = "http.remote.addr"
	AttrRequestURI = "http.request.uri"

	// attributeHeaderPrefix marks request headers copied into attributes,
	// e.g. "X-Attribute-Env: prod" sets env=prod.
	attributeHeaderPrefix = "X-Attribute-"
)

// HTTPSource accepts records over HTTP: each POST body becomes one record.
// It runs until the context ends or max_records have been accepted.
type HTTPSource struct {
	listen     string
	path       string
	maxRecords int
	maxBody    int64
}

func NewHTTPSource(opts map[string]interface{}) (Source, error) {
	listen, _ := opts["listen"].(string)
	if listen == "" {
		return nil, fmt.Errorf("http source requires 'listen' option")
	}
	path, _ := opts["path"].(string)
	if path == "" {
		path = "/records"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPSource{
		listen:     listen,
		path:       path,
		maxRecords: toInt(opts["max_records"], 0),
		maxBody:    int64(toInt(opts["max_body_bytes"], 32<<20)),
	}, nil
}

func (s *HTTPSource) Open(ctx context.Context) (Reader, error) {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return nil, fmt.Errorf("http source: listen: %w", err)
	}
	r := &httpReader{
		src:     s,
		ln:      ln,
		records: make(chan *flowfile.FlowFile),
		done:    make(chan struct{}),
	}
	router := chi.NewRouter()
	router.Post(s.path, r.handle)
	r.server = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.fail(err)
		}
	}()
	return r, nil
}

type httpReader struct {
	src     *HTTPSource
	ln      net.Listener
	server  *http.Server
	records chan *flowfile.FlowFile
	done    chan struct{}

	mu       sync.Mutex
	accepted int
	served   int
	err      error
	once     sync.Once
}

// Addr is the bound listen address, useful when listening on port 0.
func (r *httpReader) Addr() net.Addr { return r.ln.Addr() }

func (r *httpReader) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

// claim reserves a slot under max_records.
func (r *httpReader) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src.maxRecords > 0 && r.accepted >= r.src.maxRecords {
		return false
	}
	r.accepted++
	return true
}

func (r *httpReader) handle(w http.ResponseWriter, req *http.Request) {
	if !r.claim() {
		http.Error(w, "source is not accepting records", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.src.maxBody))
	if err != nil {
		r.release()
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	attrs := map[string]string{
		AttrRemoteAddr: req.RemoteAddr,
		AttrRequestURI: req.RequestURI,
	}
	if ct := req.Header.Get("Content-Type"); ct != "" {
		attrs[flowfile.AttrMimeType] = ct
	}
	for name, values := range req.Header {
		if strings.HasPrefix(name, attributeHeaderPrefix) && len(values) > 0 {
			attrs[strings.ToLower(strings.TrimPrefix(name, attributeHeaderPrefix))] = values[0]
		}
	}
	ff := flowfile.New(body, attrs)

	select {
	case r.records <- ff:
		w.Header().Set("X-Record-UUID", ff.ID)
		w.WriteHeader(http.StatusAccepted)
	case <-r.done:
		r.release()
		http.Error(w, "source closed", http.StatusServiceUnavailable)
	case <-req.Context().Done():
		r.release()
	}
}

func (r *httpReader) release() {
	r.mu.Lock()
	r.accepted--
	r.mu.Unlock()
}

func (r *httpReader) Next(ctx context.Context) (*flowfile.FlowFile, error) {
	r.mu.Lock()
	exhausted := r.src.maxRecords > 0 && r.served >= r.src.maxRecords
	r.mu.Unlock()
	if exhausted {
		return nil, io.EOF
	}
	select {
	case ff := <-r.records:
		r.mu.Lock()
		r.served++
		r.mu.Unlock()
		return ff, nil
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.err != nil {
			return nil, fmt.Errorf("http source: %w", r.err)
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *httpReader) Close() error {
	r.once.Do(func() { close(r.done) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.server.Shutdown(ctx)
}

func init() {
	Register("http", NewHTTPSource)
}
