package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/chtzvt/tablemapper/internal/compression"
	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/fsnotify/fsnotify"
)

const AttrFileSize = "file.size"

// FilesSource turns every file matching pattern under dir into one record.
// With watch enabled it keeps picking up new files until the context ends.
type FilesSource struct {
	dir          string
	pattern      string
	compression  string
	watch        bool
	pollInterval time.Duration
	settle       time.Duration
}

func NewFilesSource(opts map[string]interface{}) (Source, error) {
	dir, _ := opts["path"].(string)
	if dir == "" {
		return nil, fmt.Errorf("files source requires 'path' option")
	}
	pattern, _ := opts["pattern"].(string)
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("files source: bad pattern %q: %w", pattern, err)
	}
	comp, _ := opts["compression"].(string)
	if !compression.Supported(comp) {
		return nil, fmt.Errorf("unsupported compression: %s", comp)
	}
	s := &FilesSource{
		dir:          dir,
		pattern:      pattern,
		compression:  comp,
		watch:        toBool(opts["watch"]),
		pollInterval: time.Second,
		settle:       500 * time.Millisecond,
	}
	for key, dst := range map[string]*time.Duration{"poll_interval": &s.pollInterval, "settle": &s.settle} {
		if v, _ := opts[key].(string); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("files source: %s: %w", key, err)
			}
			*dst = d
		}
	}
	return s, nil
}

// list returns matching regular files, sorted, with their modification times.
func (s *FilesSource) list() ([]string, map[string]time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.pattern))
	if err != nil {
		return nil, nil, err
	}
	files := matches[:0]
	mtimes := make(map[string]time.Time, len(matches))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
			mtimes[m] = fi.ModTime()
		}
	}
	sort.Strings(files)
	return files, mtimes, nil
}

// Open lists the directory. In watch mode the watcher is started first and
// files still inside the settle period are left for a later rescan.
func (s *FilesSource) Open(ctx context.Context) (Reader, error) {
	r := &filesReader{src: s, seen: map[string]bool{}}
	if s.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("files source: watcher: %w", err)
		}
		if err := w.Add(s.dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("files source: watch %s: %w", s.dir, err)
		}
		r.watcher = w
	}
	if err := r.scan(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

type filesReader struct {
	src     *FilesSource
	pending []string
	seen    map[string]bool
	watcher *fsnotify.Watcher
}

func (r *filesReader) Next(ctx context.Context) (*flowfile.FlowFile, error) {
	for len(r.pending) == 0 {
		if r.watcher == nil {
			return nil, io.EOF
		}
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := r.pending[0]
	r.pending = r.pending[1:]

	content, err := r.read(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	dir, name := filepath.Split(path)
	return flowfile.New(content, map[string]string{
		flowfile.AttrFilename: name,
		flowfile.AttrPath:     filepath.Clean(dir),
		AttrFileSize:          strconv.Itoa(len(content)),
	}), nil
}

// wait blocks until a directory event or poll tick, then queues files that
// are new and have not been modified for the settle period.
func (r *filesReader) wait(ctx context.Context) error {
	tick := time.NewTimer(r.src.pollInterval)
	defer tick.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-r.watcher.Errors:
		if ok && err != nil {
			return fmt.Errorf("files source: watch: %w", err)
		}
	case <-r.watcher.Events:
	case <-tick.C:
	}
	return r.scan()
}

// scan queues matching files not seen before. Outside watch mode every file
// is queued; in watch mode only those unmodified for the settle period.
func (r *filesReader) scan() error {
	files, mtimes, err := r.src.list()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-r.src.settle)
	for _, f := range files {
		if r.seen[f] {
			continue
		}
		if r.watcher != nil && mtimes[f].After(cutoff) {
			continue
		}
		r.seen[f] = true
		r.pending = append(r.pending, f)
	}
	return nil
}

func (r *filesReader) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rd, err := compression.NewReader(f, r.src.compression)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

func (r *filesReader) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func init() {
	Register("files", NewFilesSource)
}
