package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/chtzvt/tablemapper/internal/processor"
	"github.com/chtzvt/tablemapper/internal/secrets"
	"github.com/chtzvt/tablemapper/internal/session"
	"github.com/chtzvt/tablemapper/internal/source"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 1
	DefaultQueueSize = 64
)

// Runner drives records from a source through the processor and on to the
// route pipelines.
type Runner struct {
	Spec      *Spec
	Workers   int
	QueueSize int
	Log       logrus.FieldLogger
	Metrics   *Metrics

	proc      processor.Processor
	pctx      *processor.Context
	source    source.Source
	pipelines map[string]*Pipeline
}

// NewRunner validates spec and builds every component it names.
func NewRunner(spec *Spec, store secrets.Store, log logrus.FieldLogger) (*Runner, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	proc, err := processor.ForName(spec.Processor.Name)
	if err != nil {
		return nil, err
	}
	src, err := source.New(spec.Source.Name, spec.Source.Options)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.Source.Name, err)
	}

	base := spec.Name
	if base == "" {
		base = "tablemapper"
	}
	routes := spec.routeNames()
	pipelines := make(map[string]*Pipeline, len(routes))
	for _, name := range routes {
		p, err := NewPipeline(name, spec.Routes[name], store, base+"-"+name)
		if err != nil {
			_ = closeSinks(pipelines)
			return nil, fmt.Errorf("route %s: %w", name, err)
		}
		pipelines[name] = p
	}

	return &Runner{
		Spec:      spec,
		Workers:   DefaultWorkers,
		QueueSize: DefaultQueueSize,
		Log:       log,
		Metrics:   NewMetrics(routes),
		proc:      proc,
		pctx:      processor.NewContext(proc, spec.Processor.Properties, log),
		source:    src,
		pipelines: pipelines,
	}, nil
}

// Run processes the source to exhaustion and then closes every route sink, so
// a Runner runs once. It returns the first error from any stage, or ctx's
// error if cancelled.
func (r *Runner) Run(ctx context.Context) error {
	workers := r.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	queue := r.QueueSize
	if queue < 0 {
		queue = 0
	}

	g, gctx := errgroup.WithContext(ctx)

	routeCh := make(map[string]chan *flowfile.FlowFile, len(r.pipelines))
	for name, p := range r.pipelines {
		ch := make(chan *flowfile.FlowFile, queue)
		routeCh[name] = ch
		log := r.Log.WithField("route", name)
		g.Go(func() error {
			if err := p.StreamProcess(gctx, ch); err != nil {
				log.WithError(err).Error("route pipeline failed")
				return fmt.Errorf("route %s: %w", name, err)
			}
			return nil
		})
	}

	records := make(chan *flowfile.FlowFile, queue)
	g.Go(func() error {
		defer close(records)
		return r.read(gctx, records)
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case ff, ok := <-records:
					if !ok {
						return nil
					}
					if err := r.trigger(gctx, ff, routeCh); err != nil {
						return err
					}
				}
			}
		})
	}
	g.Go(func() error {
		wg.Wait()
		for _, ch := range routeCh {
			close(ch)
		}
		return nil
	})

	err := g.Wait()
	if cerr := closeSinks(r.pipelines); cerr != nil {
		r.Log.WithError(cerr).Warn("closing route sinks")
		if err == nil {
			err = cerr
		}
	}
	r.Log.WithField("metrics", r.Metrics.Snapshot().String()).Info("flow finished")
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func closeSinks(pipelines map[string]*Pipeline) error {
	var errs []error
	for name, p := range pipelines {
		if err := p.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close route %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) read(ctx context.Context, out chan<- *flowfile.FlowFile) error {
	rd, err := r.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer rd.Close()
	for {
		ff, err := rd.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		r.Metrics.IncReceived()
		select {
		case out <- ff:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// trigger runs one processor invocation over ff and dispatches the
// committed transfers.
func (r *Runner) trigger(ctx context.Context, ff *flowfile.FlowFile, routeCh map[string]chan *flowfile.FlowFile) error {
	s := session.New(r.proc.Relationships(), ff)
	if err := r.proc.OnTrigger(ctx, r.pctx, s); err != nil {
		r.Metrics.IncFailed()
		return fmt.Errorf("trigger %s: %w", ff.ID, err)
	}
	if err := s.Commit(); err != nil {
		r.Metrics.IncFailed()
		return fmt.Errorf("commit %s: %w", ff.ID, err)
	}
	for _, route := range s.Routes() {
		out := s.Transferred(route)
		ch, ok := routeCh[route]
		if !ok {
			r.Metrics.AddDropped(len(out))
			continue
		}
		for _, o := range out {
			select {
			case ch <- o:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		r.Metrics.AddRouted(route, len(out))
	}
	return nil
}
