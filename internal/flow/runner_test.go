package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/chtzvt/tablemapper/internal/encoder"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func staticRecords(attrs ...map[string]interface{}) map[string]interface{} {
	records := make([]interface{}, 0, len(attrs))
	for i, a := range attrs {
		records = append(records, map[string]interface{}{
			"attributes": a,
			"content":    fmt.Sprintf(`{"id": %d}`, i),
		})
	}
	return map[string]interface{}{"records": records}
}

func TestRunner_RoutesRecords(t *testing.T) {
	id := t.Name()
	spec := validSpec(id)
	spec.AutoTerminate = nil
	spec.Routes["original"] = RouteSpec{Encoder: "jsonl", Sink: "mock", SinkOptions: map[string]interface{}{"id": id + "/original"}}
	spec.Source.Options = staticRecords(
		map[string]interface{}{"env": "prod"},
		map[string]interface{}{"tenant": "acme"},
		map[string]interface{}{"env": "dev"},
	)

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	sql := mockFor(id + "/sql").chunks()
	require.Len(t, sql, 1)
	require.Equal(t, "tablemapper-sql", sql[0].Name)
	require.Equal(t, "prod_orders\ndev_orders\n", string(sql[0].Data))

	failed := mockFor(id + "/failure").chunks()
	require.Len(t, failed, 1)
	require.Equal(t, "{\"id\": 1}\n", string(failed[0].Data))

	orig := mockFor(id + "/original").chunks()
	require.Len(t, orig, 1)
	lines := strings.Split(strings.TrimSpace(string(orig[0].Data)), "\n")
	require.Len(t, lines, 2)
	var env encoder.Envelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &env))
	require.Equal(t, "original", env.Route)
	require.Equal(t, "prod", env.Attributes["env"])
	require.Equal(t, `{"id": 0}`, env.Content)

	snap := r.Metrics.Snapshot()
	require.EqualValues(t, 3, snap.Received)
	require.EqualValues(t, 0, snap.Failed)
	require.EqualValues(t, 0, snap.Dropped)
	require.EqualValues(t, 2, snap.Routed["sql"])
	require.EqualValues(t, 2, snap.Routed["original"])
	require.EqualValues(t, 1, snap.Routed["failure"])
}

func TestRunner_AutoTerminateDrops(t *testing.T) {
	id := t.Name()
	spec := validSpec(id)
	spec.Source.Options = staticRecords(map[string]interface{}{"env": "prod"})

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	snap := r.Metrics.Snapshot()
	require.EqualValues(t, 1, snap.Dropped)
	require.EqualValues(t, 1, snap.Routed["sql"])
	require.NotContains(t, snap.Routed, "original")
	require.Empty(t, mockFor(id+"/failure").chunks())
}

func TestRunner_ConcurrentWorkers(t *testing.T) {
	id := t.Name()
	spec := validSpec(id)
	var attrs []map[string]interface{}
	for i := 0; i < 200; i++ {
		attrs = append(attrs, map[string]interface{}{"env": fmt.Sprintf("e%d", i)})
	}
	spec.Source.Options = staticRecords(attrs...)
	rs := spec.Routes["sql"]
	rs.ChunkRecords = 50
	spec.Routes["sql"] = rs

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	r.Workers = 8
	r.QueueSize = 4
	require.NoError(t, r.Run(context.Background()))

	chunks := mockFor(id + "/sql").chunks()
	require.Len(t, chunks, 4)
	seen := map[string]bool{}
	for _, c := range chunks {
		for _, line := range strings.Split(strings.TrimSpace(string(c.Data)), "\n") {
			seen[line] = true
		}
	}
	require.Len(t, seen, 200)
	require.True(t, seen["e199_orders"])
	require.EqualValues(t, 200, r.Metrics.Snapshot().Routed["sql"])
}

func TestRunner_SinkErrorStopsRun(t *testing.T) {
	id := t.Name()
	mockFor(id + "/sql").openErr = errors.New("bucket gone")
	spec := validSpec(id)
	var attrs []map[string]interface{}
	for i := 0; i < 500; i++ {
		attrs = append(attrs, map[string]interface{}{"env": "prod"})
	}
	spec.Source.Options = staticRecords(attrs...)

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	r.QueueSize = 1
	err = r.Run(context.Background())
	require.ErrorContains(t, err, "route sql")
	require.ErrorContains(t, err, "bucket gone")
	require.Equal(t, 1, mockFor(id+"/sql").closeCount(), "sinks are closed even when a route fails")
	require.Equal(t, 1, mockFor(id+"/failure").closeCount())
}

func TestRunner_ClosesSinks(t *testing.T) {
	id := t.Name()
	spec := validSpec(id)
	spec.Source.Options = staticRecords(map[string]interface{}{"env": "prod"})

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	require.Zero(t, mockFor(id+"/sql").closeCount())
	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, 1, mockFor(id+"/sql").closeCount())
	require.Equal(t, 1, mockFor(id+"/failure").closeCount())
}

func TestRunner_SinkCloseError(t *testing.T) {
	id := t.Name()
	mockFor(id + "/failure").closeErr = errors.New("pool busy")
	spec := validSpec(id)
	spec.Source.Options = staticRecords(map[string]interface{}{"env": "prod"})

	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)
	err = r.Run(context.Background())
	require.ErrorContains(t, err, "close route failure: pool busy")
	require.Len(t, mockFor(id+"/sql").chunks(), 1)
	require.Equal(t, 1, mockFor(id+"/sql").closeCount())
}

func TestRunner_Cancelled(t *testing.T) {
	spec := validSpec(t.Name())
	spec.Source.Options = staticRecords(map[string]interface{}{"env": "prod"})
	r, err := NewRunner(spec, nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Run(ctx), context.Canceled)
	require.Equal(t, 1, mockFor(t.Name()+"/sql").closeCount())
}

func TestNewRunner_InvalidFlow(t *testing.T) {
	spec := validSpec(t.Name())
	spec.AutoTerminate = nil
	_, err := NewRunner(spec, nil, quietLogger())
	require.ErrorContains(t, err, "invalid flow")
}

func TestMetricsString(t *testing.T) {
	m := NewMetrics([]string{"sql", "failure"})
	m.IncReceived()
	m.AddRouted("sql", 1)
	m.AddRouted("unknown", 5)
	m.AddDropped(1)
	s := m.Snapshot().String()
	require.Contains(t, s, "received=1 failed=0 dropped=1 routed[failure=0 sql=1]")
}
