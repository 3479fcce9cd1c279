package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStdoutSink_WritesWholeChunks(t *testing.T) {
	var out bytes.Buffer
	var mu sync.Mutex
	s := &StdoutSink{out: &out, mu: &mu}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.Open(context.Background(), fmt.Sprintf("tables.%04d", i))
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			line := strings.Repeat(fmt.Sprint(i), 8)
			for j := 0; j < 3; j++ {
				_, _ = w.Write([]byte(line + "\n"))
			}
			if err := w.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 12)
	for i := 0; i < len(lines); i += 3 {
		require.Equal(t, lines[i], lines[i+1], "chunk lines must stay together")
		require.Equal(t, lines[i], lines[i+2], "chunk lines must stay together")
	}
	require.NoError(t, s.Close())
}

func TestStdoutSink_NothingBeforeClose(t *testing.T) {
	var out bytes.Buffer
	s := &StdoutSink{out: &out, mu: &sync.Mutex{}}
	w, err := s.Open(context.Background(), "tables.0001")
	require.NoError(t, err)
	_, err = w.Write([]byte("orders\n"))
	require.NoError(t, err)
	require.Zero(t, out.Len())
	require.NoError(t, w.Close())
	require.Equal(t, "orders\n", out.String())
}

func TestNewStdoutSink(t *testing.T) {
	s, err := NewStdoutSink(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, s.(*StdoutSink).out)
}
