package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDone(t *testing.T) {
	t.Parallel()
	b := NewBench()

	b.FileDone("ok", 100, 8)
	b.FileDone("ok", 50, 2)
	b.FileDone("failed", 999, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(b.filesProcessed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.filesProcessed.WithLabelValues("failed")))
	assert.Equal(t, 150.0, testutil.ToFloat64(b.pointsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(b.bitsPerPoint))
}

func TestBeginAndStage(t *testing.T) {
	t.Parallel()
	b := NewBench()

	end := b.Begin()
	assert.Equal(t, 1.0, testutil.ToFloat64(b.inFlight))
	end()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.inFlight))

	b.ObserveStage("estimate", 20*time.Millisecond)
	b.ObserveStage("read", time.Millisecond)
	assert.Equal(t, 2, testutil.CollectAndCount(b.estimateTime))
}

func TestNilBench(t *testing.T) {
	t.Parallel()
	var b *Bench
	b.FileDone("ok", 1, 1)
	b.ObserveStage("read", time.Second)
	b.Begin()()
}

func TestHandler(t *testing.T) {
	t.Parallel()
	b := NewBench()
	b.FileDone("ok", 10, 4.5)

	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `octree_files_processed_total{status="ok"} 1`), text)
	assert.Contains(t, text, "octree_points_processed_total 10")
	assert.Contains(t, text, "octree_bits_per_point_count 1")
}
