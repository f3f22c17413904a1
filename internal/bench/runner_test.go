package bench

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/octree.report/internal/codec/l1voxel"
	"github.com/banshee-data/octree.report/internal/codec/l4bitcost"
	"github.com/banshee-data/octree.report/internal/codec/model"
	"github.com/banshee-data/octree.report/internal/config"
	"github.com/banshee-data/octree.report/internal/db"
	"github.com/banshee-data/octree.report/internal/fsutil"
	"github.com/banshee-data/octree.report/internal/metrics"
	"github.com/banshee-data/octree.report/internal/pointio"
	"github.com/banshee-data/octree.report/internal/testutil"
)

const root = "/data"

// lineDataset writes a 100-point line scan, a truncated scan and a PLY copy
// of the line below root.
func lineDataset(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	points := make([]pointio.Point, 100)
	for i := range points {
		points[i] = pointio.Point{Pos: [3]float64{float64(2 * i), 0, 0}, Attrs: []float32{0.5}}
	}
	require.NoError(t, pointio.WriteBinFile(fsys, filepath.Join(root, "seq", "line.bin"), points))
	require.NoError(t, fsys.WriteFile(filepath.Join(root, "seq", "bad.bin"), []byte{1, 2, 3, 4, 5, 6}, 0o644))
	require.NoError(t, pointio.WritePLYFile(fsys, filepath.Join(root, "ply", "line.ply"),
		pointio.CoordPoints(testutil.LineCloud(100, 2))))
	return fsys
}

func newRunner(t *testing.T, fsys fsutil.FileSystem) *Runner {
	t.Helper()
	p, err := model.Zero(4, 3)
	require.NoError(t, err)
	est, err := l4bitcost.NewEstimator(p, l4bitcost.DefaultEstimatorConfig())
	require.NoError(t, err)
	return &Runner{
		FS:        fsys,
		Estimator: est,
		Metrics:   metrics.NewBench(),
		Config: Config{
			Quantizer:      pointio.Quantizer{Step: 1},
			Stride:         4,
			MinLevelPoints: l1voxel.DefaultMinLevelPoints,
			Workers:        2,
		},
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	fsys := lineDataset(t)

	files, err := Discover(fsys, root, ".bin")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("seq", "bad.bin"), filepath.Join("seq", "line.bin")}, files)

	_, err = Discover(fsys, root, ".pcd")
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRunEstimatesAndRecordsFailures(t *testing.T) {
	t.Parallel()
	fsys := lineDataset(t)
	r := newRunner(t, fsys)

	files, err := Discover(fsys, root, ".bin")
	require.NoError(t, err)
	results, err := r.Run(context.Background(), root, files)
	require.NoError(t, err)
	require.Len(t, results, 2)

	bad, line := results[0], results[1]
	assert.False(t, bad.OK())
	assert.ErrorIs(t, bad.Err, pointio.ErrStride)

	require.True(t, line.OK(), "%v", line.Err)
	assert.Equal(t, 3, line.Levels)
	assert.Equal(t, 100, line.Cost.PointCount)
	assert.Equal(t, 800.0, line.Cost.TotalBits)
	assert.Equal(t, 8.0, line.Cost.BitsPerPoint)
	assert.Positive(t, line.Elapsed)
}

func TestRunReadsQuantizedPLY(t *testing.T) {
	t.Parallel()
	fsys := lineDataset(t)
	r := newRunner(t, fsys)
	// PLY positions are voxel indices already; the step must not apply.
	r.Config.Quantizer = pointio.Quantizer{Step: 1000}

	results, err := r.Run(context.Background(), root, []string{filepath.Join("ply", "line.ply")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 8.0, results[0].Cost.BitsPerPoint)
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()
	fsys := lineDataset(t)
	r := newRunner(t, fsys)
	r.Config.FailFast = true
	r.Config.Workers = 1

	_, err := r.Run(context.Background(), root, []string{filepath.Join("seq", "bad.bin")})
	assert.ErrorIs(t, err, pointio.ErrStride)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	fsys := lineDataset(t)
	r := newRunner(t, fsys)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, root, []string{filepath.Join("seq", "line.bin")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunResumesFromStore(t *testing.T) {
	fsys := lineDataset(t)
	database, err := db.NewDB(filepath.Join(t.TempDir(), "bench.db"))
	require.NoError(t, err)
	defer database.Close()
	store := db.NewResultStore(database)
	ctx := context.Background()

	files := []string{filepath.Join("seq", "bad.bin"), filepath.Join("seq", "line.bin")}

	run1, err := store.StartRun(ctx, "{}", "")
	require.NoError(t, err)
	r := newRunner(t, fsys)
	r.Store, r.RunID = store, run1.ID
	_, err = r.Run(ctx, root, files)
	require.NoError(t, err)

	stored, err := store.ListResults(ctx, run1.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, db.StatusFailed, stored[0].Status)
	assert.Contains(t, stored[0].Error, "stride")
	assert.Equal(t, db.StatusOK, stored[1].Status)
	assert.Equal(t, 8.0, stored[1].BPP)
	assert.Equal(t, 3, stored[1].Levels)
	assert.Equal(t, []db.LevelCost{{Depth: 1, Candidates: 100, LowerBits: 400, UpperBits: 400}}, stored[1].LevelCosts)

	// Only the failed file is retried.
	run2, err := store.StartRun(ctx, "{}", "")
	require.NoError(t, err)
	r.RunID = run2.ID
	results, err := r.Run(ctx, root, files)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, files[0], results[0].RelPath)

	// A different step starts over.
	r.Config.Quantizer.Step = 2
	pending, err := r.pending(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, files, pending)
}

func TestConfigFromCodec(t *testing.T) {
	t.Parallel()
	cfg := ConfigFromCodec(config.EmptyCodecConfig())
	assert.Equal(t, pointio.DefaultQuantizer, cfg.Quantizer)
	assert.Equal(t, pointio.DefaultStride, cfg.Stride)
	assert.Equal(t, l1voxel.DefaultMinLevelPoints, cfg.MinLevelPoints)
	assert.False(t, cfg.FailFast)
}
