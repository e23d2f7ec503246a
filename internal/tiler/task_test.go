package tiler

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"clustertiler/internal/cluster"
	"clustertiler/internal/mbtiles"
)

func nearbyPoints() []*geojson.Feature {
	return []*geojson.Feature{
		pointAt(100, 50, geojson.Properties{"name": "a", "n": 1.0}),
		pointAt(100.01, 50, geojson.Properties{"name": "b", "n": 2.0}),
		pointAt(100, 50.01, geojson.Properties{"name": "c", "n": 3.0}),
	}
}

func pointAt(lon, lat float64, props geojson.Properties) *geojson.Feature {
	f := tagged(props)
	f.Geometry = orb.Point{lon, lat}
	return f
}

func runOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.Output = filepath.Join(t.TempDir(), "points.mbtiles")
	opts.MaxZoom = 0
	return opts
}

func readBack(t *testing.T, path string) (map[string]string, []mbtiles.Row) {
	db, err := mbtiles.Open(path)
	require.NoError(t, err)
	defer db.Close()

	meta, err := db.Metadata(context.Background())
	require.NoError(t, err)
	rows, err := db.Tiles(context.Background())
	require.NoError(t, err)
	return meta, rows
}

func coords(rows []mbtiles.Row) [][3]uint32 {
	out := make([][3]uint32, 0, len(rows))
	for _, r := range rows {
		out = append(out, [3]uint32{r.Zoom, r.Column, r.Row})
	}
	return out
}

func TestRun_SingleCluster(t *testing.T) {
	t.Parallel()

	opts := runOptions(t)
	report, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.NoError(t, err)
	require.Equal(t, int64(1), report.Tiles)

	meta, rows := readBack(t, opts.Output)
	require.Equal(t, [][3]uint32{{0, 0, 0}}, coords(rows))
	require.Equal(t, "0", meta["minzoom"])
	require.Equal(t, "0", meta["maxzoom"])
	require.Equal(t, "pbf", meta["format"])
	require.Equal(t, "overlay", meta["type"])
	require.Equal(t, opts.Output, meta["name"])
	require.NotContains(t, meta, "attribution")
	require.JSONEq(t, `{"vector_layers":[{
		"id":"geojsonLayer",
		"description":"Point layer imported from GeoJSON.",
		"fields":{"cluster":"boolean","cluster_id":"number","point_count":"number","point_count_abbreviated":"number"}
	}]}`, meta["json"])

	layers, err := mvt.UnmarshalGzipped(rows[0].Data)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.Equal(t, "geojsonLayer", layers[0].Name)
	require.Len(t, layers[0].Features, 1)
	props := layers[0].Features[0].Properties
	require.Equal(t, true, props["cluster"])
	require.EqualValues(t, 3, props["point_count"])
}

func TestRun_IncludeUnclustered(t *testing.T) {
	t.Parallel()

	opts := runOptions(t)
	opts.IncludeUnclustered = true
	_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.NoError(t, err)

	meta, rows := readBack(t, opts.Output)
	require.Equal(t, "1", meta["maxzoom"])
	// (1, 1, 0) counted from the top is stored as row 1
	require.Equal(t, [][3]uint32{{0, 0, 0}, {1, 1, 1}}, coords(rows))

	layers, err := mvt.UnmarshalGzipped(rows[1].Data)
	require.NoError(t, err)
	require.Len(t, layers[0].Features, 3)
	require.Contains(t, meta["json"], `"name":"string"`)
	require.Contains(t, meta["json"], `"n":"number"`)
}

func TestRun_ModesAgree(t *testing.T) {
	t.Parallel()

	features := make([]*geojson.Feature, 0, 200)
	for i := 0; i < 200; i++ {
		lon := -170 + float64(i%20)*17
		lat := -60 + float64(i/20)*12
		f := pointAt(lon, lat, geojson.Properties{"i": float64(i)})
		if i%7 == 0 {
			f.Properties["tag"] = "seventh"
		}
		features = append(features, f)
	}

	run := func(sync bool, concurrency int) (map[string]string, []mbtiles.Row) {
		opts := runOptions(t)
		opts.MaxZoom = 3
		opts.IncludeUnclustered = true
		opts.StoreClusterExpansionZoom = true
		opts.GzipSynchronously = sync
		opts.Concurrency = concurrency
		_, err := Run(context.Background(), features, opts, quietLogger())
		require.NoError(t, err)
		return readBack(t, opts.Output)
	}

	syncMeta, syncRows := run(true, 0)
	for _, c := range []int{0, 4} {
		meta, rows := run(false, c)
		require.Equal(t, syncMeta["json"], meta["json"])
		require.Equal(t, coords(syncRows), coords(rows))
	}
	require.Contains(t, syncMeta["json"], `"clusterExpansionZoom":"number"`)
}

func TestRun_ReplacesPreviousContainer(t *testing.T) {
	t.Parallel()

	opts := runOptions(t)
	opts.IncludeUnclustered = true

	_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.NoError(t, err)
	firstMeta, firstRows := readBack(t, opts.Output)

	_, err = Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.NoError(t, err)
	meta, rows := readBack(t, opts.Output)

	require.Equal(t, [][3]uint32{{0, 0, 0}, {1, 1, 1}}, coords(rows))
	require.Len(t, meta, 9)
	require.Equal(t, firstMeta, meta)
	require.Equal(t, firstRows, rows)
}

func TestRun_InputFilter(t *testing.T) {
	t.Parallel()

	features := append(nearbyPoints(),
		geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}),
		pointAt(-100, -50, geojson.Properties{"name": "far"}),
	)

	opts := runOptions(t)
	opts.InputFilter = func(f *geojson.Feature) bool {
		_, ok := f.Geometry.(orb.Point)
		return ok && f.Properties["name"] != "far"
	}
	report, err := Run(context.Background(), features, opts, quietLogger())
	require.NoError(t, err)
	require.Equal(t, int64(1), report.Tiles)

	_, rows := readBack(t, opts.Output)
	layers, err := mvt.UnmarshalGzipped(rows[0].Data)
	require.NoError(t, err)
	require.Len(t, layers[0].Features, 1)
}

type failingCompressor struct{ err error }

func (c failingCompressor) Compress([]byte) ([]byte, error) { return nil, c.err }

func TestRun_FirstFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	for _, sync := range []bool{true, false} {
		opts := runOptions(t)
		opts.MaxZoom = 2
		opts.GzipSynchronously = sync
		opts.Compressor = failingCompressor{err: boom}

		_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
		require.ErrorIs(t, err, boom)
	}
}

func TestRun_TileSizeGuard(t *testing.T) {
	t.Parallel()

	t.Run("warns and writes", func(t *testing.T) {
		opts := runOptions(t)
		opts.MaxTileBytes = 1
		report, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
		require.NoError(t, err)
		require.Equal(t, int64(1), report.Oversized)
		require.Equal(t, int64(1), report.Tiles)
	})

	t.Run("strict fails", func(t *testing.T) {
		opts := runOptions(t)
		opts.MaxTileBytes = 1
		opts.StrictTileSize = true
		_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
		require.ErrorIs(t, err, ErrTileTooLarge)
	})
}

func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.Error(t, err)

	opts = runOptions(t)
	opts.MinZoom = 3
	opts.MaxZoom = 1
	_, err = Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.Error(t, err)
}

func TestTask_WithClusterIndex(t *testing.T) {
	t.Parallel()

	opts := runOptions(t)
	opts.StoreClusterExpansionZoom = true
	index := cluster.New(opts.ClusterOptions()).Load(nearbyPoints())

	db, err := mbtiles.Create(context.Background(), opts.Output)
	require.NoError(t, err)
	defer db.Close()

	task, err := NewTask(index, nil, db, opts, quietLogger())
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	report, err := task.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, task.ID, report.RunID)
	require.Equal(t, int64(1), report.ZoomTiles[0])

	rows, err := db.Tiles(context.Background())
	require.NoError(t, err)
	layers, err := mvt.UnmarshalGzipped(rows[0].Data)
	require.NoError(t, err)
	require.EqualValues(t, 1, layers[0].Features[0].Properties["clusterExpansionZoom"])
}

func TestRun_FilterSuppressesTiles(t *testing.T) {
	t.Parallel()

	opts := runOptions(t)
	opts.IncludeUnclustered = true
	opts.Filter = func(tags geojson.Properties) bool { return tags["cluster"] == nil }

	report, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.NoError(t, err)
	require.Equal(t, int64(1), report.Filtered)

	meta, rows := readBack(t, opts.Output)
	// the zoom 0 tile only held a cluster
	require.Equal(t, [][3]uint32{{1, 1, 1}}, coords(rows))
	require.NotContains(t, meta["json"], `"cluster"`)
	require.Contains(t, meta["json"], `"name":"string"`)
}

func TestRun_LayerVersion(t *testing.T) {
	t.Parallel()

	for _, version := range []int{1, 2} {
		opts := runOptions(t)
		opts.Version = version
		_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
		require.NoError(t, err)

		meta, rows := readBack(t, opts.Output)
		require.Equal(t, strconv.Itoa(version), meta["version"])

		layers, err := mvt.UnmarshalGzipped(rows[0].Data)
		require.NoError(t, err)
		require.Equal(t, uint32(version), layers[0].Version)
	}

	opts := runOptions(t)
	opts.Version = 0
	_, err := Run(context.Background(), nearbyPoints(), opts, quietLogger())
	require.Error(t, err)
}

func TestRun_SynchronousInsertOrder(t *testing.T) {
	t.Parallel()

	features := make([]*geojson.Feature, 0, 200)
	for i := 0; i < 200; i++ {
		features = append(features, pointAt(-170+float64(i%20)*17, -60+float64(i/20)*12, nil))
	}

	opts := runOptions(t)
	opts.MaxZoom = 3
	opts.IncludeUnclustered = true
	opts.GzipSynchronously = true
	_, err := Run(context.Background(), features, opts, quietLogger())
	require.NoError(t, err)

	db, err := mbtiles.Open(opts.Output)
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.TilesInserted(context.Background())
	require.NoError(t, err)
	require.Greater(t, len(rows), 5)

	// zoom, column, then top-left origin row, all ascending
	keys := make([][3]uint32, 0, len(rows))
	for _, r := range rows {
		y := uint32(1)<<r.Zoom - 1 - r.Row
		keys = append(keys, [3]uint32{r.Zoom, r.Column, y})
	}
	require.True(t, sort.SliceIsSorted(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	}), "insert order %v", keys)
}
