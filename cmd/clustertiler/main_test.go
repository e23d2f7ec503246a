package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"clustertiler/internal/conf"
	"clustertiler/internal/mbtiles"
)

const points = `{
"type": "FeatureCollection",
"features": [
{"type": "Feature", "geometry": {"type": "Point", "coordinates": [100, 50]}, "properties": {"count": 2}},
{"type": "Feature", "geometry": {"type": "Point", "coordinates": [100.01, 50]}, "properties": {"count": 3}},
not a feature,
{"type": "Feature", "geometry": {"type": "Point", "coordinates": [100, 50.01]}, "properties": {"count": 5}}
]
}
`

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "points.geojson")
	output := filepath.Join(dir, "points.mbtiles")
	metrics := filepath.Join(dir, "clustertiler.prom")
	require.NoError(t, os.WriteFile(input, []byte(points), 0o644))

	cfg := filepath.Join(dir, "conf.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf(`
[input]
path = %q
readByLine = true
[output]
path = %q
metricsFile = %q
[cluster]
maxZoom = 2
sumProperties = ["count"]
`, input, output, metrics)), 0o644))

	c, err := conf.Load(cfg, nil)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	require.NoError(t, run(context.Background(), c, log))

	db, err := mbtiles.Open(output)
	require.NoError(t, err)
	defer db.Close()
	meta, err := db.Metadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2", meta["maxzoom"])
	require.Contains(t, meta["json"], `"count":"number"`)

	rows, err := db.Tiles(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	_, err = os.Stat(metrics)
	require.NoError(t, err)
}

func TestRun_MissingInput(t *testing.T) {
	c, err := conf.Load("", nil)
	require.NoError(t, err)
	c.Output.Path = filepath.Join(t.TempDir(), "x.mbtiles")

	log := logrus.New()
	log.SetOutput(io.Discard)
	require.Error(t, run(context.Background(), c, log))

	c.Input.Path = filepath.Join(t.TempDir(), "missing.geojson")
	require.Error(t, run(context.Background(), c, log))
}

func TestSafeExit_Stop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := new(SafeExit)
	s.Register(cancel)
	called := false
	s.Register(func() { called = true })
	s.stop()

	require.True(t, called)
	require.Error(t, ctx.Err())
}
