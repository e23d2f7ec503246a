package tiler

import (
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Report summarizes a run. Counters are safe for concurrent updates while
// the run is in progress and final once Run returns.
type Report struct {
	RunID     string
	Tiles     int64
	Bytes     int64
	Oversized int64
	// Empty counts coordinates the index had nothing for, Filtered those
	// emptied by the tag filter.
	Empty     int64
	Filtered  int64
	ZoomTiles map[int]int64
	Duration  time.Duration

	mu sync.Mutex
}

func newReport(id string) *Report {
	return &Report{RunID: id, ZoomTiles: make(map[int]int64)}
}

func (r *Report) addTile(zoom, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tiles++
	r.Bytes += int64(size)
	r.ZoomTiles[zoom]++
}

func (r *Report) addOversized() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Oversized++
}

func (r *Report) addEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Empty++
}

func (r *Report) addFiltered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Filtered++
}

// WriteMetrics writes the report in the Prometheus text format, for the
// node exporter textfile collector.
func (r *Report) WriteMetrics(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	tiles := factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clustertiler_tiles_written",
		Help: "Tiles written by the last run, per zoom level",
	}, []string{"zoom"})
	for zoom, n := range r.ZoomTiles {
		tiles.WithLabelValues(strconv.Itoa(zoom)).Set(float64(n))
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustertiler_tile_bytes_written",
		Help: "Compressed tile bytes written by the last run",
	}).Set(float64(r.Bytes))
	factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustertiler_tiles_oversized",
		Help: "Tiles above the size threshold in the last run",
	}).Set(float64(r.Oversized))
	factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustertiler_tiles_empty",
		Help: "Tile coordinates without features in the last run",
	}).Set(float64(r.Empty))
	factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustertiler_tiles_filtered",
		Help: "Tiles emptied by the tag filter in the last run",
	}).Set(float64(r.Filtered))
	factory.NewGauge(prometheus.GaugeOpts{
		Name: "clustertiler_run_duration_seconds",
		Help: "Wall time of the last run",
	}).Set(r.Duration.Seconds())

	return errors.Wrapf(prometheus.WriteToTextfile(path, reg), "write metrics %s", path)
}
