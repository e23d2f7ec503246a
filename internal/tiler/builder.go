package tiler

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"clustertiler/internal/cluster"
)

const expansionZoomTag = "clusterExpansionZoom"

// Builder walks the tile grid of every zoom level and turns the index
// answers into pyramid entries. Schema is only complete after Walk returns.
type Builder struct {
	Schema FieldSchema

	index  Index
	input  []*geojson.Feature
	opts   Options
	report *Report
	log    logrus.FieldLogger
	runID  string
}

func newBuilder(index Index, input []*geojson.Feature, opts Options, report *Report, log logrus.FieldLogger) *Builder {
	return &Builder{
		Schema: FieldSchema{},
		index:  index,
		input:  input,
		opts:   opts,
		report: report,
		log:    log,
		runID:  report.RunID,
	}
}

// Walk visits zooms MinZoom..EffectiveMaxZoom, columns outer and rows inner,
// and hands every non-empty entry to emit. It stops at the first error from
// emit, the policy or ctx.
func (b *Builder) Walk(ctx context.Context, emit func(Entry) error) error {
	for z := b.opts.MinZoom; z <= b.opts.EffectiveMaxZoom(); z++ {
		dim := uint32(1) << uint(z)
		b.log.Debugf("zoom: %d, tiles: %d", z, uint64(dim)*uint64(dim))
		bar := newProgress(b.opts.Progress, z, int64(dim)*int64(dim))

		for x := uint32(0); x < dim; x++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for y := uint32(0); y < dim; y++ {
				bar.Increment()
				e, ok, err := b.Tile(maptile.New(x, y, maptile.Zoom(z)))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := emit(e); err != nil {
					return err
				}
			}
		}
		bar.Finish(b.runID)
	}
	return nil
}

// Tile applies the per-tile policy to one coordinate: skip when empty,
// filter, fold tags into the schema, annotate clusters, augment. ok is false
// when the tile must not be written.
func (b *Builder) Tile(t maptile.Tile) (e Entry, ok bool, err error) {
	data := b.index.Tile(uint32(t.Z), t.X, t.Y)
	if data == nil || len(data.Features) == 0 {
		b.report.addEmpty()
		return Entry{}, false, nil
	}

	features := data.Features
	if b.opts.Filter != nil {
		kept := make([]*geojson.Feature, 0, len(features))
		for _, f := range features {
			if b.opts.Filter(f.Properties) {
				kept = append(kept, f)
			}
		}
		features = kept
	}
	if len(features) == 0 {
		b.report.addFiltered()
		return Entry{}, false, nil
	}

	for _, f := range features {
		b.Schema.Fold(f.Properties)
	}

	if b.opts.StoreClusterExpansionZoom {
		for _, f := range features {
			if !isCluster(f) {
				continue
			}
			id, ok := clusterID(f)
			if !ok {
				continue
			}
			zoom, err := b.index.ExpansionZoom(id)
			if err != nil {
				return Entry{}, false, errors.Wrapf(err, "expansion zoom of cluster %d in tile %d/%d/%d", id, t.Z, t.X, t.Y)
			}
			f.Properties[expansionZoomTag] = zoom
			b.Schema[expansionZoomTag] = KindOf(zoom)
		}
	}

	if b.opts.Augment != nil {
		points := make([]*geojson.Feature, 0, len(features))
		for _, f := range features {
			if !isCluster(f) {
				points = append(points, f)
			}
		}
		extra := b.opts.Augment(points, b.input)
		for _, f := range extra {
			b.Schema.Fold(f.Properties)
		}
		features = append(features, extra...)
	}

	return Entry{T: t, Data: &cluster.Tile{Features: features}}, true, nil
}

func isCluster(f *geojson.Feature) bool {
	c, _ := f.Properties["cluster"].(bool)
	return c
}

func clusterID(f *geojson.Feature) (int, bool) {
	switch id := f.Properties["cluster_id"].(type) {
	case int:
		return id, true
	case int64:
		return int(id), true
	case float64:
		return int(id), true
	}
	return 0, false
}
