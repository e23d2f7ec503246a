package tiler

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"clustertiler/internal/cluster"
	"clustertiler/internal/source"
)

// TagFilter keeps a tile feature when it returns true for the feature tags.
type TagFilter func(tags geojson.Properties) bool

// Augmenter returns extra features for a tile. It receives the tile's
// non-cluster features, in tile coordinates, and the full input collection.
// Its features are appended after filtering and are never filtered.
type Augmenter func(points []*geojson.Feature, input []*geojson.Feature) []*geojson.Feature

// Index is the cluster index queried per tile.
type Index interface {
	Tile(z, x, y uint32) *cluster.Tile
	ExpansionZoom(clusterID int) (int, error)
}

// Sink stores container rows. Implementations must accept concurrent calls.
type Sink interface {
	PutMetadata(ctx context.Context, name, value string) error
	PutTile(ctx context.Context, zoom, column, row uint32, data []byte) error
}

// Encoder turns a tile into its binary vector tile form.
type Encoder interface {
	Encode(layer string, t *cluster.Tile) ([]byte, error)
}

// Compressor shrinks encoded tiles.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Options configure one run. Start from DefaultOptions and override fields.
type Options struct {
	// Clustering, passed through to the index.
	MinZoom   int
	MaxZoom   int
	Radius    float64
	Extent    int
	NodeSize  int
	MinPoints int
	Map       cluster.MapFunc
	Reduce    cluster.ReduceFunc

	StoreClusterExpansionZoom bool
	IncludeUnclustered        bool

	// Container metadata.
	Output      string
	Name        string
	Layer       string
	Bounds      string
	Center      string
	Version     int
	Attribution string
	Description string

	InputFilter source.FeatureFilter
	Filter      TagFilter
	Augment     Augmenter

	// GzipSynchronously writes one tile at a time in traversal order.
	// Otherwise up to Concurrency tiles are in flight, 0 meaning no limit.
	GzipSynchronously bool
	Concurrency       int

	// MaxTileBytes is the compressed size reported as oversized. With
	// StrictTileSize an oversized tile fails the run instead.
	MaxTileBytes   int
	StrictTileSize bool

	Progress bool

	Encoder    Encoder
	Compressor Compressor
}

// DefaultOptions returns the defaults of every option.
func DefaultOptions() Options {
	c := cluster.DefaultOptions()
	return Options{
		MinZoom:      0,
		MaxZoom:      8,
		Radius:       c.Radius,
		Extent:       c.Extent,
		NodeSize:     c.NodeSize,
		MinPoints:    c.MinPoints,
		Layer:        "geojsonLayer",
		Bounds:       "-180.0,-85,180,85",
		Center:       "0,0,0",
		Version:      2,
		InputFilter:  source.PointsOnly,
		MaxTileBytes: DefaultMaxTileBytes,
	}
}

// EffectiveMaxZoom is the deepest traversed zoom, one past MaxZoom when
// unclustered points are included.
func (o Options) EffectiveMaxZoom() int {
	if o.IncludeUnclustered {
		return o.MaxZoom + 1
	}
	return o.MaxZoom
}

// Validate reports the first invalid option.
func (o Options) Validate() error {
	switch {
	case o.Output == "":
		return errors.New("output path is required")
	case o.Layer == "":
		return errors.New("layer name is required")
	case o.MinZoom < ZoomMin:
		return errors.Errorf("minZoom %d below %d", o.MinZoom, ZoomMin)
	case o.MinZoom > o.MaxZoom:
		return errors.Errorf("minZoom %d above maxZoom %d", o.MinZoom, o.MaxZoom)
	case o.EffectiveMaxZoom() > ZoomMax:
		return errors.Errorf("maxZoom %d above %d", o.EffectiveMaxZoom(), ZoomMax)
	case o.Extent <= 0:
		return errors.Errorf("extent must be positive, got %d", o.Extent)
	case o.Radius <= 0:
		return errors.Errorf("radius must be positive, got %g", o.Radius)
	case o.NodeSize <= 0:
		return errors.Errorf("nodeSize must be positive, got %d", o.NodeSize)
	case o.Version <= 0:
		return errors.Errorf("version must be positive, got %d", o.Version)
	case o.Concurrency < 0:
		return errors.Errorf("concurrency must not be negative, got %d", o.Concurrency)
	}
	return nil
}

// ClusterOptions returns the options of the cluster index.
func (o Options) ClusterOptions() cluster.Options {
	return cluster.Options{
		MinZoom:   o.MinZoom,
		MaxZoom:   o.MaxZoom,
		MinPoints: o.MinPoints,
		Radius:    o.Radius,
		Extent:    o.Extent,
		NodeSize:  o.NodeSize,
		Map:       o.Map,
		Reduce:    o.Reduce,
	}
}

// TileMap returns the fixed container metadata.
func (o Options) TileMap() TileMap {
	name := o.Name
	if name == "" {
		name = o.Output
	}
	return TileMap{
		Name:        name,
		Description: o.Description,
		Attribution: o.Attribution,
		Min:         o.MinZoom,
		Max:         o.EffectiveMaxZoom(),
		Format:      PBF,
		Bounds:      o.Bounds,
		Center:      o.Center,
		Type:        "overlay",
		Version:     o.Version,
	}
}

// limit is the number of tiles in flight, -1 for no limit.
func (o Options) limit() int {
	if o.GzipSynchronously {
		return 1
	}
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return -1
}

func (o Options) encoder() Encoder {
	if o.Encoder != nil {
		return o.Encoder
	}
	return MVTEncoder{Version: o.Version, Extent: o.Extent}
}

func (o Options) compressor() Compressor {
	if o.Compressor != nil {
		return o.Compressor
	}
	return GzipCompressor{}
}
