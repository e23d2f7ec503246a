package tiler

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/pkg/errors"

	"clustertiler/internal/cluster"
)

// MVTEncoder encodes a tile as a single layer Mapbox Vector Tile. Feature
// geometry is expected in tile coordinates already.
type MVTEncoder struct {
	Version int
	Extent  int
}

// Encode implements Encoder. Object and array tags end up as their JSON
// text.
func (e MVTEncoder) Encode(layer string, t *cluster.Tile) ([]byte, error) {
	data, err := mvt.Marshal(mvt.Layers{{
		Name:     layer,
		Version:  uint32(e.Version),
		Extent:   uint32(e.Extent),
		Features: t.Features,
	}})
	return data, errors.Wrap(err, "marshal mvt")
}

// GzipCompressor gzips tiles. The zero value uses the default level.
type GzipCompressor struct {
	Level int
}

// Compress implements Compressor.
func (c GzipCompressor) Compress(data []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "gzip writer")
	}
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}
