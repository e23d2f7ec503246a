package tiler

import (
	"github.com/paulmach/orb/maptile"

	"clustertiler/internal/cluster"
)

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax is the deepest zoom the pyramid may reach, unclustered level included.
const ZoomMax = 24

// DefaultMaxTileBytes is the compressed size above which a tile is reported.
const DefaultMaxTileBytes = 500000

// PBF is the tile format of the container, gzipped Mapbox Vector Tiles.
const PBF = "pbf"

// Entry is one tile of the pyramid: its coordinate and its features.
type Entry struct {
	T    maptile.Tile
	Data *cluster.Tile
}

// Row is the stored row of the entry. Tiles are addressed with a top-left
// origin, the container counts rows from the bottom.
func (e Entry) Row() uint32 {
	return TMSRow(e.T)
}

// TMSRow flips a top-left origin row to a bottom-left origin row.
func TMSRow(t maptile.Tile) uint32 {
	return uint32(1)<<uint(t.Z) - 1 - t.Y
}
