// Package cluster builds a hierarchical point cluster index and answers the
// two queries tile generation needs: the features visible in a tile, and the
// zoom at which a cluster breaks apart.
package cluster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// ErrNoCluster is returned for cluster ids the index never produced.
var ErrNoCluster = errors.New("no cluster with the specified id")

// MapFunc turns the properties of an input point into the properties that
// take part in cluster aggregation.
type MapFunc func(props geojson.Properties) geojson.Properties

// ReduceFunc folds the mapped properties of one cluster member into the
// accumulated properties of its cluster.
type ReduceFunc func(accumulated, props geojson.Properties)

// Options configure the index. Map and Reduce are optional; without Reduce
// clusters only carry the synthetic cluster tags.
type Options struct {
	MinZoom   int
	MaxZoom   int
	MinPoints int
	Radius    float64
	Extent    int
	NodeSize  int
	Map       MapFunc
	Reduce    ReduceFunc
}

// DefaultOptions returns the stock clustering parameters.
func DefaultOptions() Options {
	return Options{
		MinZoom:   0,
		MaxZoom:   16,
		MinPoints: 2,
		Radius:    40,
		Extent:    512,
		NodeSize:  64,
	}
}

// Tile holds the features of one tile in tile-local integer coordinates
// scaled to the index extent.
type Tile struct {
	Features []*geojson.Feature
}

const unvisited = math.MaxInt32

// point is one entry of a zoom level: an input point or a cluster.
type point struct {
	x, y      float64
	zoom      int // last zoom at which the entry was visited
	id        int // input index for single points, cluster id for clusters
	parentID  int
	numPoints int
	propIndex int
}

type level struct {
	points []point
	tree   *kdTree
}

func newLevel(points []point, nodeSize int) *level {
	return &level{points: points, tree: newKDTree(points, nodeSize)}
}

// Supercluster is a read-only cluster index once Load returns.
type Supercluster struct {
	Options Options

	points       []*geojson.Feature
	levels       []*level // indexed by zoom, up to MaxZoom+1
	clusterProps []geojson.Properties
}

// New returns an empty index; call Load before querying it.
func New(options Options) *Supercluster {
	return &Supercluster{Options: options}
}

// Load indexes the point features. Features without point geometry are
// ignored but still count towards cluster id numbering.
func (sc *Supercluster) Load(features []*geojson.Feature) *Supercluster {
	sc.points = features
	sc.clusterProps = nil
	sc.levels = make([]*level, sc.Options.MaxZoom+2)

	data := make([]point, 0, len(features))
	for i, f := range features {
		if f == nil {
			continue
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		data = append(data, point{
			x:         fround(lngX(p.Lon())),
			y:         fround(latY(p.Lat())),
			zoom:      unvisited,
			id:        i,
			parentID:  -1,
			numPoints: 1,
			propIndex: -1,
		})
	}

	lvl := newLevel(data, sc.Options.NodeSize)
	sc.levels[sc.Options.MaxZoom+1] = lvl

	for z := sc.Options.MaxZoom; z >= sc.Options.MinZoom; z-- {
		lvl = newLevel(sc.cluster(lvl, z), sc.Options.NodeSize)
		sc.levels[z] = lvl
	}
	return sc
}

// cluster merges the entries of lvl that are close at zoom into the entries
// of the next coarser level.
func (sc *Supercluster) cluster(lvl *level, zoom int) []point {
	r := sc.Options.Radius / (float64(sc.Options.Extent) * math.Pow(2, float64(zoom)))
	data := lvl.points
	next := make([]point, 0, len(data))

	for i := range data {
		p := &data[i]
		if p.zoom <= zoom {
			continue
		}
		p.zoom = zoom

		neighbors := lvl.tree.Within(p.x, p.y, r)

		numPointsOrigin := p.numPoints
		numPoints := numPointsOrigin
		for _, n := range neighbors {
			if data[n].zoom > zoom {
				numPoints += data[n].numPoints
			}
		}

		if numPoints > numPointsOrigin && numPoints >= sc.Options.MinPoints {
			wx := p.x * float64(numPointsOrigin)
			wy := p.y * float64(numPointsOrigin)

			var props geojson.Properties
			propIndex := -1
			id := (i << 5) + (zoom + 1) + len(sc.points)

			for _, n := range neighbors {
				b := &data[n]
				if b.zoom <= zoom {
					continue
				}
				b.zoom = zoom

				wx += b.x * float64(b.numPoints)
				wy += b.y * float64(b.numPoints)
				b.parentID = id

				if sc.Options.Reduce != nil {
					if props == nil {
						props = sc.mapProps(*p, true)
						propIndex = len(sc.clusterProps)
						sc.clusterProps = append(sc.clusterProps, props)
					}
					sc.Options.Reduce(props, sc.mapProps(*b, false))
				}
			}

			p.parentID = id
			next = append(next, point{
				x:         wx / float64(numPoints),
				y:         wy / float64(numPoints),
				zoom:      unvisited,
				id:        id,
				parentID:  -1,
				numPoints: numPoints,
				propIndex: propIndex,
			})
			continue
		}

		next = append(next, *p)
		if numPoints > 1 {
			for _, n := range neighbors {
				b := &data[n]
				if b.zoom <= zoom {
					continue
				}
				b.zoom = zoom
				next = append(next, *b)
			}
		}
	}
	return next
}

func (sc *Supercluster) mapProps(p point, clone bool) geojson.Properties {
	if p.numPoints > 1 {
		if p.propIndex < 0 {
			return geojson.Properties{}
		}
		props := sc.clusterProps[p.propIndex]
		if clone {
			return props.Clone()
		}
		return props
	}

	props := sc.points[p.id].Properties
	if sc.Options.Map != nil {
		props = sc.Options.Map(props)
	}
	if clone {
		return props.Clone()
	}
	return props
}

func (sc *Supercluster) limitZoom(z int) int {
	if z > sc.Options.MaxZoom+1 {
		z = sc.Options.MaxZoom + 1
	}
	if z < sc.Options.MinZoom {
		z = sc.Options.MinZoom
	}
	return z
}

// Tile returns the features of tile (z, x, y), or nil when it has none.
// Zooms beyond MaxZoom are answered from the unclustered level.
func (sc *Supercluster) Tile(z, x, y uint32) *Tile {
	if sc.levels == nil {
		return nil
	}
	lvl := sc.levels[sc.limitZoom(int(z))]

	z2 := math.Pow(2, float64(z))
	p := sc.Options.Radius / float64(sc.Options.Extent)
	fx, fy := float64(x), float64(y)
	top := (fy - p) / z2
	bottom := (fy + 1 + p) / z2

	t := &Tile{}
	sc.addTileFeatures(t, lvl, lvl.tree.Range((fx-p)/z2, top, (fx+1+p)/z2, bottom), fx, fy, z2)

	if x == 0 {
		sc.addTileFeatures(t, lvl, lvl.tree.Range(1-p/z2, top, 1, bottom), z2, fy, z2)
	}
	if fx == z2-1 {
		sc.addTileFeatures(t, lvl, lvl.tree.Range(0, top, p/z2, bottom), -1, fy, z2)
	}

	if len(t.Features) == 0 {
		return nil
	}
	return t
}

func (sc *Supercluster) addTileFeatures(t *Tile, lvl *level, ids []int, x, y, z2 float64) {
	extent := float64(sc.Options.Extent)
	for _, i := range ids {
		pt := lvl.points[i]

		var (
			tags   geojson.Properties
			px, py float64
			id     interface{}
		)
		if pt.numPoints > 1 {
			tags = sc.clusterProperties(pt)
			px, py = pt.x, pt.y
			id = pt.id
		} else {
			src := sc.points[pt.id]
			ll := src.Geometry.(orb.Point)
			tags = src.Properties.Clone()
			px, py = lngX(ll.Lon()), latY(ll.Lat())
			id = src.ID
		}

		f := geojson.NewFeature(orb.Point{
			round(extent * (px*z2 - x)),
			round(extent * (py*z2 - y)),
		})
		f.ID = id
		f.Properties = tags
		t.Features = append(t.Features, f)
	}
}

func (sc *Supercluster) clusterProperties(pt point) geojson.Properties {
	props := geojson.Properties{}
	if pt.propIndex >= 0 {
		props = sc.clusterProps[pt.propIndex].Clone()
	}
	props["cluster"] = true
	props["cluster_id"] = pt.id
	props["point_count"] = pt.numPoints
	props["point_count_abbreviated"] = abbreviate(pt.numPoints)
	return props
}

func abbreviate(count int) interface{} {
	switch {
	case count >= 10000:
		return fmt.Sprintf("%dk", int(round(float64(count)/1000)))
	case count >= 1000:
		return fmt.Sprintf("%gk", round(float64(count)/100)/10)
	default:
		return count
	}
}

func (sc *Supercluster) originID(clusterID int) int {
	return (clusterID - len(sc.points)) >> 5
}

func (sc *Supercluster) originZoom(clusterID int) int {
	return (clusterID - len(sc.points)) % 32
}

// Children returns the direct children of a cluster one zoom level down.
// Child clusters are returned as point features in WGS84.
func (sc *Supercluster) Children(clusterID int) ([]*geojson.Feature, error) {
	originID := sc.originID(clusterID)
	originZoom := sc.originZoom(clusterID)
	if clusterID < len(sc.points) || originZoom < 1 || originZoom >= len(sc.levels) || sc.levels[originZoom] == nil {
		return nil, errors.Wrapf(ErrNoCluster, "cluster %d", clusterID)
	}

	lvl := sc.levels[originZoom]
	if originID >= len(lvl.points) {
		return nil, errors.Wrapf(ErrNoCluster, "cluster %d", clusterID)
	}

	r := sc.Options.Radius / (float64(sc.Options.Extent) * math.Pow(2, float64(originZoom-1)))
	origin := lvl.points[originID]

	var children []*geojson.Feature
	for _, i := range lvl.tree.Within(origin.x, origin.y, r) {
		c := lvl.points[i]
		if c.parentID != clusterID {
			continue
		}
		if c.numPoints > 1 {
			f := geojson.NewFeature(orb.Point{xLng(c.x), yLat(c.y)})
			f.ID = c.id
			f.Properties = sc.clusterProperties(c)
			children = append(children, f)
		} else {
			children = append(children, sc.points[c.id])
		}
	}

	if len(children) == 0 {
		return nil, errors.Wrapf(ErrNoCluster, "cluster %d", clusterID)
	}
	return children, nil
}

// ExpansionZoom returns the zoom at which the cluster splits into more than
// one child.
func (sc *Supercluster) ExpansionZoom(clusterID int) (int, error) {
	zoom := sc.originZoom(clusterID) - 1
	for zoom <= sc.Options.MaxZoom {
		children, err := sc.Children(clusterID)
		if err != nil {
			return 0, err
		}
		zoom++
		if len(children) != 1 {
			break
		}
		id, ok := children[0].Properties["cluster_id"].(int)
		if !ok {
			break
		}
		clusterID = id
	}
	return zoom, nil
}
