package cluster

import "github.com/paulmach/orb/geojson"

// SumProperties returns a map/reduce pair that carries the listed numeric
// properties onto clusters as the sum over all member points.
func SumProperties(keys ...string) (MapFunc, ReduceFunc) {
	mapFn := func(props geojson.Properties) geojson.Properties {
		out := make(geojson.Properties, len(keys))
		for _, k := range keys {
			out[k] = toFloat(props[k])
		}
		return out
	}
	reduceFn := func(acc, props geojson.Properties) {
		for _, k := range keys {
			acc[k] = toFloat(acc[k]) + toFloat(props[k])
		}
	}
	return mapFn, reduceFn
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}
