package cluster

import "math"

// lngX projects a longitude to the unit mercator x axis.
func lngX(lng float64) float64 {
	return lng/360 + 0.5
}

// latY projects a latitude to the unit mercator y axis, clamped to [0, 1].
func latY(lat float64) float64 {
	sin := math.Sin(lat * math.Pi / 180)
	y := 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi
	if y < 0 {
		return 0
	}
	if y > 1 {
		return 1
	}
	return y
}

func xLng(x float64) float64 {
	return (x - 0.5) * 360
}

func yLat(y float64) float64 {
	y2 := (180 - y*360) * math.Pi / 180
	return 360*math.Atan(math.Exp(y2))/math.Pi - 90
}

// fround matches the single precision storage of projected coordinates.
func fround(v float64) float64 {
	return float64(float32(v))
}

// round is half-up rounding, as tile renderers expect.
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}
