// Package trajectory fabricates ball flight data for the replay.
//
// Nothing here looks at video frames. Positions follow a fixed closed-form
// arc and speed/spin are drawn from bounded uniform noise.
package trajectory

import (
	"math"
)

// Sample is one synthetic ball position at a point in simulated flight time.
// X is lateral offset, Y is height and Z is distance along the pitch.
type Sample struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp float64 `json:"timestamp"` // normalized time in flight, i/n
	Speed     float64 `json:"speed"`     // km/h
	Spin      float64 `json:"spin"`      // rpm
}

// Point is a three-axis coordinate in pitch space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Arc endpoints in normalized camera space.
var (
	arcStart = Point{X: 0.1, Y: 0.2, Z: 0.8}
	arcEnd   = Point{X: 0.5, Y: 0.4, Z: 0.1}
)

const (
	// BulgeAmplitude is the peak height added to the straight start/end line.
	BulgeAmplitude = 0.15

	baseSpeed   = 120.0
	speedJitter = 20.0
	baseSpin    = 200.0
	spinJitter  = 300.0
)

// Rand is the source of uniform noise in [0,1).
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Bulge returns the height added at normalized time t.
func Bulge(t float64) float64 {
	return BulgeAmplitude * math.Sin(t*math.Pi)
}

// Synthesize produces the sample for step i of n.
func Synthesize(i, n int, rnd Rand) Sample {
	t := float64(i) / float64(n)

	x := lerp(arcStart.X, arcEnd.X, t)
	y := lerp(arcStart.Y, arcEnd.Y, t) + Bulge(t)
	z := lerp(arcStart.Z, arcEnd.Z, t)

	return Sample{
		X:         x*20 - 10,
		Y:         y * 3,
		Z:         z * 20,
		Timestamp: t,
		Speed:     baseSpeed + rnd.Float64()*speedJitter,
		Spin:      baseSpin + rnd.Float64()*spinJitter,
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
