package trajectory

// Fixed values reported with every analysis.
const (
	PitchLength   = 20.12
	SwingType     = "Inswing"
	ReleaseHeight = 2.1
	ReleaseAngle  = 12.0
)

// BouncePoint is the reported pitching spot.
var BouncePoint = Point{X: 0, Y: 0, Z: 12.5}

// Summary aggregates a full sample sequence. It is computed once and never mutated.
type Summary struct {
	MaxSpeed      float64 `json:"maxSpeed"`
	AvgSpeed      float64 `json:"avgSpeed"`
	MaxSpin       float64 `json:"maxSpin"`
	AvgSpin       float64 `json:"avgSpin"`
	PitchLength   float64 `json:"pitchLength"`
	BouncePoint   Point   `json:"bouncePoint"`
	SwingType     string  `json:"swingType"`
	ReleaseHeight float64 `json:"releaseHeight"`
	ReleaseAngle  float64 `json:"releaseAngle"`
}

// Analysis is what the analyzer hands to the viewer.
type Analysis struct {
	Trajectory []Sample `json:"trajectory"`
	Stats      Summary  `json:"stats"`
}

// Summarize computes the max and average speed and spin over samples and
// fills in the fixed constants. An empty sequence yields zero speed and spin.
func Summarize(samples []Sample) Summary {
	s := Summary{
		PitchLength:   PitchLength,
		BouncePoint:   BouncePoint,
		SwingType:     SwingType,
		ReleaseHeight: ReleaseHeight,
		ReleaseAngle:  ReleaseAngle,
	}
	if len(samples) == 0 {
		return s
	}

	var speedSum, spinSum float64
	s.MaxSpeed = samples[0].Speed
	s.MaxSpin = samples[0].Spin
	for _, smp := range samples {
		speedSum += smp.Speed
		spinSum += smp.Spin
		if smp.Speed > s.MaxSpeed {
			s.MaxSpeed = smp.Speed
		}
		if smp.Spin > s.MaxSpin {
			s.MaxSpin = smp.Spin
		}
	}
	n := float64(len(samples))
	s.AvgSpeed = speedSum / n
	s.AvgSpin = spinSum / n
	return s
}

// Copy returns a deep copy so callers can hand the analysis across goroutines.
func (a *Analysis) Copy() *Analysis {
	if a == nil {
		return nil
	}
	out := &Analysis{Stats: a.Stats}
	out.Trajectory = make([]Sample, len(a.Trajectory))
	copy(out.Trajectory, a.Trajectory)
	return out
}
