package trajectory

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"
)

// fixedRand always returns the same value.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestSynthesizeTimestamp(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, n := range []int{1, 2, 7, 60, 1000} {
		for i := 0; i < n; i++ {
			s := Synthesize(i, n, rnd)
			if s.Timestamp != float64(i)/float64(n) {
				t.Fatalf("Synthesize(%d, %d).Timestamp = %v, expected %v", i, n, s.Timestamp, float64(i)/float64(n))
			}
		}
	}
}

func TestSynthesizeEndpoints(t *testing.T) {
	first := Synthesize(0, 60, fixedRand(0))

	// t=0: x = 0.1*20-10, y = 0.2*3, z = 0.8*20
	if math.Abs(first.X-(-8)) > 1e-9 {
		t.Errorf("first X = %v, expected -8", first.X)
	}
	if math.Abs(first.Y-0.6) > 1e-9 {
		t.Errorf("first Y = %v, expected 0.6", first.Y)
	}
	if math.Abs(first.Z-16) > 1e-9 {
		t.Errorf("first Z = %v, expected 16", first.Z)
	}
	if first.Speed != 120 || first.Spin != 200 {
		t.Errorf("expected base speed/spin with zero noise, got %v/%v", first.Speed, first.Spin)
	}

	top := Synthesize(0, 60, fixedRand(0.999999))
	if top.Speed >= 140 || top.Spin >= 500 {
		t.Errorf("noise should stay below upper bound, got %v/%v", top.Speed, top.Spin)
	}
}

func TestBulge(t *testing.T) {
	if Bulge(0) != 0 {
		t.Errorf("Bulge(0) = %v, expected 0", Bulge(0))
	}
	if math.Abs(Bulge(1)) > 1e-12 {
		t.Errorf("Bulge(1) = %v, expected ~0", Bulge(1))
	}
	if math.Abs(Bulge(0.5)-BulgeAmplitude) > 1e-12 {
		t.Errorf("Bulge(0.5) = %v, expected %v", Bulge(0.5), BulgeAmplitude)
	}

	// Peak sits at the midpoint step for an even step count
	n := 60
	peak := 0
	for i := 1; i < n; i++ {
		if Bulge(float64(i)/float64(n)) > Bulge(float64(peak)/float64(n)) {
			peak = i
		}
	}
	if peak != n/2 {
		t.Errorf("bulge peak at step %d, expected %d", peak, n/2)
	}

	// Symmetric around the midpoint
	for i := 0; i <= n/2; i++ {
		a := Bulge(float64(i) / float64(n))
		b := Bulge(float64(n-i) / float64(n))
		if math.Abs(a-b) > 1e-12 {
			t.Errorf("bulge not symmetric at %d: %v vs %v", i, a, b)
		}
	}
}

func TestSummarize(t *testing.T) {
	samples := []Sample{
		{Speed: 121, Spin: 250},
		{Speed: 139, Spin: 480},
		{Speed: 130, Spin: 210},
	}

	s := Summarize(samples)

	if s.MaxSpeed != 139 {
		t.Errorf("MaxSpeed = %v, expected 139", s.MaxSpeed)
	}
	if math.Abs(s.AvgSpeed-130) > 1e-9 {
		t.Errorf("AvgSpeed = %v, expected 130", s.AvgSpeed)
	}
	if s.MaxSpin != 480 {
		t.Errorf("MaxSpin = %v, expected 480", s.MaxSpin)
	}
	if math.Abs(s.AvgSpin-313.3333333333) > 1e-6 {
		t.Errorf("AvgSpin = %v, expected 313.33", s.AvgSpin)
	}
	if s.PitchLength != 20.12 || s.SwingType != "Inswing" || s.ReleaseHeight != 2.1 || s.ReleaseAngle != 12 {
		t.Errorf("unexpected constants: %+v", s)
	}
	if s.BouncePoint != (Point{X: 0, Y: 0, Z: 12.5}) {
		t.Errorf("BouncePoint = %+v", s.BouncePoint)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.MaxSpeed != 0 || s.AvgSpeed != 0 || s.MaxSpin != 0 || s.AvgSpin != 0 {
		t.Errorf("expected zero aggregates, got %+v", s)
	}
	if s.PitchLength != PitchLength {
		t.Errorf("constants should still be set, got %+v", s)
	}
}

func TestSummarizeOrdering(t *testing.T) {
	for seed := uint64(0); seed < 50; seed++ {
		g := &Generator{Steps: DefaultSteps, Rand: rand.New(rand.NewPCG(seed, seed+1))}
		samples, err := g.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		minSpeed, minSpin := samples[0].Speed, samples[0].Spin
		for _, s := range samples {
			minSpeed = math.Min(minSpeed, s.Speed)
			minSpin = math.Min(minSpin, s.Spin)
		}
		sum := Summarize(samples)
		if !(sum.MaxSpeed >= sum.AvgSpeed && sum.AvgSpeed >= minSpeed) {
			t.Errorf("seed %d: speed ordering violated: max=%v avg=%v min=%v", seed, sum.MaxSpeed, sum.AvgSpeed, minSpeed)
		}
		if !(sum.MaxSpin >= sum.AvgSpin && sum.AvgSpin >= minSpin) {
			t.Errorf("seed %d: spin ordering violated: max=%v avg=%v min=%v", seed, sum.MaxSpin, sum.AvgSpin, minSpin)
		}
	}
}

func TestGeneratorRun(t *testing.T) {
	g := NewGenerator(60, 0)

	var reports []int
	samples, err := g.Run(context.Background(), func(done, total int) {
		if total != 60 {
			t.Errorf("total = %d, expected 60", total)
		}
		reports = append(reports, done)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(samples) != 60 {
		t.Fatalf("expected 60 samples, got %d", len(samples))
	}
	if samples[0].Timestamp != 0 {
		t.Errorf("first timestamp = %v, expected 0", samples[0].Timestamp)
	}
	if samples[59].Timestamp != 59.0/60.0 {
		t.Errorf("last timestamp = %v, expected 59/60", samples[59].Timestamp)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Timestamp <= samples[i-1].Timestamp {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}

	if len(reports) != 60 {
		t.Fatalf("expected 60 progress reports, got %d", len(reports))
	}
	for i, done := range reports {
		if done != i+1 {
			t.Errorf("report %d = %d, expected %d", i, done, i+1)
		}
	}
}

func TestNewGeneratorDefaults(t *testing.T) {
	g := NewGenerator(0, -time.Second)
	if g.Steps != DefaultSteps {
		t.Errorf("Steps = %d, expected %d", g.Steps, DefaultSteps)
	}
	if g.Delay != 0 {
		t.Errorf("Delay = %v, expected 0", g.Delay)
	}
	if g.Rand == nil {
		t.Error("expected a random source")
	}
}

func TestGeneratorCancel(t *testing.T) {
	g := NewGenerator(60, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var done int
	samples, err := g.Run(ctx, func(d, _ int) {
		done = d
		if d == 3 {
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if done != 3 {
		t.Errorf("expected generation to stop after 3 steps, %d reported", done)
	}
	if samples != nil {
		t.Errorf("cancelled run should discard its samples, got %d", len(samples))
	}
}

func TestGeneratorCancelledBeforeStart(t *testing.T) {
	g := NewGenerator(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := g.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if samples != nil {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	g := NewGenerator(60, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	a, err := Analyze(ctx, g, func(d, _ int) {
		if d == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) || a != nil {
		t.Errorf("expected nil analysis and context.Canceled, got %v, %v", a, err)
	}
}

func TestAnalyze(t *testing.T) {
	g := NewGenerator(12, time.Millisecond)
	a, err := Analyze(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Trajectory) != 12 {
		t.Errorf("expected 12 samples, got %d", len(a.Trajectory))
	}
	if a.Stats.MaxSpeed < 120 || a.Stats.MaxSpeed >= 140 {
		t.Errorf("MaxSpeed out of range: %v", a.Stats.MaxSpeed)
	}

	cp := a.Copy()
	cp.Trajectory[0].X = 999
	if a.Trajectory[0].X == 999 {
		t.Error("Copy should not share the sample slice")
	}
}
