package trajectory

import (
	"context"
	"math/rand/v2"
	"time"
)

// Generator defaults
const (
	DefaultSteps     = 60
	DefaultStepDelay = 50 * time.Millisecond
)

// ProgressFunc is called after each step with the number of completed steps.
type ProgressFunc func(done, total int)

// Generator runs the fixed-step synthetic detector.
type Generator struct {
	Steps int
	Delay time.Duration
	Rand  Rand
}

// NewGenerator returns a generator with the given step count and delay.
// Non-positive steps fall back to DefaultSteps; a negative delay is treated as zero.
func NewGenerator(steps int, delay time.Duration) *Generator {
	if steps < 1 {
		steps = DefaultSteps
	}
	if delay < 0 {
		delay = 0
	}
	return &Generator{
		Steps: steps,
		Delay: delay,
		Rand:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
}

// Run generates Steps samples, sleeping Delay before each one. It stops as
// soon as ctx is cancelled and returns ctx.Err() with no samples.
func (g *Generator) Run(ctx context.Context, progress ProgressFunc) ([]Sample, error) {
	n := g.Steps
	samples := make([]Sample, 0, n)

	var timer *time.Timer
	if g.Delay > 0 {
		timer = time.NewTimer(g.Delay)
		defer timer.Stop()
	}

	for i := 0; i < n; i++ {
		if timer != nil {
			if i > 0 {
				timer.Reset(g.Delay)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		samples = append(samples, Synthesize(i, n, g.Rand))
		if progress != nil {
			progress(i+1, n)
		}
	}

	return samples, nil
}

// Analyze runs the generator and aggregates the result.
func Analyze(ctx context.Context, g *Generator, progress ProgressFunc) (*Analysis, error) {
	samples, err := g.Run(ctx, progress)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Trajectory: samples,
		Stats:      Summarize(samples),
	}, nil
}
