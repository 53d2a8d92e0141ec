// Package scene turns a trajectory and a playback position into draw calls.
//
// Render is a pure function: the same samples and progress always produce the
// same Frame, so frames can be snapshot-tested and shipped to any renderer
// (the embedded WebGL page or the terminal rasterizer).
package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/gwlsn/hawkeye/internal/trajectory"
)

// Kind identifies a primitive.
type Kind string

const (
	KindPlane    Kind = "plane"
	KindDisc     Kind = "disc"
	KindCylinder Kind = "cylinder"
	KindSphere   Kind = "sphere"
	KindRing     Kind = "ring"
	KindLine     Kind = "line"
	KindGrid     Kind = "grid"
)

// Colors used by the broadcast palette.
const (
	ColorPitch   = "#8B7355"
	ColorStrip   = "#A0826D"
	ColorCrease  = "#FFFFFF"
	ColorStumps  = "#D4AF37"
	ColorGround  = "#2E7D32"
	ColorGrid    = "#444444"
	ColorTrail   = "#00FF00"
	ColorBall    = "#DC143C"
	ColorPreview = "#FFFF00"
	ColorBounce  = "#FF0000"
)

// Geometry constants, in world units (metres).
const (
	PitchWidth      = 4.0
	PitchHalfLength = 10.0
	BallRadius      = 0.15
	PreviewRadius   = 0.05
	PreviewStride   = 3
	StumpHeight     = 0.7
	StumpRadius     = 0.02

	// DefaultBounceHeight is the height below which the bounce ring is shown.
	DefaultBounceHeight = 0.3
)

// flat rotates a plane primitive to lie on the ground.
var flat = mgl64.Vec3{-math.Pi / 2, 0, 0}

// DrawCall is a single primitive. Size holds the geometry arguments of the
// primitive (plane: w,h; disc: r; cylinder: r,h; sphere: r; ring: inner,outer;
// grid: w,h). Points is only set for lines.
type DrawCall struct {
	Kind     Kind         `json:"kind"`
	Name     string       `json:"name"`
	Position mgl64.Vec3   `json:"position"`
	Rotation mgl64.Vec3   `json:"rotation"`
	Size     []float64    `json:"size,omitempty"`
	Points   []mgl64.Vec3 `json:"points,omitempty"`
	Color    string       `json:"color"`
	Opacity  float64      `json:"opacity"`
}

// Frame is the full draw list for one playback position.
type Frame struct {
	Progress float64    `json:"progress"`
	Index    int        `json:"index"`
	Bounce   bool       `json:"bounce"`
	Static   []DrawCall `json:"static"`
	Dynamic  []DrawCall `json:"dynamic"`
}

// Options tune Render. The zero value uses the defaults.
type Options struct {
	BounceHeight float64
}

// World maps a sample to world coordinates. The pitch runs along -Z with the
// bowling crease at z=+10.
func World(s trajectory.Sample) mgl64.Vec3 {
	return mgl64.Vec3{s.X, s.Y, -s.Z + PitchHalfLength}
}

// Index returns the sample shown at progress, floor(progress*(n-1)).
// Progress is clamped to [0,1]; -1 is returned for an empty sequence.
func Index(progress float64, n int) int {
	if n <= 0 {
		return -1
	}
	return int(math.Floor(clamp01(progress) * float64(n-1)))
}

// Pitch returns the static pitch model.
func Pitch() []DrawCall {
	calls := []DrawCall{
		{Kind: KindDisc, Name: "ground", Position: mgl64.Vec3{0, -0.05, 0}, Rotation: flat, Size: []float64{35}, Color: ColorGround, Opacity: 1},
		{Kind: KindGrid, Name: "grid", Position: mgl64.Vec3{0, -0.1, 0}, Size: []float64{50, 50}, Color: ColorGrid, Opacity: 1},
		{Kind: KindPlane, Name: "pitch", Position: mgl64.Vec3{0, 0, 0}, Rotation: flat, Size: []float64{PitchWidth, 2 * PitchHalfLength}, Color: ColorPitch, Opacity: 1},
		{Kind: KindPlane, Name: "strip", Position: mgl64.Vec3{0, 0.01, 0}, Rotation: flat, Size: []float64{3, 18}, Color: ColorStrip, Opacity: 1},
		{Kind: KindPlane, Name: "crease-batting", Position: mgl64.Vec3{0, 0.02, -PitchHalfLength}, Rotation: flat, Size: []float64{PitchWidth, 0.1}, Color: ColorCrease, Opacity: 1},
		{Kind: KindPlane, Name: "crease-bowling", Position: mgl64.Vec3{0, 0.02, PitchHalfLength}, Rotation: flat, Size: []float64{PitchWidth, 0.1}, Color: ColorCrease, Opacity: 1},
	}
	for _, end := range []struct {
		name string
		z    float64
	}{{"bowling", PitchHalfLength}, {"batting", -PitchHalfLength}} {
		for i, x := range []float64{-0.15, 0, 0.15} {
			calls = append(calls, DrawCall{
				Kind:     KindCylinder,
				Name:     fmt.Sprintf("stump-%s-%d", end.name, i),
				Position: mgl64.Vec3{x, StumpHeight / 2, end.z},
				Size:     []float64{StumpRadius, StumpHeight},
				Color:    ColorStumps,
				Opacity:  1,
			})
		}
	}
	return calls
}

// Render builds the frame for samples at progress.
func Render(samples []trajectory.Sample, progress float64, opts Options) Frame {
	bounceHeight := opts.BounceHeight
	if bounceHeight <= 0 {
		bounceHeight = DefaultBounceHeight
	}

	progress = clamp01(progress)
	idx := Index(progress, len(samples))
	f := Frame{
		Progress: progress,
		Index:    idx,
		Static:   Pitch(),
	}
	if idx < 0 {
		return f
	}

	trail := make([]mgl64.Vec3, 0, idx+1)
	for _, s := range samples[:idx+1] {
		trail = append(trail, World(s))
	}
	f.Dynamic = append(f.Dynamic, DrawCall{Kind: KindLine, Name: "trail", Points: trail, Color: ColorTrail, Opacity: 1})

	current := samples[idx]
	f.Dynamic = append(f.Dynamic, DrawCall{Kind: KindSphere, Name: "ball", Position: World(current), Size: []float64{BallRadius}, Color: ColorBall, Opacity: 1})

	for i, s := range samples[idx:] {
		if i%PreviewStride != 0 {
			continue
		}
		f.Dynamic = append(f.Dynamic, DrawCall{
			Kind:     KindSphere,
			Name:     fmt.Sprintf("preview-%d", idx+i),
			Position: World(s),
			Size:     []float64{PreviewRadius},
			Color:    ColorPreview,
			Opacity:  0.6,
		})
	}

	if current.Y < bounceHeight {
		f.Bounce = true
		pos := World(current)
		pos[1] = 0.01
		f.Dynamic = append(f.Dynamic, DrawCall{Kind: KindRing, Name: "bounce", Position: pos, Rotation: flat, Size: []float64{0.3, 0.4}, Color: ColorBounce, Opacity: 1})
	}

	return f
}

// String renders a draw call as one stable line of text for snapshots.
func (d DrawCall) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s pos=%s", d.Kind, d.Name, vec(d.Position))
	if d.Rotation != (mgl64.Vec3{}) {
		fmt.Fprintf(&b, " rot=%s", vec(d.Rotation))
	}
	if len(d.Size) > 0 {
		parts := make([]string, len(d.Size))
		for i, v := range d.Size {
			parts[i] = fmt.Sprintf("%.2f", v)
		}
		fmt.Fprintf(&b, " size=%s", strings.Join(parts, ","))
	}
	if len(d.Points) > 0 {
		parts := make([]string, len(d.Points))
		for i, p := range d.Points {
			parts[i] = vec(p)
		}
		fmt.Fprintf(&b, " points=%s", strings.Join(parts, ";"))
	}
	fmt.Fprintf(&b, " color=%s opacity=%.2f", d.Color, d.Opacity)
	return b.String()
}

// String renders the whole frame, one draw call per line.
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "progress=%.2f index=%d bounce=%t\n", f.Progress, f.Index, f.Bounce)
	for _, d := range f.Static {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	b.WriteString("--\n")
	for _, d := range f.Dynamic {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func vec(v mgl64.Vec3) string {
	return fmt.Sprintf("(%.2f,%.2f,%.2f)", zero(v[0]), zero(v[1]), zero(v[2]))
}

// zero folds -0 into 0 so snapshots do not flap on sign.
func zero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
