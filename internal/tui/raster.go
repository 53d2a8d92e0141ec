package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gwlsn/hawkeye/internal/scene"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellGround
	cellPitch
	cellStump
	cellPreview
	cellTrail
	cellBounce
	cellBall
)

// Cell is one character of the side view
type Cell struct {
	Ch   rune
	Kind cellKind
}

var cellStyles = map[cellKind]lipgloss.Style{
	cellGround:  lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorGround)),
	cellPitch:   lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorStrip)),
	cellStump:   lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorStumps)),
	cellPreview: lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorPreview)),
	cellTrail:   lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorTrail)),
	cellBounce:  lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorBounce)).Bold(true),
	cellBall:    lipgloss.NewStyle().Foreground(lipgloss.Color(scene.ColorBall)).Bold(true),
}

// Viewport is the world window of the side view: pitch length across,
// height up. The bowling end is on the left.
type Viewport struct {
	MinZ, MaxZ float64
	MaxY       float64
}

// FitViewport frames the whole delivery and the bowling stumps
func FitViewport(samples []trajectory.Sample) Viewport {
	vp := Viewport{MinZ: math.Inf(1), MaxZ: scene.PitchHalfLength, MaxY: scene.StumpHeight}
	for _, s := range samples {
		w := scene.World(s)
		vp.MinZ = math.Min(vp.MinZ, w.Z())
		vp.MaxZ = math.Max(vp.MaxZ, w.Z())
		vp.MaxY = math.Max(vp.MaxY, w.Y())
	}
	if math.IsInf(vp.MinZ, 1) {
		return Viewport{MinZ: -scene.PitchHalfLength, MaxZ: scene.PitchHalfLength, MaxY: 1}
	}
	pad := (vp.MaxZ - vp.MinZ) * 0.1
	if pad == 0 {
		pad = 1
	}
	vp.MinZ -= pad
	vp.MaxZ += pad
	vp.MaxY *= 1.2
	return vp
}

func (vp Viewport) col(z float64, width int) int {
	return int(math.Round((vp.MaxZ - z) / (vp.MaxZ - vp.MinZ) * float64(width-1)))
}

func (vp Viewport) row(y float64, height int) int {
	ground := height - 1
	return ground - int(math.Round(y/vp.MaxY*float64(ground)))
}

// Rasterize projects a frame onto a width x height character grid seen from
// the side. The bottom row is the ground.
func Rasterize(f scene.Frame, vp Viewport, width, height int) [][]Cell {
	if width < 2 || height < 2 {
		return nil
	}
	grid := make([][]Cell, height)
	for r := range grid {
		grid[r] = make([]Cell, width)
		for c := range grid[r] {
			grid[r][c] = Cell{Ch: ' '}
		}
	}

	set := func(z, y float64, ch rune, kind cellKind) {
		c, r := vp.col(z, width), vp.row(y, height)
		if c < 0 || c >= width || r < 0 || r >= height {
			return
		}
		if grid[r][c].Kind > kind {
			return
		}
		grid[r][c] = Cell{Ch: ch, Kind: kind}
	}

	ground := height - 1
	for c := 0; c < width; c++ {
		grid[ground][c] = Cell{Ch: '_', Kind: cellGround}
	}

	for _, d := range f.Static {
		switch {
		case d.Name == "pitch":
			half := d.Size[1] / 2
			for c := 0; c < width; c++ {
				z := vp.MaxZ - float64(c)/float64(width-1)*(vp.MaxZ-vp.MinZ)
				if z >= d.Position.Z()-half && z <= d.Position.Z()+half {
					grid[ground][c] = Cell{Ch: '=', Kind: cellPitch}
				}
			}
		case d.Kind == scene.KindCylinder:
			c := vp.col(d.Position.Z(), width)
			if c < 0 || c >= width {
				continue
			}
			for r := max(vp.row(d.Size[1], height), 0); r < ground; r++ {
				grid[r][c] = Cell{Ch: '|', Kind: cellStump}
			}
		}
	}

	for _, d := range f.Dynamic {
		switch d.Kind {
		case scene.KindLine:
			for _, p := range d.Points {
				set(p.Z(), p.Y(), '.', cellTrail)
			}
		case scene.KindSphere:
			if d.Name == "ball" {
				set(d.Position.Z(), d.Position.Y(), 'O', cellBall)
			} else {
				set(d.Position.Z(), d.Position.Y(), '\'', cellPreview)
			}
		case scene.KindRing:
			set(d.Position.Z(), 0, '*', cellBounce)
		}
	}

	return grid
}

// renderGrid styles each run of same-kind cells
func renderGrid(grid [][]Cell) string {
	var b strings.Builder
	for r, row := range grid {
		if r > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for c := 1; c <= len(row); c++ {
			if c < len(row) && row[c].Kind == row[start].Kind {
				continue
			}
			var run strings.Builder
			for _, cell := range row[start:c] {
				run.WriteRune(cell.Ch)
			}
			if style, ok := cellStyles[row[start].Kind]; ok {
				b.WriteString(style.Render(run.String()))
			} else {
				b.WriteString(run.String())
			}
			start = c
		}
	}
	return b.String()
}

// plainGrid returns the grid without styling
func plainGrid(grid [][]Cell) string {
	lines := make([]string, len(grid))
	for r, row := range grid {
		rs := make([]rune, len(row))
		for c, cell := range row {
			rs[c] = cell.Ch
		}
		lines[r] = string(rs)
	}
	return strings.Join(lines, "\n")
}
