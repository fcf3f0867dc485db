// Package render turns solver grids into plots: velocity arrow fields,
// speed heatmaps, and convergence history. The solver itself knows
// nothing about pixels; all display scaling happens here.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/flowbench-sim/flowbench/internal/flow"
)

// speedGrid adapts a flow.Grid to plotter.GridXYZ, exposing velocity
// magnitude at cell centers.
type speedGrid struct {
	g *flow.Grid
}

func (s speedGrid) Dims() (c, r int) { return s.g.Width, s.g.Height }
func (s speedGrid) X(c int) float64  { return float64(c) }
func (s speedGrid) Y(r int) float64  { return float64(r) }

func (s speedGrid) Z(c, r int) float64 {
	i := s.g.Idx(c, r)
	return math.Hypot(s.g.U[i], s.g.V[i])
}

// ArrowField builds a quiver-style plot of the velocity field. Arrows
// are drawn on a stride to keep the plot readable; obstacle cells are
// overlaid as black markers.
func ArrowField(g *flow.Grid, stride int) (*plot.Plot, error) {
	if stride < 1 {
		stride = 1
	}

	p := plot.New()
	p.Title.Text = "Velocity Field"
	p.X.Label.Text = "x (cells)"
	p.Y.Label.Text = "y (cells)"
	p.X.Min, p.X.Max = 0, float64(g.Width-1)
	p.Y.Min, p.Y.Max = 0, float64(g.Height-1)

	// Scale arrows so the longest one spans about one stride cell.
	maxMag := 0.0
	for i := range g.U {
		if m := math.Hypot(g.U[i], g.V[i]); m > maxMag {
			maxMag = m
		}
	}
	scale := 1.0
	if maxMag > 0 {
		scale = float64(stride) / maxMag
	}

	arrowColor := color.RGBA{R: 30, G: 90, B: 200, A: 255}
	for y := 0; y < g.Height; y += stride {
		for x := 0; x < g.Width; x += stride {
			i := g.Idx(x, y)
			if g.Obstacle[i] {
				continue
			}
			u := g.U[i] * scale
			v := g.V[i] * scale
			if math.Hypot(u, v) < 1e-9 {
				continue
			}
			line, err := plotter.NewLine(arrowPoints(float64(x), float64(y), u, v))
			if err != nil {
				return nil, err
			}
			line.Color = arrowColor
			line.Width = vg.Points(1)
			p.Add(line)
		}
	}

	if obstacles := obstaclePoints(g); len(obstacles) > 0 {
		scatter, err := plotter.NewScatter(obstacles)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyle.Color = color.Black
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(scatter)
	}

	return p, nil
}

// arrowPoints traces an arrow as one polyline: shaft, then both head
// barbs via a doubled tip vertex.
func arrowPoints(x, y, u, v float64) plotter.XYs {
	tipX := x + u
	tipY := y + v

	angle := math.Atan2(v, u)
	headLen := 0.3 * math.Hypot(u, v)
	const headAngle = 2.6 // radians off the shaft direction

	leftX := tipX + headLen*math.Cos(angle+headAngle)
	leftY := tipY + headLen*math.Sin(angle+headAngle)
	rightX := tipX + headLen*math.Cos(angle-headAngle)
	rightY := tipY + headLen*math.Sin(angle-headAngle)

	return plotter.XYs{
		{X: x, Y: y},
		{X: tipX, Y: tipY},
		{X: leftX, Y: leftY},
		{X: tipX, Y: tipY},
		{X: rightX, Y: rightY},
	}
}

func obstaclePoints(g *flow.Grid) plotter.XYs {
	var pts plotter.XYs
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Obstacle[g.Idx(x, y)] {
				pts = append(pts, plotter.XY{X: float64(x), Y: float64(y)})
			}
		}
	}
	return pts
}

// SpeedHeatmap builds a heatmap of velocity magnitude.
func SpeedHeatmap(g *flow.Grid) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Speed"
	p.X.Label.Text = "x (cells)"
	p.Y.Label.Text = "y (cells)"

	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(speedGrid{g}, pal)
	p.Add(hm)
	return p, nil
}

// ConvergenceHistory builds a line plot of per-step velocity deltas on a
// log-friendly linear axis.
func ConvergenceHistory(deltas []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Convergence"
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Max velocity delta"

	pts := make(plotter.XYs, len(deltas))
	for i, d := range deltas {
		pts[i] = plotter.XY{X: float64(i + 1), Y: d}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// WritePNG renders a plot as PNG into w.
func WritePNG(p *plot.Plot, w io.Writer, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// SaveFieldPlots writes the arrow field, speed heatmap, and convergence
// history (when non-empty) into dir. Returns the number of files
// written.
func SaveFieldPlots(g *flow.Grid, deltas []float64, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	stride := g.Width / 24
	if stride < 1 {
		stride = 1
	}

	count := 0
	field, err := ArrowField(g, stride)
	if err != nil {
		return count, err
	}
	if err := field.Save(8*vg.Inch, 8*vg.Inch, filepath.Join(dir, "velocity_field.png")); err != nil {
		return count, fmt.Errorf("save velocity field: %w", err)
	}
	count++

	speed, err := SpeedHeatmap(g)
	if err != nil {
		return count, err
	}
	if err := speed.Save(8*vg.Inch, 8*vg.Inch, filepath.Join(dir, "speed.png")); err != nil {
		return count, fmt.Errorf("save speed heatmap: %w", err)
	}
	count++

	if len(deltas) > 0 {
		conv, err := ConvergenceHistory(deltas)
		if err != nil {
			return count, err
		}
		if err := conv.Save(10*vg.Inch, 5*vg.Inch, filepath.Join(dir, "convergence.png")); err != nil {
			return count, fmt.Errorf("save convergence plot: %w", err)
		}
		count++
	}

	return count, nil
}
