// Package sweep explores how a layer's feasibility and buffer sizing change
// across a grid of shapes, and tabulates the results as Arrow records.
package sweep

import (
	"errors"

	"github.com/23skdu/longbow-axi/internal/accel"
	"github.com/23skdu/longbow-axi/internal/conv"
	"github.com/23skdu/longbow-axi/internal/pool"
)

// Grid lists the values to try per axis. An empty axis keeps the base
// descriptor's value.
type Grid struct {
	Widths    []int `yaml:"widths" json:"widths"`
	Heights   []int `yaml:"heights" json:"heights"`
	Channels  []int `yaml:"channels" json:"channels"`
	Kernels   []int `yaml:"kernels" json:"kernels"`
	Strides   []int `yaml:"strides" json:"strides"`
	Rounds    []int `yaml:"rounds" json:"rounds"`
	RowWidths []int `yaml:"row_widths" json:"row_widths"`
}

// Point is the outcome of compiling one grid point.
type Point struct {
	Family   string
	Width    int
	Height   int
	Channels int
	Kernels  int
	Stride   int
	Rounds   int
	RowWidth int

	Feasible bool
	// Kind and Field name the rejection; empty when feasible.
	Kind  string
	Field string

	OutWidth          int
	OutHeight         int
	FeatureMapRows    int
	MidResRows        int
	ExpectedTransfers int
}

type shape struct {
	width, height, channels, kernels, stride, rounds, rowWidth int
}

func axis(values []int, base int) []int {
	if len(values) == 0 {
		return []int{base}
	}
	return values
}

// points expands g around base in row-major order, the last axis fastest.
func (g Grid) points(base shape) []shape {
	var out []shape
	for _, w := range axis(g.Widths, base.width) {
		for _, h := range axis(g.Heights, base.height) {
			for _, c := range axis(g.Channels, base.channels) {
				for _, k := range axis(g.Kernels, base.kernels) {
					for _, s := range axis(g.Strides, base.stride) {
						for _, r := range axis(g.Rounds, base.rounds) {
							for _, rw := range axis(g.RowWidths, base.rowWidth) {
								out = append(out, shape{w, h, c, k, s, r, rw})
							}
						}
					}
				}
			}
		}
	}
	return out
}

// Size is the number of points g expands to.
func (g Grid) Size() int {
	n := 1
	for _, a := range [][]int{g.Widths, g.Heights, g.Channels, g.Kernels, g.Strides, g.Rounds, g.RowWidths} {
		if len(a) > 0 {
			n *= len(a)
		}
	}
	return n
}

func reject(p *Point, err error) {
	p.Kind = accel.Kind(err)
	var ce *accel.ConfigError
	if errors.As(err, &ce) {
		p.Field = ce.Field
	}
}

// Conv compiles every grid point of a convolution layer. Kernel channels
// follow the input channels; the stride applies to both axes.
func Conv(caps conv.Capabilities, base conv.Descriptor, g Grid) []Point {
	start := shape{base.Width, base.Height, base.Channels, base.Kernels, base.StrideH, base.Rounds, base.RowWidth}
	shapes := g.points(start)
	out := make([]Point, 0, len(shapes))
	for _, s := range shapes {
		d := base
		d.Width, d.Height = s.width, s.height
		d.Channels, d.KernelChannels, d.Kernels = s.channels, s.channels, s.kernels
		d.StrideH, d.StrideV = s.stride, s.stride
		d.Rounds, d.RowWidth = s.rounds, s.rowWidth

		p := Point{
			Family: conv.Family, Width: s.width, Height: s.height, Channels: s.channels,
			Kernels: s.kernels, Stride: s.stride, Rounds: s.rounds, RowWidth: s.rowWidth,
		}
		plan, _, err := conv.Compile(caps, d)
		if err != nil {
			reject(&p, err)
		} else {
			p.Feasible = true
			p.OutWidth, p.OutHeight = plan.OutWidth, plan.OutHeight
			p.FeatureMapRows, p.MidResRows = plan.FeatureMapRows, plan.MidResRows
			p.ExpectedTransfers = plan.ExpectedTransfers
		}
		out = append(out, p)
	}
	return out
}

// Pool compiles every grid point of a pooling layer. Kernels and rounds do
// not apply; the stride applies to both axes.
func Pool(caps pool.Capabilities, base pool.Descriptor, g Grid) []Point {
	g.Kernels, g.Rounds = nil, nil
	start := shape{base.Width, base.Height, base.Channels, 0, base.StrideH, 0, base.RowWidth}
	shapes := g.points(start)
	out := make([]Point, 0, len(shapes))
	for _, s := range shapes {
		d := base
		d.Width, d.Height, d.Channels = s.width, s.height, s.channels
		d.StrideH, d.StrideV = s.stride, s.stride
		d.RowWidth = s.rowWidth

		p := Point{
			Family: pool.Family, Width: s.width, Height: s.height, Channels: s.channels,
			Stride: s.stride, RowWidth: s.rowWidth,
		}
		plan, _, err := pool.Compile(caps, d)
		if err != nil {
			reject(&p, err)
		} else {
			p.Feasible = true
			p.OutWidth, p.OutHeight = plan.OutWidth, plan.OutHeight
			p.FeatureMapRows, p.MidResRows = plan.FeatureMapRows, plan.MidResRows
			p.ExpectedTransfers = plan.ExpectedTransfers
		}
		out = append(out, p)
	}
	return out
}
