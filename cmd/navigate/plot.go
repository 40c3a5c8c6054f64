package main

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/navcore/config"
	"go.viam.com/navcore/navigation"
)

const plotSize = 6 * vg.Inch

// savePlot draws the planned path, the sampled trajectory and the obstacles of a scenario into an image file.
// The image format follows the file extension.
func savePlot(filename string, scenario *config.Scenario, res *navigation.Result) error {
	p := plot.New()
	p.Title.Text = "navigation"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	waypoints := make(plotter.XYs, 0, res.Path.Len())
	for _, pt := range res.Path.Points() {
		waypoints = append(waypoints, plotter.XY{X: pt.X, Y: pt.Y})
	}
	pathLine, pathPoints, err := plotter.NewLinePoints(waypoints)
	if err != nil {
		return err
	}
	pathLine.Color = color.RGBA{B: 200, A: 255}
	pathPoints.GlyphStyle.Color = pathLine.Color
	p.Add(pathLine, pathPoints)
	p.Legend.Add("path", pathLine, pathPoints)

	if len(res.Trajectory) > 0 {
		samples := make(plotter.XYs, 0, len(res.Trajectory))
		for _, tp := range res.Trajectory {
			samples = append(samples, plotter.XY{X: tp.X, Y: tp.Y})
		}
		trajectory, err := plotter.NewScatter(samples)
		if err != nil {
			return err
		}
		trajectory.GlyphStyle.Radius = vg.Points(1)
		trajectory.GlyphStyle.Color = color.RGBA{G: 150, A: 255}
		p.Add(trajectory)
		p.Legend.Add("trajectory", trajectory)
	}

	if len(scenario.Obstacles) > 0 {
		cells := make(plotter.XYs, 0, len(scenario.Obstacles))
		for _, o := range scenario.Obstacles {
			cells = append(cells, plotter.XY{X: o[0], Y: o[1]})
		}
		obstacles, err := plotter.NewScatter(cells)
		if err != nil {
			return err
		}
		obstacles.GlyphStyle.Radius = vg.Points(4)
		obstacles.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		p.Add(obstacles)
		p.Legend.Add("obstacles", obstacles)
	}

	return p.Save(plotSize, plotSize, filename)
}
