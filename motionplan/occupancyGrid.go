package motionplan

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/navcore/spatialmath"
)

// cell is a grid coordinate.
type cell struct {
	X, Y int
}

// 8-connected neighborhood, in a fixed order so that searches are reproducible.
var neighborOffsets = [8]cell{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
}

func (c cell) add(o cell) cell {
	return cell{c.X + o.X, c.Y + o.Y}
}

// dist is the Euclidean distance between two cells, in cells.
func (c cell) dist(o cell) float64 {
	return math.Hypot(float64(c.X-o.X), float64(c.Y-o.Y))
}

// occupancyGrid discretizes the plane into square cells and records the cells blocked by inflated obstacles.
// Cells outside of [lo, hi] are treated as blocked.
type occupancyGrid struct {
	resolution float64
	occupied   map[cell]struct{}
	lo, hi     cell
}

// newOccupancyGrid builds a grid bounding start, goal and every obstacle, padded by margin, with every obstacle
// inflated by a disk of radius inflationCells.
func newOccupancyGrid(resolution, margin float64, start, goal r2.Point, obstacles []r2.Point) *occupancyGrid {
	g := &occupancyGrid{
		resolution: resolution,
		occupied:   make(map[cell]struct{}, len(obstacles)*(2*inflationCells+1)*(2*inflationCells+1)),
	}
	box := r2.RectFromPoints(start, goal)
	for _, obs := range obstacles {
		box = box.AddPoint(obs)
	}
	g.lo = cell{
		int(math.Floor((box.X.Lo - margin) / resolution)),
		int(math.Floor((box.Y.Lo - margin) / resolution)),
	}
	g.hi = cell{
		int(math.Ceil((box.X.Hi + margin) / resolution)),
		int(math.Ceil((box.Y.Hi + margin) / resolution)),
	}
	for _, obs := range obstacles {
		center := g.toCell(obs)
		for dx := -inflationCells; dx <= inflationCells; dx++ {
			for dy := -inflationCells; dy <= inflationCells; dy++ {
				if dx*dx+dy*dy <= inflationCells*inflationCells {
					g.occupied[center.add(cell{dx, dy})] = struct{}{}
				}
			}
		}
	}
	return g
}

func (g *occupancyGrid) toCell(p r2.Point) cell {
	return cell{int(math.Round(p.X / g.resolution)), int(math.Round(p.Y / g.resolution))}
}

func (g *occupancyGrid) toPoint(c cell) r2.Point {
	return r2.Point{X: float64(c.X) * g.resolution, Y: float64(c.Y) * g.resolution}
}

func (g *occupancyGrid) inBounds(c cell) bool {
	return c.X >= g.lo.X && c.X <= g.hi.X && c.Y >= g.lo.Y && c.Y <= g.hi.Y
}

func (g *occupancyGrid) blocked(c cell) bool {
	if !g.inBounds(c) {
		return true
	}
	_, ok := g.occupied[c]
	return ok
}

// lineOfSight reports whether the straight segment a->b only crosses free cells. The cell containing a is
// exempt so that a segment may leave a start that lies inside an inflated obstacle. The samples checked include
// every point densify places on the segment.
func (g *occupancyGrid) lineOfSight(a, b r2.Point) bool {
	startCell := g.toCell(a)
	n := losOversample * segmentSteps(a, b, g.resolution)
	for i := 0; i <= n; i++ {
		t := 1.
		if n > 0 {
			t = float64(i) / float64(n)
		}
		c := g.toCell(spatialmath.Lerp(a, b, t))
		if c != startCell && g.blocked(c) {
			return false
		}
	}
	return true
}

// line of sight checks sample this many times more densely than densify.
const losOversample = 8

// segmentSteps is the number of pieces a->b is cut into so that none is longer than spacing.
func segmentSteps(a, b r2.Point, spacing float64) int {
	return int(math.Ceil(spatialmath.Distance(a, b) / spacing))
}
