package motionplan

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/navcore/spatialmath"
)

// the context is checked for cancellation once every this many expansions.
const ctxCheckInterval = 256

// AStarPlanner searches an 8-connected occupancy grid with A*.
type AStarPlanner struct {
	opts   AStarOptions
	logger golog.Logger
}

// NewAStarPlanner creates an AStarPlanner.
func NewAStarPlanner(opts AStarOptions, logger golog.Logger) (*AStarPlanner, error) {
	if !(opts.GridResolution > 0) {
		return nil, newInvalidOptionError("grid_resolution", opts.GridResolution)
	}
	if opts.SearchMargin < 0 {
		return nil, errors.Wrap(ErrInvalidConfiguration, "search_margin must not be negative")
	}
	return &AStarPlanner{opts: opts, logger: logger}, nil
}

// Type returns AStar.
func (mp *AStarPlanner) Type() PlannerType {
	return AStar
}

// Plan finds the shortest 8-connected grid path from start to goal. The first and last waypoints are the
// exact start and goal. Unless smoothing is disabled the grid path is shortened along lines of sight and
// resampled at the grid resolution; otherwise intermediate waypoints lie on cell centers.
func (mp *AStarPlanner) Plan(ctx context.Context, start, goal r2.Point, obstacles []r2.Point) (*spatialmath.Path, error) {
	if err := validateEndpoints(start, goal, obstacles); err != nil {
		return nil, err
	}
	grid := newOccupancyGrid(mp.opts.GridResolution, mp.opts.SearchMargin, start, goal, obstacles)
	startCell := grid.toCell(start)
	goalCell := grid.toCell(goal)
	if grid.blocked(goalCell) {
		return degeneratePath(start), NewPlannerFailedError(AStar, "goal lies inside an inflated obstacle")
	}

	cells, err := mp.search(ctx, grid, startCell, goalCell)
	if err != nil {
		if errors.Is(err, ErrPlanningFailed) {
			return degeneratePath(start), err
		}
		return nil, err
	}

	waypoints := make([]r2.Point, 0, len(cells)+1)
	for _, c := range cells {
		waypoints = append(waypoints, grid.toPoint(c))
	}
	waypoints[0] = start
	if len(waypoints) == 1 {
		waypoints = append(waypoints, goal)
	} else {
		waypoints[len(waypoints)-1] = goal
	}
	if !mp.opts.DisableSmoothing {
		waypoints = smoothGridPath(grid, waypoints)
	}
	path := spatialmath.NewPath(waypoints)
	mp.logger.Debugw("astar found path", "waypoints", path.Len(), "length", path.TotalLength())
	return path, nil
}

// search runs A* over grid cells and returns the cells from start to goal, inclusive.
func (mp *AStarPlanner) search(ctx context.Context, grid *occupancyGrid, start, goal cell) ([]cell, error) {
	open := &openSet{}
	cameFrom := map[cell]cell{}
	gScore := map[cell]float64{start: 0}
	closed := map[cell]struct{}{}
	open.push(start, start.dist(goal))

	expansions := 0
	for open.Len() > 0 {
		if expansions%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, newCanceledError(AStar, ctx.Err())
			default:
			}
		}
		current := open.pop().cell
		if _, done := closed[current]; done {
			// stale entry superseded by a cheaper push
			continue
		}
		if current == goal {
			return reconstructPath(cameFrom, current), nil
		}
		closed[current] = struct{}{}
		expansions++
		if mp.opts.MaxExpansions > 0 && expansions > mp.opts.MaxExpansions {
			return nil, NewPlannerFailedError(AStar, "expansion budget exhausted")
		}

		for _, offset := range neighborOffsets {
			neighbor := current.add(offset)
			if grid.blocked(neighbor) {
				continue
			}
			if _, done := closed[neighbor]; done {
				continue
			}
			tentative := gScore[current] + current.dist(neighbor)
			if g, seen := gScore[neighbor]; !seen || tentative < g {
				cameFrom[neighbor] = current
				gScore[neighbor] = tentative
				open.push(neighbor, tentative+neighbor.dist(goal))
			}
		}
	}
	mp.logger.Debugw("astar open set exhausted", "expansions", expansions)
	return nil, NewPlannerFailedError(AStar, "open set exhausted")
}

func reconstructPath(cameFrom map[cell]cell, current cell) []cell {
	path := []cell{current}
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	// reverse the slice
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// smoothGridPath removes the staircase an 8-connected grid imposes by greedily connecting each waypoint to the
// furthest later waypoint it can see, then re-densifies the result so that consecutive waypoints stay within one
// cell of each other.
func smoothGridPath(grid *occupancyGrid, waypoints []r2.Point) []r2.Point {
	if len(waypoints) < 3 {
		return densify(waypoints, grid.resolution)
	}
	shortcut := []r2.Point{waypoints[0]}
	for i := 0; i < len(waypoints)-1; {
		next := i + 1
		for j := len(waypoints) - 1; j > i+1; j-- {
			if grid.lineOfSight(waypoints[i], waypoints[j]) {
				next = j
				break
			}
		}
		shortcut = append(shortcut, waypoints[next])
		i = next
	}
	return densify(shortcut, grid.resolution)
}

// densify inserts evenly spaced points on every segment longer than spacing.
func densify(waypoints []r2.Point, spacing float64) []r2.Point {
	if len(waypoints) < 2 {
		return waypoints
	}
	out := []r2.Point{waypoints[0]}
	for i := 1; i < len(waypoints); i++ {
		a, b := waypoints[i-1], waypoints[i]
		n := segmentSteps(a, b, spacing)
		for k := 1; k < n; k++ {
			out = append(out, spatialmath.Lerp(a, b, float64(k)/float64(n)))
		}
		out = append(out, b)
	}
	return out
}
