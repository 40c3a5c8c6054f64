package motionplan

import (
	"context"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/navcore/spatialmath"
)

// node is a vertex of the RRT tree.
type node struct {
	pos r2.Point
}

// rrtMap maps every tree node to its parent. The root maps to nil.
type rrtMap map[*node]*node

// RRTPlanner grows a rapidly-exploring random tree from the start until it reaches the goal.
type RRTPlanner struct {
	opts     RRTOptions
	logger   golog.Logger
	randseed *rand.Rand
}

// RRTOption customizes an RRTPlanner.
type RRTOption func(*RRTPlanner)

// WithRandSource makes the planner draw its samples from r instead of a source seeded from the options.
func WithRandSource(r *rand.Rand) RRTOption {
	return func(mp *RRTPlanner) {
		mp.randseed = r
	}
}

// NewRRTPlanner creates an RRTPlanner.
func NewRRTPlanner(opts RRTOptions, logger golog.Logger, extra ...RRTOption) (*RRTPlanner, error) {
	if opts.MaxIterations <= 0 {
		return nil, newInvalidOptionError("max_iterations", opts.MaxIterations)
	}
	if !(opts.StepSize > 0) {
		return nil, newInvalidOptionError("step_size", opts.StepSize)
	}
	if opts.GoalBias < 0 || opts.GoalBias > 1 {
		return nil, errors.Wrapf(ErrInvalidConfiguration, "goal_bias must be within [0, 1], got %v", opts.GoalBias)
	}
	mp := &RRTPlanner{opts: opts, logger: logger}
	for _, o := range extra {
		o(mp)
	}
	if mp.randseed == nil {
		//nolint:gosec
		mp.randseed = rand.New(rand.NewSource(opts.Seed))
	}
	return mp, nil
}

// Type returns RRT.
func (mp *RRTPlanner) Type() PlannerType {
	return RRT
}

// Plan grows the tree for at most MaxIterations iterations. The returned path runs from start to goal through
// the tree; if the goal is never connected the planner fails rather than returning a partial path.
func (mp *RRTPlanner) Plan(ctx context.Context, start, goal r2.Point, obstacles []r2.Point) (*spatialmath.Path, error) {
	if err := validateEndpoints(start, goal, obstacles); err != nil {
		return nil, err
	}
	if !isClear(start, obstacles) {
		return degeneratePath(start), NewPlannerFailedError(RRT, "start violates obstacle clearance")
	}
	if !isClear(goal, obstacles) {
		return degeneratePath(start), NewPlannerFailedError(RRT, "goal violates obstacle clearance")
	}

	bounds := mp.opts.SampleBounds.Rect().AddPoint(start).AddPoint(goal)
	root := &node{pos: start}
	tree := rrtMap{root: nil}
	nodes := []*node{root}
	var goalNode *node

	for i := 0; i < mp.opts.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return nil, newCanceledError(RRT, ctx.Err())
		default:
		}

		var target r2.Point
		if mp.randseed.Float64() < mp.opts.GoalBias {
			target = goal
		} else {
			target = r2.Point{
				X: bounds.X.Lo + mp.randseed.Float64()*bounds.X.Length(),
				Y: bounds.Y.Lo + mp.randseed.Float64()*bounds.Y.Length(),
			}
		}

		nearest := nearestNeighbor(target, nodes)
		newNode := &node{pos: mp.steer(nearest.pos, target)}
		if !isClear(newNode.pos, obstacles) {
			continue
		}
		tree[newNode] = nearest
		nodes = append(nodes, newNode)

		if spatialmath.Distance(newNode.pos, goal) < 2*mp.opts.StepSize {
			goalNode = &node{pos: goal}
			tree[goalNode] = newNode
			mp.logger.Debugw("rrt connected goal", "iteration", i, "nodes", len(nodes))
			break
		}
	}

	steps, err := extractPath(tree, goalNode)
	if err != nil {
		mp.logger.Debugw("rrt failed", "iterations", mp.opts.MaxIterations, "nodes", len(nodes))
		return degeneratePath(start), err
	}
	return spatialmath.NewPath(steps), nil
}

// steer moves from `from` toward `to` by at most one step.
func (mp *RRTPlanner) steer(from, to r2.Point) r2.Point {
	direction := to.Sub(from)
	dist := direction.Norm()
	if dist < mp.opts.StepSize {
		return to
	}
	return from.Add(direction.Mul(mp.opts.StepSize / dist))
}

func isClear(p r2.Point, obstacles []r2.Point) bool {
	for _, obs := range obstacles {
		if spatialmath.Distance(p, obs) < rrtClearance {
			return false
		}
	}
	return true
}

// extractPath walks parent links back from the goal. A goal that was never added to the tree, or whose parent
// chain does not end at the root, is reported as a planning failure.
func extractPath(tree rrtMap, goalNode *node) ([]r2.Point, error) {
	if goalNode == nil {
		return nil, NewPlannerFailedError(RRT, "iteration budget exhausted before the goal was connected")
	}
	path := make([]r2.Point, 0)
	for current := goalNode; current != nil; {
		path = append(path, current.pos)
		parent, ok := tree[current]
		if !ok {
			return nil, NewPlannerFailedError(RRT, "goal is not connected to the start")
		}
		if len(path) > len(tree) {
			return nil, NewPlannerFailedError(RRT, "tree contains a cycle")
		}
		current = parent
	}

	// reverse the slice
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
